package distribution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/linkledger-backend/internal/adapter/repository/memory"
	"github.com/simaogato/linkledger-backend/internal/domain"
	"github.com/simaogato/linkledger-backend/internal/usecase/valuation"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertDecimal(t *testing.T, want, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "%s: expected %s, got %s", field, want, got)
}

type fixture struct {
	store  *memory.Store
	index  *memory.EligibilityIndex
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	index := memory.NewEligibilityIndex()
	engine := NewEngine(store, index, nil)
	engine.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return &fixture{store: store, index: index, engine: engine}
}

func (f *fixture) account(t *testing.T, number string, mutate func(*domain.Account)) *domain.Account {
	t.Helper()
	account := &domain.Account{
		ID:            uuid.New(),
		AccountNumber: number,
		Name:          number,
		Trigger:       2,
	}
	if mutate != nil {
		mutate(account)
	}
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		return repos.Accounts.Create(ctx, account)
	}))
	return account
}

func (f *fixture) link(t *testing.T, sender, receiver *domain.Account, amount, feeRate int64) {
	t.Helper()
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		_, err := repos.Links.UpsertOrAccumulate(ctx, &domain.Link{
			SenderID:     sender.ID,
			ReceiverID:   receiver.ID,
			SenderName:   sender.Name,
			ReceiverName: receiver.Name,
			Amount:       dec(amount),
			FeeRate:      dec(feeRate),
		})
		return err
	}))
}

func (f *fixture) load(t *testing.T, id uuid.UUID) *domain.Account {
	t.Helper()
	var account *domain.Account
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		var err error
		account, err = repos.Accounts.GetByID(ctx, id)
		return err
	}))
	return account
}

func (f *fixture) pair(t *testing.T, sender, receiver uuid.UUID) (*domain.Link, error) {
	t.Helper()
	var link *domain.Link
	err := f.store.Do(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		var err error
		link, err = repos.Links.FindPair(ctx, sender, receiver)
		return err
	})
	return link, err
}

// assertValueCurrent checks the stored value matches a fresh computation over the links
func (f *fixture) assertValueCurrent(t *testing.T, id uuid.UUID) {
	t.Helper()
	require.NoError(t, f.store.Do(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		account, err := repos.Accounts.GetByID(ctx, id)
		if err != nil {
			return err
		}
		want, err := valuation.Value(ctx, repos.Links, account)
		if err != nil {
			return err
		}
		assertDecimal(t, want, account.Value, account.AccountNumber+" value")
		return nil
	}))
}

func TestDistribute_FullySettlesLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	distributor := f.account(t, "DIST", func(a *domain.Account) {
		a.Auxiliary = dec(10)
		a.TransactionCount = 3
	})
	participant := f.account(t, "PART", func(a *domain.Account) {
		a.PublicRate = dec(10)
	})
	f.link(t, participant, distributor, 5, 10)

	result, err := f.engine.Distribute(ctx, distributor.ID)

	require.NoError(t, err)
	assertDecimal(t, dec(10), result.Pool, "pool")
	require.Len(t, result.Records, 1)
	record := result.Records[0]
	assert.Equal(t, participant.ID, record.ParticipantID)
	assert.True(t, record.FullySettled)
	assert.NotNil(t, record.LinkID)
	assertDecimal(t, dec(5), record.Share, "share is capped at the link amount")

	_, err = f.pair(t, participant.ID, distributor.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "settled link should be deleted")

	gotParticipant := f.load(t, participant.ID)
	assertDecimal(t, dec(5), gotParticipant.Balance, "participant balance")
	assertDecimal(t, dec(10), gotParticipant.PublicRate, "rate kept without outgoing links")

	gotDistributor := f.load(t, distributor.ID)
	assertDecimal(t, dec(5), gotDistributor.Auxiliary, "distributor reserve")
	assert.Equal(t, 0, gotDistributor.TransactionCount)

	f.assertValueCurrent(t, participant.ID)
	f.assertValueCurrent(t, distributor.ID)
}

func TestDistribute_PartiallySettlesLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	distributor := f.account(t, "DIST", func(a *domain.Account) {
		a.Auxiliary = dec(10)
		a.TransactionCount = 3
	})
	participant := f.account(t, "PART", func(a *domain.Account) {
		a.PublicRate = dec(10)
	})
	f.link(t, participant, distributor, 20, 10)

	result, err := f.engine.Distribute(ctx, distributor.ID)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.False(t, result.Records[0].FullySettled)
	assertDecimal(t, dec(10), result.Paid(), "paid")

	link, err := f.pair(t, participant.ID, distributor.ID)
	require.NoError(t, err)
	assertDecimal(t, dec(10), link.Amount, "remaining link amount")

	gotParticipant := f.load(t, participant.ID)
	assertDecimal(t, dec(10), gotParticipant.Balance, "participant balance")
	assertDecimal(t, decimal.Zero, f.load(t, distributor.ID).Auxiliary, "distributor reserve")

	f.assertValueCurrent(t, participant.ID)
	f.assertValueCurrent(t, distributor.ID)
}

func TestDistribute_SharesFollowPublicRates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	distributor := f.account(t, "DIST", func(a *domain.Account) {
		a.Auxiliary = dec(40)
		a.TransactionCount = 3
	})
	low := f.account(t, "LOW", func(a *domain.Account) { a.PublicRate = dec(10) })
	high := f.account(t, "HIGH", func(a *domain.Account) { a.PublicRate = dec(30) })
	f.link(t, low, distributor, 100, 10)
	f.link(t, high, distributor, 100, 30)

	result, err := f.engine.Distribute(ctx, distributor.ID)

	require.NoError(t, err)
	assertDecimal(t, dec(40), result.TotalRate, "total rate")
	require.Len(t, result.Records, 2)
	assert.Equal(t, low.ID, result.Records[0].ParticipantID)
	assertDecimal(t, dec(10), result.Records[0].Share, "low share")
	assert.Equal(t, high.ID, result.Records[1].ParticipantID)
	assertDecimal(t, dec(30), result.Records[1].Share, "high share")
	assertDecimal(t, decimal.Zero, f.load(t, distributor.ID).Auxiliary, "reserve fully paid")
}

func TestDistribute_UnevenSharesNeverExceedPool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	distributor := f.account(t, "DIST", func(a *domain.Account) {
		a.Auxiliary = dec(2)
		a.TransactionCount = 3
	})
	for _, number := range []string{"P1", "P2", "P3"} {
		participant := f.account(t, number, func(a *domain.Account) { a.PublicRate = dec(20) })
		f.link(t, participant, distributor, 100, 20)
	}

	result, err := f.engine.Distribute(ctx, distributor.ID)

	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	for _, record := range result.Records {
		assertDecimal(t, decimal.RequireFromString("0.6666666666666666"), record.Share, "share")
	}
	assert.True(t, result.Paid().LessThanOrEqual(result.Pool), "paid %s out of a pool of %s", result.Paid(), result.Pool)

	reserve := f.load(t, distributor.ID).Auxiliary
	assert.False(t, reserve.IsNegative(), "reserve went negative: %s", reserve)
	assertDecimal(t, dec(2).Sub(result.Paid()), reserve, "reserve")
	f.assertValueCurrent(t, distributor.ID)
}

func TestDistribute_SkipsParticipantsWithoutDeficit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	distributor := f.account(t, "DIST", func(a *domain.Account) {
		a.Auxiliary = dec(10)
		a.TransactionCount = 3
	})
	// Income from another link cancels this account's obligation, so Balance == Value
	settled := f.account(t, "SETTLED", func(a *domain.Account) { a.PublicRate = dec(10) })
	other := f.account(t, "OTHER", nil)
	f.link(t, settled, distributor, 5, 10)
	f.link(t, other, settled, 5, 10)

	result, err := f.engine.Distribute(ctx, distributor.ID)

	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assertDecimal(t, dec(10), f.load(t, distributor.ID).Auxiliary, "reserve untouched")
}

func TestDistribute_SelfPayout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	distributor := f.account(t, "DIST", func(a *domain.Account) {
		a.Auxiliary = dec(10)
		a.PublicRate = dec(5)
		a.TransactionCount = 3
	})

	result, err := f.engine.Distribute(ctx, distributor.ID)

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.True(t, result.Records[0].IsSelfPayout())
	assert.Nil(t, result.Records[0].LinkID)

	got := f.load(t, distributor.ID)
	assertDecimal(t, dec(10), got.Balance, "balance")
	assertDecimal(t, decimal.Zero, got.Auxiliary, "reserve")
	f.assertValueCurrent(t, distributor.ID)
}

func TestDistribute_NoParticipantsStillResetsCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	distributor := f.account(t, "DIST", func(a *domain.Account) {
		a.Auxiliary = dec(10)
		a.TransactionCount = 7
	})

	result, err := f.engine.Distribute(ctx, distributor.ID)

	require.NoError(t, err)
	assert.Empty(t, result.Records)

	got := f.load(t, distributor.ID)
	assert.Equal(t, 0, got.TransactionCount)
	assertDecimal(t, dec(10), got.Auxiliary, "reserve")
}

func TestDistribute_UnknownAccount(t *testing.T) {
	f := newFixture(t)

	result, err := f.engine.Distribute(context.Background(), uuid.New())

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSweepEligible_RespectsTrigger(t *testing.T) {
	tests := []struct {
		name             string
		transactionCount int
		wantDistributed  bool
		wantCount        int
	}{
		{"Count equal to trigger is not distributed", 2, false, 2},
		{"Count above trigger is distributed and reset", 3, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)

			account := f.account(t, "DIST", func(a *domain.Account) {
				a.Auxiliary = dec(10)
				a.TransactionCount = tt.transactionCount
			})
			require.NoError(t, f.index.Mark(ctx, account.ID))

			report, err := f.engine.SweepEligible(ctx)

			require.NoError(t, err)
			assert.Empty(t, report.Failed)
			if tt.wantDistributed {
				require.Len(t, report.Distributed, 1)
				assert.Equal(t, account.ID, report.Distributed[0].AccountID)
			} else {
				assert.Empty(t, report.Distributed)
				assert.Equal(t, []uuid.UUID{account.ID}, report.Skipped)
			}
			assert.Equal(t, tt.wantCount, f.load(t, account.ID).TransactionCount)

			ids, err := f.index.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

// failingAccounts breaks reads of a single account
type failingAccounts struct {
	domain.AccountRepository
	failID uuid.UUID
}

func (r failingAccounts) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if id == r.failID {
		return nil, errors.New("connection reset")
	}
	return r.AccountRepository.GetByID(ctx, id)
}

type failingUnitOfWork struct {
	inner  domain.UnitOfWork
	failID uuid.UUID
}

func (u failingUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	return u.inner.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		repos.Accounts = failingAccounts{AccountRepository: repos.Accounts, failID: u.failID}
		return fn(ctx, repos)
	})
}

func TestSweepEligible_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	broken := f.account(t, "BROKEN", func(a *domain.Account) { a.TransactionCount = 3 })
	healthy := f.account(t, "HEALTHY", func(a *domain.Account) {
		a.Auxiliary = dec(10)
		a.PublicRate = dec(1)
		a.TransactionCount = 3
	})
	require.NoError(t, f.index.Mark(ctx, broken.ID))
	require.NoError(t, f.index.Mark(ctx, healthy.ID))

	engine := NewEngine(failingUnitOfWork{inner: f.store, failID: broken.ID}, f.index, nil)

	report, err := engine.SweepEligible(ctx)

	require.NoError(t, err)
	require.Contains(t, report.Failed, broken.ID)
	assert.True(t, errors.Is(report.Failed[broken.ID], domain.ErrInternal))
	require.Len(t, report.Distributed, 1)
	assert.Equal(t, healthy.ID, report.Distributed[0].AccountID)

	// The failed account stays indexed for the next sweep
	ids, err := f.index.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{broken.ID}, ids)
}

// remarkingIndex runs beforeRemove ahead of the first Remove, standing in for a
// transfer that commits between a distribution and its index cleanup
type remarkingIndex struct {
	*memory.EligibilityIndex
	beforeRemove func()
}

func (i *remarkingIndex) Remove(ctx context.Context, accountID uuid.UUID) error {
	if i.beforeRemove != nil {
		hook := i.beforeRemove
		i.beforeRemove = nil
		hook()
	}
	return i.EligibilityIndex.Remove(ctx, accountID)
}

func TestSweepEligible_KeepsAccountEligibleAgainAfterDistribution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	account := f.account(t, "DIST", func(a *domain.Account) {
		a.Auxiliary = dec(10)
		a.TransactionCount = 3
	})
	index := &remarkingIndex{EligibilityIndex: f.index}
	require.NoError(t, index.Mark(ctx, account.ID))
	index.beforeRemove = func() {
		require.NoError(t, f.store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
			current, err := repos.Accounts.GetByID(ctx, account.ID)
			if err != nil {
				return err
			}
			current.TransactionCount = 3
			return repos.Accounts.Save(ctx, current)
		}))
		// Still indexed, so this mark does nothing
		require.NoError(t, index.Mark(ctx, account.ID))
	}
	engine := NewEngine(f.store, index, nil)

	report, err := engine.SweepEligible(ctx)

	require.NoError(t, err)
	require.Len(t, report.Distributed, 1)

	ids, err := index.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{account.ID}, ids)
}

func TestRebuildIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	eligible := f.account(t, "ELIGIBLE", func(a *domain.Account) { a.TransactionCount = 3 })
	f.account(t, "QUIET", func(a *domain.Account) { a.TransactionCount = 1 })

	marked, err := f.engine.RebuildIndex(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	ids, err := f.index.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{eligible.ID}, ids)
}

func TestTrack_IgnoresAccountsBelowTrigger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.engine.Track(ctx, &domain.Account{ID: uuid.New(), Trigger: 2, TransactionCount: 2}))

	ids, err := f.index.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListDistributions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	distributor := f.account(t, "DIST", func(a *domain.Account) {
		a.Auxiliary = dec(10)
		a.TransactionCount = 3
	})
	participant := f.account(t, "PART", func(a *domain.Account) { a.PublicRate = dec(10) })
	f.link(t, participant, distributor, 50, 10)

	_, err := f.engine.Distribute(ctx, distributor.ID)
	require.NoError(t, err)

	records, err := f.engine.ListDistributions(ctx, participant.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, distributor.ID, records[0].DistributorID)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), records[0].CreatedAt)

	_, err = f.engine.ListDistributions(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
