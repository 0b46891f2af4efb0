package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/linkledger-backend/internal/domain"
	"github.com/simaogato/linkledger-backend/internal/logging"
	"github.com/simaogato/linkledger-backend/internal/metrics"
	"github.com/simaogato/linkledger-backend/internal/usecase/valuation"
)

// Result describes one distribution round of a single account
type Result struct {
	AccountID uuid.UUID
	Pool      decimal.Decimal // Reserve available at the start of the round
	TotalRate decimal.Decimal
	Records   []*domain.DistributionRecord
}

// Paid returns the total amount moved out of the reserve during the round
func (r *Result) Paid() decimal.Decimal {
	total := decimal.Zero
	for _, record := range r.Records {
		total = total.Add(record.Share)
	}
	return total
}

// SweepReport summarises a sweep over the eligibility index
type SweepReport struct {
	Distributed []*Result
	Skipped     []uuid.UUID
	Failed      map[uuid.UUID]error
}

// Engine pays accumulated reserves back to the accounts that generated them
type Engine struct {
	UnitOfWork domain.UnitOfWork
	Index      domain.EligibilityIndex
	Logger     logrus.FieldLogger

	now func() time.Time
}

// NewEngine creates a new distribution Engine instance
func NewEngine(uow domain.UnitOfWork, index domain.EligibilityIndex, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		UnitOfWork: uow,
		Index:      index,
		Logger:     logger,
		now:        time.Now,
	}
}

// Track adds the account to the eligibility index once it has crossed its trigger
func (e *Engine) Track(ctx context.Context, account *domain.Account) error {
	if !account.IsDistributionEligible() {
		return nil
	}
	if err := e.Index.Mark(ctx, account.ID); err != nil {
		return fmt.Errorf("failed to mark account %s as eligible: %w", account.ID, domain.Internal(err))
	}
	return nil
}

// RebuildIndex scans every account once and marks the eligible ones.
// Returns the number of accounts marked.
func (e *Engine) RebuildIndex(ctx context.Context) (int, error) {
	var eligible []*domain.Account
	err := e.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		accounts, err := repos.Accounts.List(ctx)
		if err != nil {
			return domain.Internal(err)
		}
		for _, account := range accounts {
			if account.IsDistributionEligible() {
				eligible = append(eligible, account)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, account := range eligible {
		if err := e.Track(ctx, account); err != nil {
			return 0, err
		}
	}
	return len(eligible), nil
}

// SweepEligible distributes every account found in the eligibility index
// Logic:
//  1. List the indexed accounts
//  2. For each one, re-check eligibility and run Distribute inside its own unit of work
//  3. A failing account is logged and reported; the sweep continues with the others
//  4. Distributed and no-longer-eligible accounts are removed from the index
func (e *Engine) SweepEligible(ctx context.Context) (*SweepReport, error) {
	ids, err := e.Index.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible accounts: %w", domain.Internal(err))
	}
	metrics.SetEligibleAccounts(len(ids))

	report := &SweepReport{Failed: make(map[uuid.UUID]error)}
	for _, id := range ids {
		log := e.Logger.WithField("account_id", id)

		result, err := e.distributeIfEligible(ctx, id)
		if err != nil {
			log.WithError(err).Error("distribution failed")
			metrics.ObserveDistribution(metrics.OutcomeFailure, decimal.Zero)
			report.Failed[id] = err
			continue
		}

		if result == nil {
			report.Skipped = append(report.Skipped, id)
		} else {
			report.Distributed = append(report.Distributed, result)
		}

		e.untrack(ctx, id)
	}

	return report, nil
}

// Distribute runs one distribution round for the account regardless of its trigger
func (e *Engine) Distribute(ctx context.Context, accountID uuid.UUID) (*Result, error) {
	var result *Result
	err := e.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		account, err := repos.Accounts.GetByID(ctx, accountID)
		if err != nil {
			return domain.Internal(err)
		}
		result, err = e.distribute(ctx, repos, account)
		return err
	})
	if err != nil {
		metrics.ObserveDistribution(metrics.OutcomeFailure, decimal.Zero)
		return nil, err
	}

	e.untrack(ctx, accountID)
	return result, nil
}

// untrack drops the account from the eligibility index, then re-marks it when a transfer
// committed after its distribution already pushed it past its trigger again.
// Marking an indexed account is a no-op, so that transfer's own Track may have been lost.
func (e *Engine) untrack(ctx context.Context, accountID uuid.UUID) {
	log := e.Logger.WithField("account_id", accountID)
	if err := e.Index.Remove(ctx, accountID); err != nil {
		// The account is re-checked on the next sweep, so a stale entry is harmless
		log.WithError(err).Warn("failed to remove account from eligibility index")
		return
	}

	var account *domain.Account
	err := e.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		account, err = repos.Accounts.GetByID(ctx, accountID)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err == nil {
		err = e.Track(ctx, account)
	}
	if err != nil {
		log.WithError(err).Warn("failed to re-check eligibility after distribution")
	}
}

// ListDistributions returns the settlement records the account took part in
func (e *Engine) ListDistributions(ctx context.Context, accountID uuid.UUID) ([]*domain.DistributionRecord, error) {
	var records []*domain.DistributionRecord
	err := e.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if _, err := repos.Accounts.GetByID(ctx, accountID); err != nil {
			return domain.Internal(err)
		}
		var err error
		records, err = repos.Distributions.ListByAccount(ctx, accountID)
		return domain.Internal(err)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// distributeIfEligible returns a nil result when the account is gone or below its trigger
func (e *Engine) distributeIfEligible(ctx context.Context, accountID uuid.UUID) (*Result, error) {
	var result *Result
	err := e.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		account, err := repos.Accounts.GetByID(ctx, accountID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return domain.Internal(err)
		}
		if !account.IsDistributionEligible() {
			return nil
		}
		result, err = e.distribute(ctx, repos, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		metrics.ObserveDistribution(metrics.OutcomeSkipped, decimal.Zero)
	}
	return result, nil
}

// distribute pays the account's reserve out to its participants
// Logic:
//  1. Pool = Auxiliary, read once
//  2. Participants: distinct senders of incoming links with Balance < Value,
//     plus the account itself when it carries a deficit
//  3. Share = Pool * participant.PublicRate / Sum(PublicRate), rounded down so the
//     shares never add up to more than the pool
//  4. Settle each share sequentially, then reset the transaction count
//
// With no participants (or a zero rate total) nothing is paid but the count still resets.
func (e *Engine) distribute(ctx context.Context, repos domain.Repositories, account *domain.Account) (*Result, error) {
	log := e.Logger.WithField("account_id", account.ID)

	result := &Result{
		AccountID: account.ID,
		Pool:      account.Auxiliary,
		TotalRate: decimal.Zero,
	}

	participants, err := e.participants(ctx, repos, account)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		result.TotalRate = result.TotalRate.Add(p.PublicRate)
	}

	if len(participants) == 0 || !result.TotalRate.IsPositive() {
		log.Info("no participants qualify for distribution")
	} else {
		for _, p := range participants {
			share := proportionalShare(result.Pool, p.PublicRate, result.TotalRate)
			record, err := e.settle(ctx, repos, account, p, share)
			if err != nil {
				return nil, err
			}
			if record != nil {
				result.Records = append(result.Records, record)
			}
		}
	}

	account.TransactionCount = 0
	if err := valuation.Refresh(ctx, repos.Links, account); err != nil {
		return nil, domain.Internal(err)
	}
	if err := repos.Accounts.Save(ctx, account); err != nil {
		return nil, domain.Internal(err)
	}

	log.WithFields(logrus.Fields{
		"pool":         result.Pool.String(),
		"paid":         result.Paid().String(),
		"participants": len(participants),
	}).Info("distribution completed")
	metrics.ObserveDistribution(metrics.OutcomeSuccess, result.Paid())

	return result, nil
}

// proportionalShare returns pool * weight / total truncated to the division precision
func proportionalShare(pool, weight, total decimal.Decimal) decimal.Decimal {
	share, _ := pool.Mul(weight).QuoRem(total, int32(decimal.DivisionPrecision))
	return share
}

// participants returns the accounts that take part in the account's distribution, self last
func (e *Engine) participants(ctx context.Context, repos domain.Repositories, account *domain.Account) ([]*domain.Account, error) {
	incoming, err := repos.Links.Find(ctx, domain.IncomingLinks(account.ID))
	if err != nil {
		return nil, domain.Internal(err)
	}

	participants := make([]*domain.Account, 0, len(incoming)+1)
	seen := map[uuid.UUID]bool{account.ID: true}
	for _, link := range incoming {
		if seen[link.SenderID] {
			continue
		}
		seen[link.SenderID] = true

		candidate, err := repos.Accounts.GetByID(ctx, link.SenderID)
		if err != nil {
			return nil, domain.Internal(err)
		}
		if err := valuation.Refresh(ctx, repos.Links, candidate); err != nil {
			return nil, domain.Internal(err)
		}
		if candidate.HasDeficit() {
			participants = append(participants, candidate)
		}
	}

	if err := valuation.Refresh(ctx, repos.Links, account); err != nil {
		return nil, domain.Internal(err)
	}
	if account.HasDeficit() {
		participants = append(participants, account)
	}

	return participants, nil
}
