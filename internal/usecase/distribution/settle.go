package distribution

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/linkledger-backend/internal/domain"
	"github.com/simaogato/linkledger-backend/internal/usecase/valuation"
)

// settle moves one share from the distributor's reserve to the participant
// Logic:
//   - Self: Balance += share, Auxiliary -= share on the distributor itself
//   - Otherwise the link participant -> distributor is paid down:
//   - share >= link amount: share is capped at the link amount, the link is deleted
//     and the participant's public rate is recomputed
//   - share < link amount: the link amount is decremented in place, rate untouched
//
// A missing link makes the step a no-op. Returns nil when nothing moved.
func (e *Engine) settle(
	ctx context.Context,
	repos domain.Repositories,
	distributor *domain.Account,
	participant *domain.Account,
	share decimal.Decimal,
) (*domain.DistributionRecord, error) {
	log := e.Logger.WithFields(logrus.Fields{
		"distributor_id": distributor.ID,
		"participant_id": participant.ID,
		"share":          share.String(),
	})

	if share.IsZero() {
		return nil, nil
	}

	if participant.ID == distributor.ID {
		distributor.Balance = distributor.Balance.Add(share)
		distributor.Auxiliary = distributor.Auxiliary.Sub(share)
		if err := repos.Accounts.Save(ctx, distributor); err != nil {
			return nil, domain.Internal(err)
		}

		log.Debug("distributor paid itself from its reserve")
		return e.record(ctx, repos, distributor, participant, nil, share, false)
	}

	link, err := repos.Links.FindPair(ctx, participant.ID, distributor.ID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("no link between participant and distributor, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, domain.Internal(err)
	}

	fullySettled := share.GreaterThanOrEqual(link.Amount)
	if fullySettled {
		share = link.Amount
	}

	participant.Balance = participant.Balance.Add(share)
	distributor.Auxiliary = distributor.Auxiliary.Sub(share)

	if fullySettled {
		if err := repos.Links.Delete(ctx, link.ID); err != nil {
			return nil, domain.Internal(err)
		}
		rate, err := valuation.PublicRate(ctx, repos.Links, participant)
		if err != nil {
			return nil, domain.Internal(err)
		}
		participant.PublicRate = rate
	} else {
		if err := repos.Links.IncrementAmount(ctx, link.ID, share.Neg()); err != nil {
			return nil, domain.Internal(err)
		}
	}

	if err := valuation.Refresh(ctx, repos.Links, participant, distributor); err != nil {
		return nil, domain.Internal(err)
	}
	if err := repos.Accounts.Save(ctx, participant); err != nil {
		return nil, domain.Internal(err)
	}
	if err := repos.Accounts.Save(ctx, distributor); err != nil {
		return nil, domain.Internal(err)
	}

	log.WithFields(logrus.Fields{
		"link_id":       link.ID,
		"paid":          share.String(),
		"fully_settled": fullySettled,
	}).Debug("link settled")

	return e.record(ctx, repos, distributor, participant, &link.ID, share, fullySettled)
}

func (e *Engine) record(
	ctx context.Context,
	repos domain.Repositories,
	distributor *domain.Account,
	participant *domain.Account,
	linkID *uuid.UUID,
	share decimal.Decimal,
	fullySettled bool,
) (*domain.DistributionRecord, error) {
	record := &domain.DistributionRecord{
		ID:            uuid.New(),
		DistributorID: distributor.ID,
		ParticipantID: participant.ID,
		LinkID:        linkID,
		Share:         share,
		FullySettled:  fullySettled,
		CreatedAt:     e.now(),
	}
	if err := repos.Distributions.Create(ctx, record); err != nil {
		return nil, domain.Internal(err)
	}
	return record, nil
}
