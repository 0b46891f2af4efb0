package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DistributionRecord captures one settlement step of a distribution round.
// LinkID is nil when the distributor paid itself out of its own reserve.
type DistributionRecord struct {
	ID            uuid.UUID
	DistributorID uuid.UUID
	ParticipantID uuid.UUID
	LinkID        *uuid.UUID
	Share         decimal.Decimal // Amount actually paid, after clamping to the link
	FullySettled  bool
	CreatedAt     time.Time
}

// IsSelfPayout reports whether the distributor paid itself
func (r *DistributionRecord) IsSelfPayout() bool {
	return r.DistributorID == r.ParticipantID
}
