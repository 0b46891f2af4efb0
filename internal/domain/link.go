package domain

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Link represents a directed obligation between two accounts created by a fee-bearing transfer.
// There is at most one link per ordered (sender, receiver) pair.
type Link struct {
	ID           uuid.UUID
	SenderID     uuid.UUID
	ReceiverID   uuid.UUID
	SenderName   string
	ReceiverName string
	Amount       decimal.Decimal // Remaining obligation, deleted when it reaches zero
	FeeRate      decimal.Decimal
}

// LinkFilter selects links by endpoint. Nil fields match any account.
type LinkFilter struct {
	SenderID   *uuid.UUID
	ReceiverID *uuid.UUID
}

// Matches reports whether the link satisfies the filter
func (f LinkFilter) Matches(l *Link) bool {
	if f.SenderID != nil && *f.SenderID != l.SenderID {
		return false
	}
	if f.ReceiverID != nil && *f.ReceiverID != l.ReceiverID {
		return false
	}
	return true
}

// OutgoingLinks selects links sent by the account
func OutgoingLinks(accountID uuid.UUID) LinkFilter {
	return LinkFilter{SenderID: &accountID}
}

// IncomingLinks selects links received by the account
func IncomingLinks(accountID uuid.UUID) LinkFilter {
	return LinkFilter{ReceiverID: &accountID}
}

// LinkSumField names the quantity aggregated by LinkRepository.Sum
type LinkSumField string

const (
	LinkSumAmount       LinkSumField = "AMOUNT"
	LinkSumWeightedRate LinkSumField = "AMOUNT_X_FEE_RATE"
)

// Validate ensures the link adheres to domain rules
func (l *Link) Validate() error {
	if l.SenderID == uuid.Nil || l.ReceiverID == uuid.Nil {
		return errors.New("link must have a sender and a receiver")
	}

	if l.Amount.LessThan(decimal.Zero) {
		return errors.New("link amount cannot be negative")
	}

	if l.FeeRate.LessThan(decimal.Zero) {
		return errors.New("link fee rate cannot be negative")
	}

	return nil
}

// Accumulate merges a new obligation into the link.
// The stored fee rate becomes the amount-weighted average of both parts.
func (l *Link) Accumulate(amount, feeRate decimal.Decimal) {
	combined := l.Amount.Add(amount)
	if !combined.IsZero() {
		weighted := l.Amount.Mul(l.FeeRate).Add(amount.Mul(feeRate))
		l.FeeRate = weighted.Div(combined)
	}
	l.Amount = combined
}

// Contribution returns the link's value for the given aggregation field
func (l *Link) Contribution(field LinkSumField) decimal.Decimal {
	if field == LinkSumWeightedRate {
		return l.Amount.Mul(l.FeeRate)
	}
	return l.Amount
}
