package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction represents one transfer between two accounts. It is never mutated after creation.
type Transaction struct {
	ID                    uuid.UUID
	SenderID              uuid.UUID
	ReceiverID            uuid.UUID
	SenderAccountNumber   string
	ReceiverAccountNumber string
	SenderName            string
	ReceiverName          string
	Amount                decimal.Decimal
	FeeRate               decimal.Decimal
	InitialSenderBalance  decimal.Decimal
	FinalSenderBalance    decimal.Decimal
	CreatedAt             time.Time
}

// Validate ensures the transaction adheres to domain rules
func (t *Transaction) Validate() error {
	if t.SenderID == uuid.Nil || t.ReceiverID == uuid.Nil {
		return errors.New("transaction must have a sender and a receiver")
	}

	if t.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("transaction amount must be positive")
	}

	if t.FeeRate.LessThan(decimal.Zero) {
		return errors.New("transaction fee rate cannot be negative")
	}

	// The pre-transfer balance is reconstructed arithmetically, so it can never be below the final one
	if t.InitialSenderBalance.LessThan(t.FinalSenderBalance) {
		return errors.New("initial sender balance cannot be below final sender balance")
	}

	return nil
}

// Fee returns the fee charged to the sender on top of the amount
func (t *Transaction) Fee() decimal.Decimal {
	return t.InitialSenderBalance.Sub(t.FinalSenderBalance).Sub(t.Amount)
}
