package domain

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account represents a balance-holding participant of the ledger
type Account struct {
	ID                 uuid.UUID
	AccountNumber      string // External key used by deposit, withdraw and transfer
	Name               string
	Balance            decimal.Decimal // Settled, spendable cash
	Auxiliary          decimal.Decimal // Fee reserve waiting to be distributed
	Value              decimal.Decimal // Derived: balance + auxiliary + outgoing links - incoming links
	PublicRate         decimal.Decimal // Link-weighted average outgoing fee rate
	Trigger            int
	TransactionCount   int
	TransactionHistory []uuid.UUID
}

// Validate ensures the account adheres to domain rules
func (a *Account) Validate() error {
	if a.AccountNumber == "" {
		return errors.New("account number cannot be empty")
	}

	if a.Trigger < 0 {
		return errors.New("account trigger cannot be negative")
	}

	if a.TransactionCount < 0 {
		return errors.New("account transaction count cannot be negative")
	}

	return nil
}

// IsDistributionEligible reports whether the account has crossed its distribution threshold
func (a *Account) IsDistributionEligible() bool {
	return a.TransactionCount >= a.Trigger+1
}

// HasDeficit reports whether the account carries obligations not yet settled in cash.
// Value must be current when this is called.
func (a *Account) HasDeficit() bool {
	return a.Balance.LessThan(a.Value)
}

// AppendTransaction records a transaction id in the account history
func (a *Account) AppendTransaction(id uuid.UUID) {
	a.TransactionHistory = append(a.TransactionHistory, id)
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	c := *a
	c.TransactionHistory = append([]uuid.UUID(nil), a.TransactionHistory...)
	return &c
}
