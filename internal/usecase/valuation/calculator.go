package valuation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// Value calculates the net worth of an account
// Logic:
//   - Obligation: sum of link amounts where the account is the sender
//   - Income: sum of link amounts where the account is the receiver
//   - Value: Balance + Auxiliary + Obligation - Income
//
// Accounts without links sum to zero on both sides.
func Value(ctx context.Context, links domain.LinkRepository, account *domain.Account) (decimal.Decimal, error) {
	obligation, err := links.Sum(ctx, domain.OutgoingLinks(account.ID), domain.LinkSumAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum outgoing links: %w", err)
	}

	income, err := links.Sum(ctx, domain.IncomingLinks(account.ID), domain.LinkSumAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum incoming links: %w", err)
	}

	return account.Balance.Add(account.Auxiliary).Add(obligation).Sub(income), nil
}

// PublicRate calculates the link-weighted average fee rate an account imposes as a sender
// Logic: Sum(amount * feeRate) / Sum(amount) over outgoing links
// Safety: With no outstanding outgoing amount the current rate is returned unchanged,
// so an account keeps its rate history between obligations.
func PublicRate(ctx context.Context, links domain.LinkRepository, account *domain.Account) (decimal.Decimal, error) {
	filter := domain.OutgoingLinks(account.ID)

	totalAmount, err := links.Sum(ctx, filter, domain.LinkSumAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum outgoing link amounts: %w", err)
	}

	if totalAmount.IsZero() {
		return account.PublicRate, nil
	}

	weighted, err := links.Sum(ctx, filter, domain.LinkSumWeightedRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum weighted outgoing fee rates: %w", err)
	}

	return weighted.Div(totalAmount), nil
}

// Refresh recomputes the stored value of every given account in place
func Refresh(ctx context.Context, links domain.LinkRepository, accounts ...*domain.Account) error {
	for _, account := range accounts {
		value, err := Value(ctx, links, account)
		if err != nil {
			return err
		}
		account.Value = value
	}
	return nil
}
