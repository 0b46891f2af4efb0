package seeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// SystemAccount defines an account that must exist before the ledger serves requests
type SystemAccount struct {
	ID            uuid.UUID
	AccountNumber string
	Name          string
	Trigger       int
}

// SystemSeeder handles seeding of required system accounts
type SystemSeeder struct {
	uow      domain.UnitOfWork
	accounts []SystemAccount
}

// NewSystemSeeder creates a new SystemSeeder instance
func NewSystemSeeder(uow domain.UnitOfWork, accounts ...SystemAccount) *SystemSeeder {
	return &SystemSeeder{
		uow:      uow,
		accounts: accounts,
	}
}

// Seed ensures all system accounts exist
// Missing accounts are created empty; an existing account keeps its balances
// but has its trigger aligned with the configured one.
func (s *SystemSeeder) Seed(ctx context.Context) error {
	return s.uow.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		for _, sys := range s.accounts {
			existing, err := repos.Accounts.GetByID(ctx, sys.ID)
			if err == nil {
				if existing.Trigger == sys.Trigger {
					continue
				}
				existing.Trigger = sys.Trigger
				if err := repos.Accounts.Save(ctx, existing); err != nil {
					return fmt.Errorf("failed to update system account %s: %w", sys.AccountNumber, err)
				}
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("failed to load system account %s: %w", sys.AccountNumber, err)
			}

			account := &domain.Account{
				ID:            sys.ID,
				AccountNumber: sys.AccountNumber,
				Name:          sys.Name,
				Balance:       decimal.Zero,
				Auxiliary:     decimal.Zero,
				Value:         decimal.Zero,
				PublicRate:    decimal.Zero,
				Trigger:       sys.Trigger,
			}

			// Validate before creating
			if err := account.Validate(); err != nil {
				return fmt.Errorf("invalid system account %s: %w", sys.AccountNumber, err)
			}

			if err := repos.Accounts.Create(ctx, account); err != nil {
				return fmt.Errorf("failed to create system account %s: %w", sys.AccountNumber, err)
			}
		}
		return nil
	})
}
