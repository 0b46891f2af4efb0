package transfer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/linkledger-backend/internal/domain"
)

const maxListLimit = 500

// OpenAccountInput represents the input for opening a new account
type OpenAccountInput struct {
	AccountNumber string
	Name          string
	Trigger       int
	PublicRate    decimal.Decimal
}

// OpenAccount creates an empty account with no balance and no links
func (s *TransferService) OpenAccount(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	account := &domain.Account{
		ID:            uuid.New(),
		AccountNumber: input.AccountNumber,
		Name:          input.Name,
		PublicRate:    input.PublicRate,
		Trigger:       input.Trigger,
	}
	if err := account.Validate(); err != nil {
		return nil, domain.Validationf("%v", err)
	}
	if account.PublicRate.IsNegative() {
		return nil, domain.Validationf("public rate cannot be negative")
	}

	err := s.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if _, err := repos.Accounts.GetByAccountNumber(ctx, input.AccountNumber); err == nil {
			return domain.Validationf("account number %q already in use", input.AccountNumber)
		}
		return domain.Internal(repos.Accounts.Create(ctx, account))
	})
	if err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"account_id":     account.ID,
		"account_number": account.AccountNumber,
	}).Info("account opened")
	return account, nil
}

// GetAccount retrieves an account by its account number
func (s *TransferService) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	if accountNumber == "" {
		return nil, domain.Validationf("account number is required")
	}

	var account *domain.Account
	err := s.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		account, err = repos.Accounts.GetByAccountNumber(ctx, accountNumber)
		return domain.Internal(err)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetTransaction retrieves a single transaction
func (s *TransferService) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var tx *domain.Transaction
	err := s.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		tx, err = repos.Transactions.GetByID(ctx, id)
		return domain.Internal(err)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions returns a page of the transaction log, oldest first
func (s *TransferService) ListTransactions(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 || limit > maxListLimit {
		return nil, domain.Validationf("limit must be between 1 and %d", maxListLimit)
	}
	if offset < 0 {
		return nil, domain.Validationf("offset cannot be negative")
	}

	var txs []*domain.Transaction
	err := s.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		txs, err = repos.Transactions.List(ctx, limit, offset)
		return domain.Internal(err)
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// GetTransactionHistory returns the transactions an account took part in, in the order they happened
func (s *TransferService) GetTransactionHistory(ctx context.Context, accountID uuid.UUID) ([]*domain.Transaction, error) {
	var history []*domain.Transaction
	err := s.UnitOfWork.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		account, err := repos.Accounts.GetByID(ctx, accountID)
		if err != nil {
			return domain.Internal(err)
		}

		history = make([]*domain.Transaction, 0, len(account.TransactionHistory))
		for _, id := range account.TransactionHistory {
			tx, err := repos.Transactions.GetByID(ctx, id)
			if err != nil {
				// A dangling history entry is a store inconsistency, not a missing resource
				return fmt.Errorf("%w: history of account %s: %v", domain.ErrInternal, accountID, err)
			}
			history = append(history, tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}
