package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	st *state
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	account, ok := r.st.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s not found: %w", id, domain.ErrNotFound)
	}
	return account.Clone(), nil
}

// GetByAccountNumber retrieves an account by its external key
func (r *accountRepository) GetByAccountNumber(_ context.Context, accountNumber string) (*domain.Account, error) {
	for _, id := range r.st.accountOrder {
		if account := r.st.accounts[id]; account.AccountNumber == accountNumber {
			return account.Clone(), nil
		}
	}
	return nil, fmt.Errorf("account %q not found: %w", accountNumber, domain.ErrNotFound)
}

// List retrieves every account in insertion order
func (r *accountRepository) List(_ context.Context) ([]*domain.Account, error) {
	accounts := make([]*domain.Account, 0, len(r.st.accountOrder))
	for _, id := range r.st.accountOrder {
		accounts = append(accounts, r.st.accounts[id].Clone())
	}
	return accounts, nil
}

// Create creates a new account
func (r *accountRepository) Create(_ context.Context, account *domain.Account) error {
	if _, exists := r.st.accounts[account.ID]; exists {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	for _, existing := range r.st.accounts {
		if existing.AccountNumber == account.AccountNumber {
			return fmt.Errorf("account number %q already exists", account.AccountNumber)
		}
	}

	r.st.accounts[account.ID] = account.Clone()
	r.st.accountOrder = append(r.st.accountOrder, account.ID)
	return nil
}

// Save persists every mutable field of an existing account
func (r *accountRepository) Save(_ context.Context, account *domain.Account) error {
	if _, exists := r.st.accounts[account.ID]; !exists {
		return fmt.Errorf("account %s not found: %w", account.ID, domain.ErrNotFound)
	}
	r.st.accounts[account.ID] = account.Clone()
	return nil
}
