package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account persistence operations
type AccountRepository interface {
	// GetByID retrieves an account by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByAccountNumber retrieves an account by its external key
	GetByAccountNumber(ctx context.Context, accountNumber string) (*Account, error)

	// List retrieves every account in scan order
	List(ctx context.Context) ([]*Account, error)

	// Create creates a new account
	Create(ctx context.Context, account *Account) error

	// Save persists every mutable field of an existing account
	Save(ctx context.Context, account *Account) error
}

// LinkRepository defines the interface for link persistence operations
type LinkRepository interface {
	// Find retrieves the links matching the filter
	Find(ctx context.Context, filter LinkFilter) ([]*Link, error)

	// FindPair retrieves the link for an ordered (sender, receiver) pair
	// Returns an error wrapping ErrNotFound if no such link exists
	FindPair(ctx context.Context, senderID, receiverID uuid.UUID) (*Link, error)

	// Sum aggregates a field over the links matching the filter
	// An empty match sums to zero
	Sum(ctx context.Context, filter LinkFilter, field LinkSumField) (decimal.Decimal, error)

	// UpsertOrAccumulate creates the link for its pair, or merges it into the existing one
	// Returns the stored link
	UpsertOrAccumulate(ctx context.Context, link *Link) (*Link, error)

	// IncrementAmount adds delta (possibly negative) to the link amount
	IncrementAmount(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error

	// Delete removes a link
	Delete(ctx context.Context, id uuid.UUID) error
}

// TransactionRepository defines the interface for the append-only transaction log
type TransactionRepository interface {
	// Create appends a new transaction
	Create(ctx context.Context, tx *Transaction) error

	// GetByID retrieves a transaction by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// List retrieves a paginated list of transactions, oldest first
	List(ctx context.Context, limit, offset int) ([]*Transaction, error)
}

// DistributionRepository defines the interface for distribution record persistence
type DistributionRepository interface {
	// Create appends a new distribution record
	Create(ctx context.Context, record *DistributionRecord) error

	// ListByAccount retrieves the records where the account is distributor or participant
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*DistributionRecord, error)
}

// Repositories groups the stores reachable inside a unit of work
type Repositories struct {
	Accounts      AccountRepository
	Links         LinkRepository
	Transactions  TransactionRepository
	Distributions DistributionRepository
}

// UnitOfWork runs fn atomically: every write made through repos is committed
// when fn returns nil and discarded when it returns an error.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// EligibilityIndex tracks the accounts whose transaction count crossed their trigger
type EligibilityIndex interface {
	// Mark adds an account to the index
	Mark(ctx context.Context, accountID uuid.UUID) error

	// Remove drops an account from the index
	Remove(ctx context.Context, accountID uuid.UUID) error

	// List returns the indexed accounts
	List(ctx context.Context) ([]uuid.UUID, error)
}
