package postgres

import (
	"context"
	"fmt"

	"github.com/simaogato/linkledger-backend/internal/domain"
)

// Store implements domain.UnitOfWork on top of database transactions.
// Reads that precede a write lock their rows with SELECT ... FOR UPDATE.
type Store struct {
	db *DB
}

// NewStore creates a new postgres-backed unit of work
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

var _ domain.UnitOfWork = (*Store)(nil)

// Do runs fn inside a database transaction, committing when it returns nil
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	repos := domain.Repositories{
		Accounts:      &accountRepository{q: dbTx},
		Links:         &linkRepository{q: dbTx},
		Transactions:  &transactionRepository{q: dbTx},
		Distributions: &distributionRepository{q: dbTx},
	}

	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
