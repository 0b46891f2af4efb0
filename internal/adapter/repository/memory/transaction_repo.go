package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	st *state
}

// Create appends a new transaction
func (r *transactionRepository) Create(_ context.Context, tx *domain.Transaction) error {
	if _, exists := r.st.transactions[tx.ID]; exists {
		return fmt.Errorf("transaction %s already exists", tx.ID)
	}
	stored := *tx
	r.st.transactions[tx.ID] = &stored
	r.st.txOrder = append(r.st.txOrder, tx.ID)
	return nil
}

// GetByID retrieves a transaction by its ID
func (r *transactionRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx, ok := r.st.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found: %w", id, domain.ErrNotFound)
	}
	c := *tx
	return &c, nil
}

// List retrieves a paginated list of transactions, oldest first
func (r *transactionRepository) List(_ context.Context, limit, offset int) ([]*domain.Transaction, error) {
	txs := make([]*domain.Transaction, 0)
	if offset >= len(r.st.txOrder) {
		return txs, nil
	}

	end := len(r.st.txOrder)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	for _, id := range r.st.txOrder[offset:end] {
		c := *r.st.transactions[id]
		txs = append(txs, &c)
	}
	return txs, nil
}

// distributionRepository implements domain.DistributionRepository
type distributionRepository struct {
	st *state
}

// Create appends a new distribution record
func (r *distributionRepository) Create(_ context.Context, record *domain.DistributionRecord) error {
	stored := *record
	r.st.distributions = append(r.st.distributions, &stored)
	return nil
}

// ListByAccount retrieves the records where the account is distributor or participant
func (r *distributionRepository) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*domain.DistributionRecord, error) {
	records := make([]*domain.DistributionRecord, 0)
	for _, record := range r.st.distributions {
		if record.DistributorID == accountID || record.ParticipantID == accountID {
			c := *record
			records = append(records, &c)
		}
	}
	return records, nil
}
