package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// state holds every record. Slices keep insertion order so scans are deterministic.
type state struct {
	accounts      map[uuid.UUID]*domain.Account
	accountOrder  []uuid.UUID
	links         map[uuid.UUID]*domain.Link
	linkOrder     []uuid.UUID
	transactions  map[uuid.UUID]*domain.Transaction
	txOrder       []uuid.UUID
	distributions []*domain.DistributionRecord
}

func newState() *state {
	return &state{
		accounts:     make(map[uuid.UUID]*domain.Account),
		links:        make(map[uuid.UUID]*domain.Link),
		transactions: make(map[uuid.UUID]*domain.Transaction),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, a := range s.accounts {
		c.accounts[id] = a.Clone()
	}
	for id, l := range s.links {
		link := *l
		c.links[id] = &link
	}
	// Transactions and distribution records are immutable once written
	for id, tx := range s.transactions {
		c.transactions[id] = tx
	}
	c.accountOrder = append(c.accountOrder, s.accountOrder...)
	c.linkOrder = append(c.linkOrder, s.linkOrder...)
	c.txOrder = append(c.txOrder, s.txOrder...)
	c.distributions = append(c.distributions, s.distributions...)
	return c
}

// Store is an in-memory implementation of domain.UnitOfWork.
// Units of work are serialised; a failed unit restores the state it started from.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{st: newState()}
}

var _ domain.UnitOfWork = (*Store)(nil)

// Do runs fn with exclusive access to the store
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.st.clone()
	repos := domain.Repositories{
		Accounts:      &accountRepository{st: s.st},
		Links:         &linkRepository{st: s.st},
		Transactions:  &transactionRepository{st: s.st},
		Distributions: &distributionRepository{st: s.st},
	}

	if err := fn(ctx, repos); err != nil {
		*s.st = *snapshot
		return err
	}

	return nil
}
