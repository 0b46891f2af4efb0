package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// EligibilityIndex is an in-process domain.EligibilityIndex that preserves marking order
type EligibilityIndex struct {
	mu    sync.Mutex
	order []uuid.UUID
	set   map[uuid.UUID]struct{}
}

// NewEligibilityIndex creates an empty index
func NewEligibilityIndex() *EligibilityIndex {
	return &EligibilityIndex{set: make(map[uuid.UUID]struct{})}
}

var _ domain.EligibilityIndex = (*EligibilityIndex)(nil)

// Mark adds an account to the index. Marking twice is a no-op.
func (i *EligibilityIndex) Mark(_ context.Context, accountID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.set[accountID]; ok {
		return nil
	}
	i.set[accountID] = struct{}{}
	i.order = append(i.order, accountID)
	return nil
}

// Remove drops an account from the index
func (i *EligibilityIndex) Remove(_ context.Context, accountID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.set[accountID]; !ok {
		return nil
	}
	delete(i.set, accountID)
	for n, id := range i.order {
		if id == accountID {
			i.order = append(i.order[:n], i.order[n+1:]...)
			break
		}
	}
	return nil
}

// List returns a copy of the indexed accounts in marking order
func (i *EligibilityIndex) List(_ context.Context) ([]uuid.UUID, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]uuid.UUID(nil), i.order...), nil
}
