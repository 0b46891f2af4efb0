package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// linkRepository implements domain.LinkRepository
type linkRepository struct {
	st *state
}

// Find retrieves the links matching the filter in creation order
func (r *linkRepository) Find(_ context.Context, filter domain.LinkFilter) ([]*domain.Link, error) {
	links := make([]*domain.Link, 0)
	for _, id := range r.st.linkOrder {
		link := r.st.links[id]
		if filter.Matches(link) {
			c := *link
			links = append(links, &c)
		}
	}
	return links, nil
}

// FindPair retrieves the link for an ordered (sender, receiver) pair
func (r *linkRepository) FindPair(_ context.Context, senderID, receiverID uuid.UUID) (*domain.Link, error) {
	link := r.findPair(senderID, receiverID)
	if link == nil {
		return nil, fmt.Errorf("link %s -> %s not found: %w", senderID, receiverID, domain.ErrNotFound)
	}
	c := *link
	return &c, nil
}

func (r *linkRepository) findPair(senderID, receiverID uuid.UUID) *domain.Link {
	for _, id := range r.st.linkOrder {
		link := r.st.links[id]
		if link.SenderID == senderID && link.ReceiverID == receiverID {
			return link
		}
	}
	return nil
}

// Sum aggregates a field over the links matching the filter
func (r *linkRepository) Sum(_ context.Context, filter domain.LinkFilter, field domain.LinkSumField) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, link := range r.st.links {
		if filter.Matches(link) {
			total = total.Add(link.Contribution(field))
		}
	}
	return total, nil
}

// UpsertOrAccumulate creates the link for its pair, or merges it into the existing one
func (r *linkRepository) UpsertOrAccumulate(_ context.Context, link *domain.Link) (*domain.Link, error) {
	if err := link.Validate(); err != nil {
		return nil, err
	}

	if existing := r.findPair(link.SenderID, link.ReceiverID); existing != nil {
		existing.Accumulate(link.Amount, link.FeeRate)
		c := *existing
		return &c, nil
	}

	stored := *link
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	r.st.links[stored.ID] = &stored
	r.st.linkOrder = append(r.st.linkOrder, stored.ID)

	c := stored
	return &c, nil
}

// IncrementAmount adds delta to the link amount
func (r *linkRepository) IncrementAmount(_ context.Context, id uuid.UUID, delta decimal.Decimal) error {
	link, ok := r.st.links[id]
	if !ok {
		return fmt.Errorf("link %s not found: %w", id, domain.ErrNotFound)
	}

	amount := link.Amount.Add(delta)
	if amount.LessThan(decimal.Zero) {
		return fmt.Errorf("link %s amount would become negative", id)
	}
	link.Amount = amount
	return nil
}

// Delete removes a link
func (r *linkRepository) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.st.links[id]; !ok {
		return fmt.Errorf("link %s not found: %w", id, domain.ErrNotFound)
	}

	delete(r.st.links, id)
	for i, linkID := range r.st.linkOrder {
		if linkID == id {
			r.st.linkOrder = append(r.st.linkOrder[:i], r.st.linkOrder[i+1:]...)
			break
		}
	}
	return nil
}
