package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// linkRepository implements domain.LinkRepository
type linkRepository struct {
	q querier
}

const linkColumns = `id, sender_id, receiver_id, sender_name, receiver_name, amount, fee_rate`

// Find retrieves the links matching the filter in creation order
func (r *linkRepository) Find(ctx context.Context, filter domain.LinkFilter) ([]*domain.Link, error) {
	where, args := linkWhere(filter)
	query := `SELECT ` + linkColumns + ` FROM links` + where + ` ORDER BY seq`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find links: %w", err)
	}
	defer rows.Close()

	links := make([]*domain.Link, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate links: %w", err)
	}
	return links, nil
}

// FindPair retrieves and locks the link for an ordered (sender, receiver) pair
func (r *linkRepository) FindPair(ctx context.Context, senderID, receiverID uuid.UUID) (*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE sender_id = $1 AND receiver_id = $2 FOR UPDATE`

	link, err := scanLink(r.q.QueryRowContext(ctx, query, senderID, receiverID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("link %s -> %s not found: %w", senderID, receiverID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// Sum aggregates a field over the links matching the filter
func (r *linkRepository) Sum(ctx context.Context, filter domain.LinkFilter, field domain.LinkSumField) (decimal.Decimal, error) {
	var expr string
	switch field {
	case domain.LinkSumAmount:
		expr = "amount"
	case domain.LinkSumWeightedRate:
		expr = "amount * fee_rate"
	default:
		return decimal.Zero, fmt.Errorf("unsupported link sum field %q", field)
	}

	where, args := linkWhere(filter)
	query := `SELECT COALESCE(SUM(` + expr + `), 0) FROM links` + where

	var totalStr string
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&totalStr); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum links: %w", err)
	}
	return parseDecimal("link sum", totalStr)
}

// UpsertOrAccumulate creates the link for its pair, or merges it into the existing one
// The merge blends the fee rate by amount and keeps the old rate when the combined amount is zero.
func (r *linkRepository) UpsertOrAccumulate(ctx context.Context, link *domain.Link) (*domain.Link, error) {
	if err := link.Validate(); err != nil {
		return nil, err
	}

	id := link.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	// SET expressions read the pre-update row, so both columns blend from the old amount
	query := `
		INSERT INTO links (` + linkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sender_id, receiver_id) DO UPDATE SET
			fee_rate = CASE
				WHEN links.amount + EXCLUDED.amount = 0 THEN links.fee_rate
				ELSE (links.amount * links.fee_rate + EXCLUDED.amount * EXCLUDED.fee_rate) / (links.amount + EXCLUDED.amount)
			END,
			amount = links.amount + EXCLUDED.amount
		RETURNING ` + linkColumns

	stored, err := scanLink(r.q.QueryRowContext(ctx, query,
		id,
		link.SenderID,
		link.ReceiverID,
		link.SenderName,
		link.ReceiverName,
		link.Amount.String(),
		link.FeeRate.String(),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert link: %w", err)
	}
	return stored, nil
}

// IncrementAmount adds delta to the link amount, refusing to make it negative
func (r *linkRepository) IncrementAmount(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	query := `UPDATE links SET amount = amount + $2 WHERE id = $1 AND amount + $2 >= 0`

	result, err := r.q.ExecContext(ctx, query, id, delta.String())
	if err != nil {
		return fmt.Errorf("failed to increment link amount: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM links WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check link existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("link %s not found: %w", id, domain.ErrNotFound)
	}
	return fmt.Errorf("link %s amount would become negative", id)
}

// Delete removes a link
func (r *linkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("link %s not found: %w", id, domain.ErrNotFound)
	}
	return nil
}

// linkWhere renders the filter as a WHERE clause with positional arguments
func linkWhere(filter domain.LinkFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.SenderID != nil {
		args = append(args, *filter.SenderID)
		conditions = append(conditions, fmt.Sprintf("sender_id = $%d", len(args)))
	}
	if filter.ReceiverID != nil {
		args = append(args, *filter.ReceiverID)
		conditions = append(conditions, fmt.Sprintf("receiver_id = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var link domain.Link
	var amountStr, rateStr string

	err := row.Scan(
		&link.ID,
		&link.SenderID,
		&link.ReceiverID,
		&link.SenderName,
		&link.ReceiverName,
		&amountStr,
		&rateStr,
	)
	if err != nil {
		return nil, err
	}

	if link.Amount, err = parseDecimal("amount", amountStr); err != nil {
		return nil, err
	}
	if link.FeeRate, err = parseDecimal("fee_rate", rateStr); err != nil {
		return nil, err
	}
	return &link, nil
}
