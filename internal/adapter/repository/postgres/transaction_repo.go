package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	q querier
}

const transactionColumns = `id, sender_id, receiver_id, sender_account_number, receiver_account_number,
		sender_name, receiver_name, amount, fee_rate, initial_sender_balance, final_sender_balance, created_at`

// Create appends a new transaction
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.q.ExecContext(ctx, query,
		tx.ID,
		tx.SenderID,
		tx.ReceiverID,
		tx.SenderAccountNumber,
		tx.ReceiverAccountNumber,
		tx.SenderName,
		tx.ReceiverName,
		tx.Amount.String(),
		tx.FeeRate.String(),
		tx.InitialSenderBalance.String(),
		tx.FinalSenderBalance.String(),
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by its ID
func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction %s not found: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// List retrieves a paginated list of transactions, oldest first
func (r *transactionRepository) List(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY seq LIMIT $1 OFFSET $2`

	rows, err := r.q.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amountStr, rateStr, initialStr, finalStr string

	err := row.Scan(
		&tx.ID,
		&tx.SenderID,
		&tx.ReceiverID,
		&tx.SenderAccountNumber,
		&tx.ReceiverAccountNumber,
		&tx.SenderName,
		&tx.ReceiverName,
		&amountStr,
		&rateStr,
		&initialStr,
		&finalStr,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tx.Amount, err = parseDecimal("amount", amountStr); err != nil {
		return nil, err
	}
	if tx.FeeRate, err = parseDecimal("fee_rate", rateStr); err != nil {
		return nil, err
	}
	if tx.InitialSenderBalance, err = parseDecimal("initial_sender_balance", initialStr); err != nil {
		return nil, err
	}
	if tx.FinalSenderBalance, err = parseDecimal("final_sender_balance", finalStr); err != nil {
		return nil, err
	}
	return &tx, nil
}

// distributionRepository implements domain.DistributionRepository
type distributionRepository struct {
	q querier
}

// Create appends a new distribution record
func (r *distributionRepository) Create(ctx context.Context, record *domain.DistributionRecord) error {
	query := `
		INSERT INTO distributions (id, distributor_id, participant_id, link_id, share, fully_settled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var linkID interface{}
	if record.LinkID != nil {
		linkID = *record.LinkID
	}

	_, err := r.q.ExecContext(ctx, query,
		record.ID,
		record.DistributorID,
		record.ParticipantID,
		linkID,
		record.Share.String(),
		record.FullySettled,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert distribution record: %w", err)
	}
	return nil
}

// ListByAccount retrieves the records where the account is distributor or participant
func (r *distributionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.DistributionRecord, error) {
	query := `
		SELECT id, distributor_id, participant_id, link_id, share, fully_settled, created_at
		FROM distributions
		WHERE distributor_id = $1 OR participant_id = $1
		ORDER BY seq
	`

	rows, err := r.q.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list distribution records: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.DistributionRecord, 0)
	for rows.Next() {
		var record domain.DistributionRecord
		var linkID uuid.NullUUID
		var shareStr string

		if err := rows.Scan(
			&record.ID,
			&record.DistributorID,
			&record.ParticipantID,
			&linkID,
			&shareStr,
			&record.FullySettled,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan distribution record: %w", err)
		}

		if linkID.Valid {
			id := linkID.UUID
			record.LinkID = &id
		}
		if record.Share, err = parseDecimal("share", shareStr); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate distribution records: %w", err)
	}
	return records, nil
}
