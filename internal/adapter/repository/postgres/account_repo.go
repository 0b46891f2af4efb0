package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/simaogato/linkledger-backend/internal/domain"
)

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	q querier
}

const accountColumns = `id, account_number, name, balance, auxiliary, value, public_rate,
		distribution_trigger, transaction_count, transaction_history`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// GetByID retrieves an account by its ID and locks it for the rest of the transaction
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s not found: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return account, nil
}

// GetByAccountNumber retrieves an account by its external key and locks it
func (r *accountRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRowContext(ctx, query, accountNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %q not found: %w", accountNumber, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by number: %w", err)
	}
	return account, nil
}

// List retrieves every account in creation order
func (r *accountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY seq`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// Create creates a new account
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(ctx, query,
		account.ID,
		account.AccountNumber,
		account.Name,
		account.Balance.String(),
		account.Auxiliary.String(),
		account.Value.String(),
		account.PublicRate.String(),
		account.Trigger,
		account.TransactionCount,
		historyArray(account.TransactionHistory),
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Save persists every mutable field of an existing account
func (r *accountRepository) Save(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, balance = $3, auxiliary = $4, value = $5, public_rate = $6,
			distribution_trigger = $7, transaction_count = $8, transaction_history = $9
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Balance.String(),
		account.Auxiliary.String(),
		account.Value.String(),
		account.PublicRate.String(),
		account.Trigger,
		account.TransactionCount,
		historyArray(account.TransactionHistory),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account %s not found: %w", account.ID, domain.ErrNotFound)
	}
	return nil
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var balanceStr, auxiliaryStr, valueStr, rateStr string
	var history pq.StringArray

	err := row.Scan(
		&account.ID,
		&account.AccountNumber,
		&account.Name,
		&balanceStr,
		&auxiliaryStr,
		&valueStr,
		&rateStr,
		&account.Trigger,
		&account.TransactionCount,
		&history,
	)
	if err != nil {
		return nil, err
	}

	if account.Balance, err = parseDecimal("balance", balanceStr); err != nil {
		return nil, err
	}
	if account.Auxiliary, err = parseDecimal("auxiliary", auxiliaryStr); err != nil {
		return nil, err
	}
	if account.Value, err = parseDecimal("value", valueStr); err != nil {
		return nil, err
	}
	if account.PublicRate, err = parseDecimal("public_rate", rateStr); err != nil {
		return nil, err
	}

	account.TransactionHistory = make([]uuid.UUID, 0, len(history))
	for _, raw := range history {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction_history entry: %w", err)
		}
		account.TransactionHistory = append(account.TransactionHistory, id)
	}

	return &account, nil
}

func historyArray(ids []uuid.UUID) pq.StringArray {
	history := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		history = append(history, id.String())
	}
	return history
}

func parseDecimal(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return d, nil
}
