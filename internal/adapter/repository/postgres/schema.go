package postgres

import (
	"context"
	"fmt"
)

// schema is applied in order; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		account_number TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		balance NUMERIC NOT NULL DEFAULT 0,
		auxiliary NUMERIC NOT NULL DEFAULT 0,
		value NUMERIC NOT NULL DEFAULT 0,
		public_rate NUMERIC NOT NULL DEFAULT 0,
		distribution_trigger INTEGER NOT NULL DEFAULT 0 CHECK (distribution_trigger >= 0),
		transaction_count INTEGER NOT NULL DEFAULT 0 CHECK (transaction_count >= 0),
		transaction_history UUID[] NOT NULL DEFAULT '{}',
		seq BIGSERIAL
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		id UUID PRIMARY KEY,
		sender_id UUID NOT NULL REFERENCES accounts(id),
		receiver_id UUID NOT NULL REFERENCES accounts(id),
		sender_name TEXT NOT NULL DEFAULT '',
		receiver_name TEXT NOT NULL DEFAULT '',
		amount NUMERIC NOT NULL CHECK (amount >= 0),
		fee_rate NUMERIC NOT NULL CHECK (fee_rate >= 0),
		seq BIGSERIAL,
		UNIQUE (sender_id, receiver_id)
	)`,
	`CREATE INDEX IF NOT EXISTS links_receiver_idx ON links (receiver_id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		sender_id UUID NOT NULL REFERENCES accounts(id),
		receiver_id UUID NOT NULL REFERENCES accounts(id),
		sender_account_number TEXT NOT NULL,
		receiver_account_number TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		receiver_name TEXT NOT NULL DEFAULT '',
		amount NUMERIC NOT NULL,
		fee_rate NUMERIC NOT NULL,
		initial_sender_balance NUMERIC NOT NULL,
		final_sender_balance NUMERIC NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		seq BIGSERIAL
	)`,
	`CREATE TABLE IF NOT EXISTS distributions (
		id UUID PRIMARY KEY,
		distributor_id UUID NOT NULL REFERENCES accounts(id),
		participant_id UUID NOT NULL REFERENCES accounts(id),
		link_id UUID,
		share NUMERIC NOT NULL,
		fully_settled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		seq BIGSERIAL
	)`,
	`CREATE INDEX IF NOT EXISTS distributions_accounts_idx ON distributions (distributor_id, participant_id)`,
}

// Migrate creates the ledger tables when they do not exist yet
func Migrate(ctx context.Context, db *DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
