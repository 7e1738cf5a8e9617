package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS account_users (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id              BIGSERIAL PRIMARY KEY,
		user_id         BIGINT NOT NULL REFERENCES account_users (id),
		account_number  CHAR(10) NOT NULL UNIQUE,
		status          TEXT NOT NULL,
		balance         BIGINT NOT NULL CHECK (balance >= 0),
		registered_at   TIMESTAMPTZ NOT NULL,
		unregistered_at TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts (user_id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id               BIGSERIAL PRIMARY KEY,
		transaction_id   CHAR(32) NOT NULL UNIQUE,
		account_id       BIGINT NOT NULL REFERENCES accounts (id),
		type             TEXT NOT NULL,
		result           TEXT NOT NULL,
		amount           BIGINT NOT NULL,
		balance_snapshot BIGINT NOT NULL,
		transacted_at    TIMESTAMPTZ NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions (account_id)`,
}

// EnsureSchema creates the ledger tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
