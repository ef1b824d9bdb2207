package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name VARCHAR(255),
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT UNIQUE NOT NULL,
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		event_type VARCHAR(100) NOT NULL,
		event_data JSONB,
		event_metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id UUID PRIMARY KEY,
		user_id UUID REFERENCES users(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type VARCHAR(10) NOT NULL,
		amount NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
		category_id UUID NOT NULL REFERENCES categories(id),
		description VARCHAR(500) NOT NULL,
		transaction_date DATE NOT NULL,
		source VARCHAR(20) NOT NULL DEFAULT 'manual',
		recurring_id UUID,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS budgets (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		category_id UUID NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		amount NUMERIC(12, 2) NOT NULL,
		spent NUMERIC(12, 2) NOT NULL DEFAULT 0,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS recurring_transactions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type VARCHAR(10) NOT NULL,
		amount NUMERIC(12, 2) NOT NULL CHECK (amount > 0),
		category_id UUID NOT NULL REFERENCES categories(id),
		description VARCHAR(500),
		frequency VARCHAR(20) NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE,
		next_occurrence DATE NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		occurrences_processed INTEGER NOT NULL DEFAULT 0,
		max_occurrences INTEGER,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, transaction_date)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_recurring ON transactions(recurring_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_recurring_date ON transactions(recurring_id, transaction_date) WHERE recurring_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_budgets_user_category ON budgets(user_id, category_id)`,
	`CREATE INDEX IF NOT EXISTS idx_recurring_user ON recurring_transactions(user_id, next_occurrence)`,
	`CREATE INDEX IF NOT EXISTS idx_recurring_due ON recurring_transactions(next_occurrence) WHERE is_active`,
}

// Migrate creates the schema. Every statement is idempotent, so it runs on each start.
func Migrate(ctx context.Context, db *sql.DB) error {
	slog.Info("running database migrations", "statements", len(schema))
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	slog.Info("database migrations completed")
	return nil
}
