package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=gigswap sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate creates the schema if it does not exist yet
func (db *DB) Migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			display_name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id UUID PRIMARY KEY,
			poster_id UUID NOT NULL,
			title TEXT NOT NULL,
			category TEXT NOT NULL,
			budget DECIMAL(12,2) NOT NULL,
			status TEXT NOT NULL,
			assigned_helper_id UUID,
			locked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status)`,
		`CREATE TABLE IF NOT EXISTS bids (
			id UUID PRIMARY KEY,
			task_id UUID NOT NULL REFERENCES tasks (id),
			helper_id UUID NOT NULL,
			amount DECIMAL(12,2) NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bids_task_id ON bids (task_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bids_pending_per_helper
			ON bids (task_id, helper_id) WHERE status = 'PENDING'`,
		`CREATE TABLE IF NOT EXISTS contracts (
			id UUID PRIMARY KEY,
			task_id UUID NOT NULL UNIQUE REFERENCES tasks (id),
			poster_id UUID NOT NULL,
			helper_id UUID NOT NULL,
			accepted_bid_id UUID NOT NULL REFERENCES bids (id),
			agreed_amount DECIMAL(12,2) NOT NULL,
			payment_status TEXT NOT NULL,
			charge_id TEXT,
			payout_id TEXT,
			refund_id TEXT,
			payment_completed_at TIMESTAMPTZ,
			auto_release_at TIMESTAMPTZ,
			payout_claimed_at TIMESTAMPTZ,
			locked BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_contracts_charge_id
			ON contracts (charge_id) WHERE charge_id IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS payments (
			id UUID PRIMARY KEY,
			contract_id UUID NOT NULL REFERENCES contracts (id),
			type TEXT NOT NULL,
			amount DECIMAL(12,2) NOT NULL,
			status TEXT NOT NULL,
			processor_ref TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_processor_ref ON payments (processor_ref)`,
		`CREATE TABLE IF NOT EXISTS timeline_events (
			id UUID PRIMARY KEY,
			task_id UUID NOT NULL REFERENCES tasks (id),
			event TEXT NOT NULL,
			actor_id UUID,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timeline_events_task_id ON timeline_events (task_id)`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			id UUID PRIMARY KEY,
			actor_id UUID NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id UUID NOT NULL,
			before TEXT NOT NULL DEFAULT '',
			after TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payout_accounts (
			helper_id UUID PRIMARY KEY,
			account_id TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
