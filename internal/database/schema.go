package database

import (
	"context"
	"fmt"
)

// schemaStatements create the tables the repositories rely on. Idempotent so
// the bot can run them at every start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS positions (
		id UUID PRIMARY KEY,
		market_id TEXT NOT NULL,
		side TEXT NOT NULL,
		strategy TEXT NOT NULL DEFAULT '',
		amount DOUBLE PRECISION NOT NULL,
		original_stake DOUBLE PRECISION NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		shares DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		conviction_score INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT 'other',
		start_time TIMESTAMPTZ NOT NULL,
		max_return DOUBLE PRECISION NOT NULL DEFAULT 0,
		dca_count INTEGER NOT NULL DEFAULT 0,
		close_reason TEXT NOT NULL DEFAULT '',
		exit_price DOUBLE PRECISION,
		pnl DOUBLE PRECISION,
		closed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_market ON positions (market_id)`,
	`CREATE TABLE IF NOT EXISTS learning_parameters (
		id BIGSERIAL PRIMARY KEY,
		confidence_multiplier DOUBLE PRECISION NOT NULL,
		size_multiplier DOUBLE PRECISION NOT NULL,
		mode TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		category_multipliers JSONB NOT NULL DEFAULT '{}',
		disabled_strategies JSONB NOT NULL DEFAULT '[]',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		id BIGSERIAL PRIMARY KEY,
		run_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		pool_size INTEGER NOT NULL,
		overfit BOOLEAN NOT NULL,
		gate_reasons JSONB NOT NULL DEFAULT '[]',
		train_metrics JSONB NOT NULL,
		test_metrics JSONB NOT NULL,
		combined_metrics JSONB NOT NULL
	)`,
}

// EnsureSchema creates any missing tables and indexes.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
