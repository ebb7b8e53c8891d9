package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/backtest"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/database"
)

// PostgresBacktestResultRepository implements BacktestResultRepository.
type PostgresBacktestResultRepository struct {
	db *database.DB
}

// NewPostgresBacktestResultRepository creates a backtest result repository.
func NewPostgresBacktestResultRepository(db *database.DB) BacktestResultRepository {
	return &PostgresBacktestResultRepository{db: db}
}

// SaveRun records a walk-forward run with its per-split metrics as JSONB.
func (r *PostgresBacktestResultRepository) SaveRun(ctx context.Context, report *backtest.Report) error {
	reasons, err := json.Marshal(report.Gate.Reasons)
	if err != nil {
		return fmt.Errorf("encoding gate reasons: %w", err)
	}

	query := `
		INSERT INTO backtest_runs
			(pool_size, overfit, gate_reasons, train_metrics, test_metrics, combined_metrics)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.db.Pool().Exec(ctx, query,
		report.PoolSize, report.Gate.Overfit, reasons,
		report.TrainMetrics.ToJSON(), report.TestMetrics.ToJSON(), report.CombinedMetrics.ToJSON(),
	)
	if err != nil {
		return fmt.Errorf("saving backtest run: %w", err)
	}
	return nil
}

// ListRecent returns summaries of the latest runs, newest first.
func (r *PostgresBacktestResultRepository) ListRecent(ctx context.Context, limit int) ([]BacktestRun, error) {
	query := `SELECT id, pool_size, overfit FROM backtest_runs ORDER BY run_at DESC LIMIT $1`
	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []BacktestRun
	for rows.Next() {
		var run BacktestRun
		if err := rows.Scan(&run.ID, &run.PoolSize, &run.Overfit); err != nil {
			return nil, fmt.Errorf("scanning backtest run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
