// Package repository provides PostgreSQL persistence for positions, learning
// parameters, and backtest runs.
package repository

import (
	"context"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/backtest"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// PositionRepository defines the durable position ledger.
type PositionRepository interface {
	Save(ctx context.Context, pos *models.Position) error
	LoadOpen(ctx context.Context) ([]*models.Position, error)
	LoadRecentClosed(ctx context.Context, limit int) ([]*models.Position, error)
	RecoverPortfolio(ctx context.Context, startingCapital float64) (*models.Portfolio, error)
}

// LearningParamsRepository persists the adaptive controller's parameters.
type LearningParamsRepository interface {
	SaveParameters(ctx context.Context, params *models.LearningParameters) error
	LoadParameters(ctx context.Context) (*models.LearningParameters, error)
}

// BacktestRun is the persisted summary of one walk-forward run.
type BacktestRun struct {
	ID       int64
	PoolSize int
	Overfit  bool
}

// BacktestResultRepository records walk-forward runs for audit.
type BacktestResultRepository interface {
	SaveRun(ctx context.Context, report *backtest.Report) error
	ListRecent(ctx context.Context, limit int) ([]BacktestRun, error)
}
