package repository

import (
	"github.com/oscardcstudio-cell/auto-polymarket/internal/database"
)

// Repositories bundles every repository over one shared pool.
type Repositories struct {
	Position PositionRepository
	Learning LearningParamsRepository
	Backtest BacktestResultRepository
}

// NewRepositories wires the repositories to a database handle.
func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Position: NewPostgresPositionRepository(db),
		Learning: NewPostgresLearningParamsRepository(db),
		Backtest: NewPostgresBacktestResultRepository(db),
	}
}
