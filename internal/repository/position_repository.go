package repository

import (
	"context"
	"fmt"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/database"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// PostgresPositionRepository implements PositionRepository on pgx.
type PostgresPositionRepository struct {
	db *database.DB
}

// NewPostgresPositionRepository creates a position repository.
func NewPostgresPositionRepository(db *database.DB) PositionRepository {
	return &PostgresPositionRepository{db: db}
}

const positionColumns = `id, market_id, side, strategy, amount, original_stake, entry_price, shares,
	status, confidence, conviction_score, category, start_time, max_return, dca_count,
	close_reason, exit_price, pnl, closed_at`

// Save upserts a position row. Called on open, after DCA add-ons, and on
// close, so the ledger always reflects the in-memory state.
func (r *PostgresPositionRepository) Save(ctx context.Context, pos *models.Position) error {
	query := `
		INSERT INTO positions (` + positionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			amount = EXCLUDED.amount,
			entry_price = EXCLUDED.entry_price,
			shares = EXCLUDED.shares,
			status = EXCLUDED.status,
			max_return = EXCLUDED.max_return,
			dca_count = EXCLUDED.dca_count,
			close_reason = EXCLUDED.close_reason,
			exit_price = EXCLUDED.exit_price,
			pnl = EXCLUDED.pnl,
			closed_at = EXCLUDED.closed_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		pos.ID, pos.MarketID, pos.Side, pos.Strategy, pos.Amount, pos.OriginalStake,
		pos.EntryPrice, pos.Shares, pos.Status, pos.Confidence, pos.ConvictionScore,
		pos.Category, pos.StartTime, pos.MaxReturn, pos.DCACount,
		pos.CloseReason, pos.ExitPrice, pos.PnL, pos.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("saving position: %w", err)
	}
	return nil
}

// LoadOpen returns every position still marked open.
func (r *PostgresPositionRepository) LoadOpen(ctx context.Context) ([]*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = $1 ORDER BY start_time ASC`
	rows, err := r.db.Pool().Query(ctx, query, models.PositionStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("querying open positions: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// LoadRecentClosed returns the most recently closed positions, newest first.
func (r *PostgresPositionRepository) LoadRecentClosed(ctx context.Context, limit int) ([]*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions
		WHERE status = $1 ORDER BY closed_at DESC LIMIT $2`
	rows, err := r.db.Pool().Query(ctx, query, models.PositionStatusClosed, limit)
	if err != nil {
		return nil, fmt.Errorf("querying closed positions: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// RecoverPortfolio rebuilds the live portfolio from the durable ledger:
// realized PnL is replayed onto the starting capital, open stakes are
// deducted, and the open set is restored.
func (r *PostgresPositionRepository) RecoverPortfolio(ctx context.Context, startingCapital float64) (*models.Portfolio, error) {
	pf := models.NewPortfolio(startingCapital)

	closed, err := r.LoadRecentClosed(ctx, models.MaxClosedTrades)
	if err != nil {
		return nil, err
	}
	pf.ClosedTrades = closed
	var realized float64
	for _, pos := range closed {
		if pos.PnL != nil {
			realized += *pos.PnL
		}
	}
	pf.Capital += realized

	open, err := r.LoadOpen(ctx)
	if err != nil {
		return nil, err
	}
	for _, pos := range open {
		pf.Capital -= pos.Amount
		pf.ActiveTrades[pos.ID] = pos
	}

	return pf, nil
}

// rowScanner is satisfied by pgx.Rows.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPositions(rows rowScanner) ([]*models.Position, error) {
	var positions []*models.Position
	for rows.Next() {
		pos := &models.Position{}
		err := rows.Scan(
			&pos.ID, &pos.MarketID, &pos.Side, &pos.Strategy, &pos.Amount, &pos.OriginalStake,
			&pos.EntryPrice, &pos.Shares, &pos.Status, &pos.Confidence, &pos.ConvictionScore,
			&pos.Category, &pos.StartTime, &pos.MaxReturn, &pos.DCACount,
			&pos.CloseReason, &pos.ExitPrice, &pos.PnL, &pos.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}
