package bot

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/metrics"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/repository"
)

// Executor applies decision-engine output to the live portfolio: it opens
// positions, persists them, and emits the audit and metrics trail. It is the
// only component that mutates the live portfolio during a scan cycle.
type Executor struct {
	positions repository.PositionRepository
	audit     *logger.AuditLogger
	strategy  *logger.StrategyLogger
	logger    *logrus.Logger
}

// NewExecutor creates an executor.
func NewExecutor(
	positions repository.PositionRepository,
	audit *logger.AuditLogger,
	strategy *logger.StrategyLogger,
	log *logrus.Logger,
) *Executor {
	return &Executor{
		positions: positions,
		audit:     audit,
		strategy:  strategy,
		logger:    log,
	}
}

// OpenPositions opens the decided positions against the portfolio and
// persists them. Arbitrage pairs are all-or-nothing: if the second leg
// cannot be funded the first is rolled back.
func (ex *Executor) OpenPositions(ctx context.Context, pf *models.Portfolio, positions []*models.Position) (int, error) {
	var opened []*models.Position
	for _, pos := range positions {
		if err := pf.Open(pos); err != nil {
			ex.rollback(pf, opened)
			return 0, fmt.Errorf("opening position on %s: %w", pos.MarketID, err)
		}
		opened = append(opened, pos)
	}

	for _, pos := range opened {
		if err := ex.positions.Save(ctx, pos); err != nil {
			// Position stays open in memory; the next save cycle retries
			ex.logger.WithFields(logrus.Fields{
				"position_id": pos.ID.String(),
				"error":       err.Error(),
			}).Error("Failed to persist opened position")
		}

		ex.audit.LogPositionOpened(pos.ID.String(), pos.MarketID, string(pos.Side), pos.Strategy,
			pos.Amount, pos.EntryPrice, pos.Confidence, pos.ConvictionScore, pos.StartTime)
		ex.strategy.LogDecision(pos.MarketID, pos.Strategy, string(pos.Side),
			pos.Confidence, pos.Amount, pos.ConvictionScore, signalBonus(pos))
		metrics.RecordPositionOpened(pos.Strategy)
	}

	return len(opened), nil
}

// PersistClosed saves settled positions and updates the close metrics.
func (ex *Executor) PersistClosed(ctx context.Context, closed []*models.Position) {
	for _, pos := range closed {
		if err := ex.positions.Save(ctx, pos); err != nil {
			ex.logger.WithFields(logrus.Fields{
				"position_id": pos.ID.String(),
				"error":       err.Error(),
			}).Error("Failed to persist closed position")
		}
		metrics.RecordPositionClosed(pos.CloseReason)
	}
}

// PersistOpen saves the current open set, picking up DCA mutations.
func (ex *Executor) PersistOpen(ctx context.Context, pf *models.Portfolio) {
	for _, pos := range pf.ActiveTrades {
		if err := ex.positions.Save(ctx, pos); err != nil {
			ex.logger.WithFields(logrus.Fields{
				"position_id": pos.ID.String(),
				"error":       err.Error(),
			}).Error("Failed to persist open position")
		}
	}
}

func (ex *Executor) rollback(pf *models.Portfolio, opened []*models.Position) {
	for _, pos := range opened {
		pf.Capital += pos.Amount
		delete(pf.ActiveTrades, pos.ID)
	}
}

// signalBonus recovers the advisor bonus from the gap between the final
// conviction score and the rule confidence.
func signalBonus(pos *models.Position) int {
	return pos.ConvictionScore - int(math.Round(pos.Confidence*100))
}
