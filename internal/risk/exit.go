package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// Close reason prefixes, stable for audit queries.
const (
	ReasonStopLoss   = "STOP LOSS"
	ReasonTakeProfit = "TAKE PROFIT"
	ReasonTimeout    = "TIMEOUT"
	ReasonSpikeLock  = "SPIKE LOCK"
	ReasonResolved   = "RESOLVED"
)

// MarketResolver supplies current market state for open positions.
type MarketResolver interface {
	GetMarketSnapshot(ctx context.Context, marketID string) (*models.MarketSnapshot, error)
}

// ExitDecision is the outcome of evaluating one open position.
type ExitDecision struct {
	Close     bool
	ExitPrice float64
	Reason    string
}

// ExitEngine evaluates every open position each cycle against the exit
// policy: settlement first, then dynamic stop, take-profit, timeout and
// spike-lock, first hit wins.
type ExitEngine struct {
	cfg    config.RiskConfig
	data   MarketResolver
	audit  *logger.AuditLogger
	logger *logrus.Logger
	now    func() time.Time

	dcaEnabled bool
}

// NewExitEngine creates an exit engine.
func NewExitEngine(cfg config.RiskConfig, data MarketResolver, audit *logger.AuditLogger, dcaEnabled bool, log *logrus.Logger) *ExitEngine {
	return &ExitEngine{
		cfg:        cfg,
		data:       data,
		audit:      audit,
		logger:     log,
		now:        time.Now,
		dcaEnabled: dcaEnabled,
	}
}

// CheckAndCloseAll runs one exit cycle over the portfolio: records current
// prices into each position's history, closes positions whose exit policy
// fires, and applies eligible DCA add-ons. Returns the closed positions.
//
// A market whose state cannot be fetched is treated as still open and
// skipped this cycle (fail closed on resolution).
func (ee *ExitEngine) CheckAndCloseAll(ctx context.Context, pf *models.Portfolio) []*models.Position {
	now := ee.now()
	var closed []*models.Position

	// Snapshot ids up front; closing mutates the active set
	active := make([]*models.Position, 0, len(pf.ActiveTrades))
	for _, pos := range pf.ActiveTrades {
		active = append(active, pos)
	}

	for _, pos := range active {
		snapshot, err := ee.data.GetMarketSnapshot(ctx, pos.MarketID)
		if err != nil {
			ee.logger.WithFields(logrus.Fields{
				"market_id": pos.MarketID,
				"error":     err.Error(),
			}).Warn("Market state unavailable, keeping position open")
			continue
		}

		price := snapshot.Price(pos.Side)
		pos.RecordPrice(price)

		decision := ee.Evaluate(pos, snapshot, price, now)
		if decision.Close {
			settled, err := pf.Close(pos.ID, decision.ExitPrice, decision.Reason, now)
			if err != nil {
				ee.logger.WithField("error", err.Error()).Error("Failed to close position")
				continue
			}
			ee.audit.LogPositionClosed(settled.ID.String(), settled.MarketID, settled.CloseReason,
				decision.ExitPrice, *settled.PnL, settled.Age(now))
			closed = append(closed, settled)
			continue
		}

		if ee.dcaEnabled {
			ee.maybeAverageDown(pf, pos, price)
		}
	}

	return closed
}

// Evaluate applies the exit policy to one position at the given price.
// Settlement short-circuits everything once the market's end time passes;
// the remaining checks run in strict priority order.
func (ee *ExitEngine) Evaluate(pos *models.Position, snapshot *models.MarketSnapshot, price float64, now time.Time) ExitDecision {
	if snapshot.Resolved(now) {
		exitPrice := 0.0
		outcome := "lost"
		if settledWinner(snapshot) == pos.Side {
			exitPrice = 1.0
			outcome = "won"
		}
		return ExitDecision{
			Close:     true,
			ExitPrice: exitPrice,
			Reason:    fmt.Sprintf("%s (%s)", ReasonResolved, outcome),
		}
	}

	ret := pos.CurrentReturn(price)
	age := pos.Age(now)

	stop := ComputeStop(StopInputs{
		CategoryVolatility: ee.cfg.VolatilityFor(pos.Category),
		MaxReturn:          pos.MaxReturn,
		TrailingActivation: ee.cfg.TrailingActivation,
		TrailingDistance:   ee.cfg.TrailingDistance,
		BreakEvenReturn:    ee.cfg.BreakEvenReturn,
		Age:                age,
		DecayAge:           ee.cfg.DecayAge(),
		DecayPenalty:       ee.cfg.DecayPenalty,
	})
	if ret <= stop {
		return ExitDecision{
			Close:     true,
			ExitPrice: price,
			Reason:    fmt.Sprintf("%s (return %.1f%% <= stop %.1f%%)", ReasonStopLoss, ret*100, stop*100),
		}
	}

	if ret >= ee.cfg.TakeProfit {
		return ExitDecision{
			Close:     true,
			ExitPrice: price,
			Reason:    fmt.Sprintf("%s (return %.1f%%)", ReasonTakeProfit, ret*100),
		}
	}

	if age >= ee.cfg.Timeout() {
		return ExitDecision{
			Close:     true,
			ExitPrice: price,
			Reason:    fmt.Sprintf("%s (held %s)", ReasonTimeout, age.Round(time.Hour)),
		}
	}

	if ret >= ee.cfg.SpikeLockReturn && ee.cfg.SpikeLockAge() > 0 && age >= ee.cfg.SpikeLockAge() {
		return ExitDecision{
			Close:     true,
			ExitPrice: price,
			Reason:    fmt.Sprintf("%s (return %.1f%% after %s)", ReasonSpikeLock, ret*100, age.Round(time.Hour)),
		}
	}

	return ExitDecision{}
}

// settledWinner picks the winning side of a resolved market from its
// settlement prices.
func settledWinner(snapshot *models.MarketSnapshot) models.Side {
	if snapshot.YesPrice >= snapshot.NoPrice {
		return models.SideYes
	}
	return models.SideNo
}
