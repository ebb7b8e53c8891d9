package bot

import (
	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/metrics"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// drawdownAlertThreshold is the fractional drawdown past which each cycle
// logs a drawdown warning.
const drawdownAlertThreshold = 0.10

// Monitor refreshes the portfolio gauges after each cycle and raises
// drawdown warnings in the strategy log.
type Monitor struct {
	strategy *logger.StrategyLogger
}

// NewMonitor creates a portfolio monitor.
func NewMonitor(strategy *logger.StrategyLogger) *Monitor {
	return &Monitor{strategy: strategy}
}

// Update publishes the portfolio state to the metrics registry.
func (m *Monitor) Update(pf *models.Portfolio) {
	drawdown := pf.Drawdown()
	metrics.UpdatePortfolio(pf.Capital, pf.TotalExposure(), drawdown, len(pf.ActiveTrades))

	if drawdown >= drawdownAlertThreshold {
		m.strategy.LogDrawdown(drawdown*100, pf.StartingCapital, pf.Capital)
	}
}
