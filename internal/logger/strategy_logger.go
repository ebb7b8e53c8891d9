// Package logger provides strategy-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// StrategyLogger provides dedicated logging for decision engine operations.
type StrategyLogger struct {
	*logrus.Entry
}

// NewStrategyLogger creates a new strategy logger.
func NewStrategyLogger(baseLogger *logrus.Logger) *StrategyLogger {
	return &StrategyLogger{
		Entry: baseLogger.WithField("component", "strategy"),
	}
}

// LogScanCycle logs a completed market scan cycle.
func (sl *StrategyLogger) LogScanCycle(marketsScanned, candidates, positionsOpened int, durationMs float64) {
	sl.WithFields(logrus.Fields{
		"markets_scanned":  marketsScanned,
		"candidates":       candidates,
		"positions_opened": positionsOpened,
		"scan_duration_ms": durationMs,
	}).Info("Scan cycle completed")
}

// LogDecision logs a decision engine outcome for a market.
func (sl *StrategyLogger) LogDecision(marketID, strategy, side string, confidence, kellyStake float64, convictionScore int, signalBonus int) {
	sl.WithFields(logrus.Fields{
		"market_id":    marketID,
		"strategy":     strategy,
		"side":         side,
		"confidence":   confidence,
		"kelly_stake":  kellyStake,
		"conviction":   convictionScore,
		"signal_bonus": signalBonus,
	}).Info("Trade decision made")
}

// LogSignalVeto logs an advanced signal module vetoing a candidate trade.
func (sl *StrategyLogger) LogSignalVeto(marketID, module, reason string) {
	sl.WithFields(logrus.Fields{
		"market_id": marketID,
		"module":    module,
		"reason":    reason,
	}).Info("Trade vetoed by signal module")
}

// LogStrategyDisabled logs the adaptive controller disabling a strategy.
func (sl *StrategyLogger) LogStrategyDisabled(strategy string, winRate float64, sampleSize int) {
	sl.WithFields(logrus.Fields{
		"strategy":    strategy,
		"win_rate":    winRate,
		"sample_size": sampleSize,
		"event_type":  "deactivation",
	}).Warn("Strategy disabled by adaptive controller")
}

// LogStrategyReenabled logs a strategy being re-enabled.
func (sl *StrategyLogger) LogStrategyReenabled(strategy, reason string) {
	sl.WithFields(logrus.Fields{
		"strategy":   strategy,
		"reason":     reason,
		"event_type": "activation",
	}).Info("Strategy re-enabled")
}

// LogRegimeChange logs a learning mode transition.
func (sl *StrategyLogger) LogRegimeChange(oldMode, newMode, reason string, confidenceMult, sizeMult float64) {
	sl.WithFields(logrus.Fields{
		"old_mode":              oldMode,
		"new_mode":              newMode,
		"reason":                reason,
		"confidence_multiplier": confidenceMult,
		"size_multiplier":       sizeMult,
	}).Info("Learning regime changed")
}

// LogDrawdown logs drawdown threshold breaches.
func (sl *StrategyLogger) LogDrawdown(drawdownPct, peakCapital, currentCapital float64) {
	sl.WithFields(logrus.Fields{
		"drawdown_percent": drawdownPct,
		"peak_capital":     peakCapital,
		"current_capital":  currentCapital,
	}).Warn("Portfolio drawdown threshold exceeded")
}
