// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for the trade lifecycle.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogPositionOpened logs a position opening event.
func (al *AuditLogger) LogPositionOpened(positionID, marketID, side, strategy string, stake, entryPrice, confidence float64, convictionScore int, timestamp time.Time) {
	al.WithFields(logrus.Fields{
		"position_id": positionID,
		"market_id":   marketID,
		"side":        side,
		"strategy":    strategy,
		"stake":       stake,
		"entry_price": entryPrice,
		"confidence":  confidence,
		"conviction":  convictionScore,
		"timestamp":   timestamp.Unix(),
	}).Info("Position opened")
}

// LogPositionClosed logs a position close event.
func (al *AuditLogger) LogPositionClosed(positionID, marketID, reason string, exitPrice, pnl float64, holdDuration time.Duration) {
	al.WithFields(logrus.Fields{
		"position_id":   positionID,
		"market_id":     marketID,
		"close_reason":  reason,
		"exit_price":    exitPrice,
		"pnl":           pnl,
		"hold_duration": holdDuration.String(),
	}).Info("Position closed")
}

// LogMarketRejected logs a market that failed the decision cascade.
func (al *AuditLogger) LogMarketRejected(marketID, reason string, yesPrice, noPrice float64) {
	al.WithFields(logrus.Fields{
		"market_id": marketID,
		"reason":    reason,
		"yes_price": yesPrice,
		"no_price":  noPrice,
	}).Debug("Market rejected")
}

// LogDCAApplied logs a dollar-cost-averaging addition to an open position.
func (al *AuditLogger) LogDCAApplied(positionID, marketID string, addAmount, newEntryPrice float64, dcaCount int) {
	al.WithFields(logrus.Fields{
		"position_id":     positionID,
		"market_id":       marketID,
		"add_amount":      addAmount,
		"new_entry_price": newEntryPrice,
		"dca_count":       dcaCount,
	}).Info("DCA applied to position")
}

// LogParameterChange logs adaptive controller parameter changes.
func (al *AuditLogger) LogParameterChange(parameterName string, oldValue, newValue interface{}, reason string) {
	al.WithFields(logrus.Fields{
		"parameter_name": parameterName,
		"old_value":      oldValue,
		"new_value":      newValue,
		"reason":         reason,
	}).Info("Learning parameter changed")
}

// LogCircuitBreakerEvent logs circuit breaker events.
func (al *AuditLogger) LogCircuitBreakerEvent(eventType, reason string, metricsSnapshot map[string]interface{}, actionTaken string) {
	al.WithFields(logrus.Fields{
		"event_type":       eventType,
		"reason":           reason,
		"metrics_snapshot": metricsSnapshot,
		"action_taken":     actionTaken,
	}).Warn("Circuit breaker event recorded")
}

// LogPortfolioRecovery logs a portfolio state recovery at startup.
func (al *AuditLogger) LogPortfolioRecovery(openPositions int, recoveredCapital float64) {
	al.WithFields(logrus.Fields{
		"open_positions":    openPositions,
		"recovered_capital": recoveredCapital,
	}).Info("Portfolio state recovered from history")
}
