package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestStrategyLoggerDecision(t *testing.T) {
	log, buf := setupTestLogger()
	strategyLogger := NewStrategyLogger(log)

	strategyLogger.LogDecision("mkt_001", "trend", "YES", 0.87, 42.5, 72, 15)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "mkt_001", logEntry["market_id"])
	assert.Equal(t, "trend", logEntry["strategy"])
	assert.Equal(t, "strategy", logEntry["component"])
}

func TestStrategyLoggerScanCycle(t *testing.T) {
	log, buf := setupTestLogger()
	strategyLogger := NewStrategyLogger(log)

	strategyLogger.LogScanCycle(120, 8, 2, 4312.5)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, float64(120), logEntry["markets_scanned"])
	assert.Equal(t, float64(2), logEntry["positions_opened"])
}

func TestStrategyLoggerDisable(t *testing.T) {
	log, buf := setupTestLogger()
	strategyLogger := NewStrategyLogger(log)

	strategyLogger.LogStrategyDisabled("momentum", 0.22, 9)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "momentum", logEntry["strategy"])
	assert.Equal(t, "deactivation", logEntry["event_type"])
}

func TestStrategyLoggerRegimeChange(t *testing.T) {
	log, buf := setupTestLogger()
	strategyLogger := NewStrategyLogger(log)

	strategyLogger.LogRegimeChange("NEUTRAL", "DEFENSIVE", "test_roi_negative", 1.1, 0.5)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "DEFENSIVE", logEntry["new_mode"])
	assert.Equal(t, "test_roi_negative", logEntry["reason"])
}

func TestAuditLoggerPositionOpened(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogPositionOpened(
		"pos_123",
		"mkt_001",
		"YES",
		"arbitrage",
		100,
		0.48,
		0.95,
		80,
		time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
	)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "pos_123", logEntry["position_id"])
	assert.Equal(t, "audit", logEntry["component"])
}

func TestAuditLoggerPositionClosed(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogPositionClosed("pos_123", "mkt_001", "TAKE PROFIT", 0.65, 35.4, 36*time.Hour)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "TAKE PROFIT", logEntry["close_reason"])
}

func TestAuditLoggerParameterChange(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogParameterChange("size_multiplier", 1.0, 0.5, "defensive_mode")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "size_multiplier", logEntry["parameter_name"])
}

func TestAuditLoggerCircuitBreakerEvent(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogCircuitBreakerEvent(
		"OPENED",
		"consecutive_api_failures",
		map[string]interface{}{"failures": 5, "threshold": 5},
		"PAUSE_SCANNING",
	)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "OPENED", logEntry["event_type"])
}

func TestLoggerJSONFormat(t *testing.T) {
	log, buf := setupTestLogger()
	strategyLogger := NewStrategyLogger(log)

	strategyLogger.LogDecision("mkt_001", "value", "NO", 0.7, 20, 55, 0)

	// Verify output is valid JSON
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	assert.NoError(t, err)
	assert.NotEmpty(t, logEntry)
}

func BenchmarkStrategyLoggerDecision(b *testing.B) {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	strategyLogger := NewStrategyLogger(log)

	for i := 0; i < b.N; i++ {
		strategyLogger.LogDecision("mkt_001", "trend", "YES", 0.87, 42.5, 72, 15)
	}
}

func BenchmarkAuditLoggerPositionOpened(b *testing.B) {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	auditLogger := NewAuditLogger(log)

	for i := 0; i < b.N; i++ {
		auditLogger.LogPositionOpened("pos_123", "mkt_001", "YES", "trend", 100, 0.48, 0.95, 80, time.Now())
	}
}
