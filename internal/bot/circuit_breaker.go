package bot

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/metrics"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState string

const (
	// StateClosed means trading is allowed.
	StateClosed CircuitState = "CLOSED"
	// StateHalfOpen means the cooldown elapsed and the next cycle probes.
	StateHalfOpen CircuitState = "HALF_OPEN"
	// StateOpen means trading is halted.
	StateOpen CircuitState = "OPEN"
)

// CircuitBreakerConfig holds the trip thresholds.
type CircuitBreakerConfig struct {
	MaxConsecutiveLosses int
	MaxDrawdownPct       float64
	MaxFailureCount      int
	FailureTimeWindow    time.Duration
	CooldownPeriod       time.Duration
}

// DefaultCircuitBreakerConfig returns conservative defaults for live trading.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxConsecutiveLosses: 5,
		MaxDrawdownPct:       0.20,
		MaxFailureCount:      10,
		FailureTimeWindow:    10 * time.Minute,
		CooldownPeriod:       30 * time.Minute,
	}
}

// ShutdownCallback is invoked when the breaker trips.
type ShutdownCallback func(reason string)

// CircuitBreaker halts the scan cycle on sustained losses, deep drawdown, or
// repeated upstream failures. After the cooldown it transitions to half-open
// and a single clean cycle closes it again.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	audit  *logger.AuditLogger
	logger *logrus.Logger
	now    func() time.Time

	mu                sync.Mutex
	state             CircuitState
	consecutiveLosses int
	peakCapital       float64
	failures          []time.Time
	trippedAt         time.Time
	tripReason        string
	callbacks         []ShutdownCallback
}

// NewCircuitBreaker creates a circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig, audit *logger.AuditLogger, log *logrus.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		audit:  audit,
		logger: log,
		now:    time.Now,
		state:  StateClosed,
	}
}

// OnShutdown registers a callback invoked when the breaker trips.
func (cb *CircuitBreaker) OnShutdown(callback ShutdownCallback) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.callbacks = append(cb.callbacks, callback)
}

// RecordTradeResult feeds one closed position and the portfolio capital after
// settlement into the breaker. Losses extend the streak; any win resets it.
func (cb *CircuitBreaker) RecordTradeResult(pos *models.Position, currentCapital float64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if pos.IsWin() {
		cb.consecutiveLosses = 0
	} else {
		cb.consecutiveLosses++
	}

	if currentCapital > cb.peakCapital {
		cb.peakCapital = currentCapital
	}

	if cb.consecutiveLosses >= cb.config.MaxConsecutiveLosses {
		cb.tripLocked("consecutive loss limit reached")
		return
	}

	if cb.peakCapital > 0 {
		drawdown := (cb.peakCapital - currentCapital) / cb.peakCapital
		if drawdown >= cb.config.MaxDrawdownPct {
			cb.tripLocked("drawdown limit reached")
		}
	}
}

// RecordFailure counts an upstream failure. Enough failures inside the time
// window trip the breaker.
func (cb *CircuitBreaker) RecordFailure(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.failures = append(cb.failures, now)
	cb.pruneFailuresLocked(now)

	cb.logger.WithFields(logrus.Fields{
		"reason":   reason,
		"failures": len(cb.failures),
	}).Warn("Upstream failure recorded")

	if len(cb.failures) >= cb.config.MaxFailureCount {
		cb.tripLocked("failure rate limit reached")
	}
}

// RecordSuccess clears the failure window. In the half-open state one clean
// cycle closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = cb.failures[:0]
	if cb.state == StateHalfOpen {
		cb.state = StateClosed
		cb.consecutiveLosses = 0
		cb.logger.Info("Circuit breaker closed after successful probe")
	}
}

// Allow reports whether a trading cycle may run. An open breaker past its
// cooldown transitions to half-open and allows a single probe cycle.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if cb.now().Sub(cb.trippedAt) >= cb.config.CooldownPeriod {
			cb.state = StateHalfOpen
			cb.logger.Info("Circuit breaker cooldown elapsed, probing")
			return true
		}
		return false
	}
	return false
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// TripReason returns why the breaker last tripped, empty if it never has.
func (cb *CircuitBreaker) TripReason() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.tripReason
}

// Reset forces the breaker back to the closed state. Operator use only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.consecutiveLosses = 0
	cb.failures = cb.failures[:0]
	cb.tripReason = ""
	cb.logger.Warn("Circuit breaker manually reset")
}

func (cb *CircuitBreaker) tripLocked(reason string) {
	if cb.state == StateOpen {
		return
	}

	cb.state = StateOpen
	cb.trippedAt = cb.now()
	cb.tripReason = reason

	metrics.RecordCircuitBreakerTrip()
	cb.audit.LogCircuitBreakerEvent("trip", reason, map[string]interface{}{
		"consecutive_losses": cb.consecutiveLosses,
		"peak_capital":       cb.peakCapital,
		"recent_failures":    len(cb.failures),
	}, "trading halted")
	cb.logger.WithField("reason", reason).Error("Circuit breaker tripped")

	for _, callback := range cb.callbacks {
		callback(reason)
	}
}

func (cb *CircuitBreaker) pruneFailuresLocked(now time.Time) {
	cutoff := now.Add(-cb.config.FailureTimeWindow)
	kept := cb.failures[:0]
	for _, t := range cb.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.failures = kept
}
