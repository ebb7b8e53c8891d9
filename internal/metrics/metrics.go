// Package metrics provides the centralized Prometheus registry for the
// trading engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PositionsOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auto_polymarket",
		Name:      "positions_opened_total",
		Help:      "Total number of positions opened, by strategy",
	}, []string{"strategy"})
	PositionsClosedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auto_polymarket",
		Name:      "positions_closed_total",
		Help:      "Total number of positions closed, by close reason",
	}, []string{"reason"})
	MarketsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auto_polymarket",
		Name:      "markets_rejected_total",
		Help:      "Total number of markets rejected by the decision cascade, by rule",
	}, []string{"rule"})
	DCAAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auto_polymarket",
		Name:      "dca_applied_total",
		Help:      "Total number of averaging-down add-ons applied",
	})
	SignalVetoesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auto_polymarket",
		Name:      "signal_vetoes_total",
		Help:      "Total number of trades vetoed by the signal advisor",
	})
	ScanCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auto_polymarket",
		Name:      "scan_cycles_total",
		Help:      "Total number of completed market scan cycles",
	})
	RetunesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auto_polymarket",
		Name:      "retunes_total",
		Help:      "Total number of adaptive retune runs",
	})
	CircuitBreakerTripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auto_polymarket",
		Name:      "circuit_breaker_trips_total",
		Help:      "Total number of circuit breaker trips",
	})
)

// Gauge metrics
var (
	CurrentCapital = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "auto_polymarket",
		Name:      "current_capital",
		Help:      "Current portfolio capital in currency units",
	})
	OpenPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "auto_polymarket",
		Name:      "open_positions",
		Help:      "Number of currently open positions",
	})
	TotalExposure = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "auto_polymarket",
		Name:      "total_exposure",
		Help:      "Total stake across all open positions",
	})
	CurrentDrawdown = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "auto_polymarket",
		Name:      "current_drawdown",
		Help:      "Fractional decline from starting capital",
	})
	LearningSizeMultiplier = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "auto_polymarket",
		Name:      "learning_size_multiplier",
		Help:      "Active adaptive size multiplier",
	})
)

// Histogram metrics
var (
	ScanCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "auto_polymarket",
		Name:      "scan_cycle_duration_seconds",
		Help:      "Duration of one market scan cycle in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	BacktestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "auto_polymarket",
		Name:      "backtest_duration_seconds",
		Help:      "Duration of walk-forward backtest runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(PositionsOpenedTotal)
		registry.MustRegister(PositionsClosedTotal)
		registry.MustRegister(MarketsRejectedTotal)
		registry.MustRegister(DCAAppliedTotal)
		registry.MustRegister(SignalVetoesTotal)
		registry.MustRegister(ScanCyclesTotal)
		registry.MustRegister(RetunesTotal)
		registry.MustRegister(CircuitBreakerTripsTotal)

		registry.MustRegister(CurrentCapital)
		registry.MustRegister(OpenPositions)
		registry.MustRegister(TotalExposure)
		registry.MustRegister(CurrentDrawdown)
		registry.MustRegister(LearningSizeMultiplier)

		registry.MustRegister(ScanCycleDuration)
		registry.MustRegister(BacktestDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordPositionOpened records a position open event.
func RecordPositionOpened(strategy string) {
	PositionsOpenedTotal.WithLabelValues(strategy).Inc()
}

// RecordPositionClosed records a position close event.
func RecordPositionClosed(reason string) {
	PositionsClosedTotal.WithLabelValues(reason).Inc()
}

// RecordMarketRejected records a cascade rejection.
func RecordMarketRejected(rule string) {
	MarketsRejectedTotal.WithLabelValues(rule).Inc()
}

// RecordScanCycle records one completed scan cycle and its duration.
func RecordScanCycle(durationSeconds float64) {
	ScanCyclesTotal.Inc()
	ScanCycleDuration.Observe(durationSeconds)
}

// RecordRetune records an adaptive retune run.
func RecordRetune() {
	RetunesTotal.Inc()
}

// RecordCircuitBreakerTrip records a circuit breaker trip event.
func RecordCircuitBreakerTrip() {
	CircuitBreakerTripsTotal.Inc()
}

// RecordBacktestDuration records backtest duration.
func RecordBacktestDuration(durationSeconds float64) {
	BacktestDuration.Observe(durationSeconds)
}

// UpdatePortfolio refreshes the portfolio gauges.
func UpdatePortfolio(capital, exposure, drawdown float64, openPositions int) {
	CurrentCapital.Set(capital)
	TotalExposure.Set(exposure)
	CurrentDrawdown.Set(drawdown)
	OpenPositions.Set(float64(openPositions))
}

// UpdateLearningMultiplier refreshes the adaptive size multiplier gauge.
func UpdateLearningMultiplier(sizeMultiplier float64) {
	LearningSizeMultiplier.Set(sizeMultiplier)
}
