// Package bot wires the trading components into scheduled scan, exit, and
// retune cycles over a single live portfolio.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/engine"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/gamma"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/metrics"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/repository"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/risk"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/scheduler"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/signals"
)

// MarketLister lists candidate markets for a scan cycle.
type MarketLister interface {
	ListCandidateMarkets(ctx context.Context, filters gamma.MarketFilters) ([]models.MarketSnapshot, error)
}

// ContextFetcher gathers the contextual signals for a scan cycle.
type ContextFetcher interface {
	FetchContextSignals(ctx context.Context, snapshots []models.MarketSnapshot) models.ContextSignals
}

// Decider runs the rule cascade for one market.
type Decider interface {
	Decide(ctx context.Context, snapshot models.MarketSnapshot, contextSignals models.ContextSignals, pf *models.Portfolio) ([]*models.Position, []engine.Rejection)
}

// Exiter runs one exit cycle over the portfolio.
type Exiter interface {
	CheckAndCloseAll(ctx context.Context, pf *models.Portfolio) []*models.Position
}

// Retuner reruns the adaptive parameter search.
type Retuner interface {
	Retune(ctx context.Context) (*models.LearningParameters, error)
	Current() *models.LearningParameters
}

// TradeRecorder receives trade prints from the market stream.
type TradeRecorder interface {
	RecordTradePrint(marketID string, print models.TradePrint)
}

// Components bundles the dependencies of the orchestrator.
type Components struct {
	Markets  MarketLister
	Signals  ContextFetcher
	Advisor  *signals.Advisor
	Decider  Decider
	Exits    Exiter
	Learning Retuner
	Guard    *risk.PortfolioGuard

	Positions repository.PositionRepository

	// Stream and Trades are optional; set both to feed live prints into
	// the trend cache
	Stream *gamma.StreamClient
	Trades TradeRecorder

	Audit    *logger.AuditLogger
	Strategy *logger.StrategyLogger
	Logger   *logrus.Logger
}

// Status is a point-in-time view of the running bot.
type Status struct {
	Running       bool
	CircuitState  CircuitState
	Capital       float64
	OpenPositions int
	TotalExposure float64
	Drawdown      float64
	Mode          models.LearningMode
	NextRun       time.Time
}

// Orchestrator schedules and runs the trading cycles. The scheduler fires
// each job in its own goroutine; cycleMu serializes scan, exit, and retune
// so only one cycle touches the portfolio at a time.
type Orchestrator struct {
	cycleMu   sync.Mutex
	cfg       *config.Config
	markets   MarketLister
	signals   ContextFetcher
	advisor   *signals.Advisor
	decider   Decider
	exits     Exiter
	learning  Retuner
	guard     *risk.PortfolioGuard
	executor  *Executor
	monitor   *Monitor
	breaker   *CircuitBreaker
	scheduler *scheduler.Scheduler
	stream    *gamma.StreamClient
	trades    TradeRecorder
	audit     *logger.AuditLogger
	strategy  *logger.StrategyLogger
	logger    *logrus.Logger
}

// NewOrchestrator wires the trading cycles over the given components.
func NewOrchestrator(cfg *config.Config, comps Components) *Orchestrator {
	breaker := NewCircuitBreaker(DefaultCircuitBreakerConfig(), comps.Audit, comps.Logger)
	o := &Orchestrator{
		cfg:       cfg,
		markets:   comps.Markets,
		signals:   comps.Signals,
		advisor:   comps.Advisor,
		decider:   comps.Decider,
		exits:     comps.Exits,
		learning:  comps.Learning,
		guard:     comps.Guard,
		executor:  NewExecutor(comps.Positions, comps.Audit, comps.Strategy, comps.Logger),
		monitor:   NewMonitor(comps.Strategy),
		breaker:   breaker,
		scheduler: scheduler.NewScheduler(comps.Logger),
		stream:    comps.Stream,
		trades:    comps.Trades,
		audit:     comps.Audit,
		strategy:  comps.Strategy,
		logger:    comps.Logger,
	}
	return o
}

// CircuitBreaker exposes the breaker for operator endpoints.
func (o *Orchestrator) CircuitBreaker() *CircuitBreaker {
	return o.breaker
}

// Start connects the stream, schedules the trading jobs, and starts the
// scheduler. It returns once everything is running.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.cfg.Features.StreamEnabled && o.stream != nil && o.trades != nil {
		if err := o.stream.Connect(ctx); err != nil {
			// The trend check falls back to polled prints
			o.logger.WithField("error", err.Error()).Warn("Stream connect failed, continuing without live prints")
		} else {
			o.stream.AddHandler(func(marketID string, print models.TradePrint) {
				o.trades.RecordTradePrint(marketID, print)
			})
		}
	}

	if err := o.scheduler.ScheduleEvery("market-scan", o.cfg.Scan.IntervalSeconds, o.RunScanCycle); err != nil {
		return err
	}
	if err := o.scheduler.ScheduleEvery("exit-check", o.cfg.Scan.IntervalSeconds, o.RunExitCycle); err != nil {
		return err
	}
	if err := o.scheduler.ScheduleCron("retune", o.cfg.Learning.RetuneCron, 30*time.Minute, o.RunRetune); err != nil {
		return err
	}

	if err := o.scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	o.logger.WithFields(logrus.Fields{
		"scan_interval_seconds": o.cfg.Scan.IntervalSeconds,
		"retune_cron":           o.cfg.Learning.RetuneCron,
	}).Info("Trading bot started")
	return nil
}

// Stop stops the scheduler and closes the stream.
func (o *Orchestrator) Stop() error {
	if err := o.scheduler.Stop(); err != nil {
		return err
	}
	if o.stream != nil {
		if err := o.stream.Close(); err != nil {
			o.logger.WithField("error", err.Error()).Warn("Stream close failed")
		}
	}
	o.logger.Info("Trading bot stopped")
	return nil
}

// RunScanCycle executes one candidate-market scan: list, observe, decide,
// open. The cycle is skipped while a backtest holds the portfolio or the
// circuit breaker is open.
func (o *Orchestrator) RunScanCycle(ctx context.Context) error {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	if o.guard.Simulating() {
		o.logger.Debug("Scan skipped, backtest in progress")
		return nil
	}
	if !o.breaker.Allow() {
		o.logger.WithField("reason", o.breaker.TripReason()).Warn("Scan skipped, circuit breaker open")
		return nil
	}

	start := time.Now()
	snapshots, err := o.markets.ListCandidateMarkets(ctx, gamma.MarketFilters{
		MinVolume24h: o.cfg.Scan.MinVolume24h,
		MinLiquidity: o.cfg.Scan.MinLiquidity,
		MaxMarkets:   o.cfg.Scan.MaxMarkets,
		Active:       true,
	})
	if err != nil {
		o.breaker.RecordFailure("market listing failed")
		return fmt.Errorf("listing candidate markets: %w", err)
	}

	contextSignals := o.signals.FetchContextSignals(ctx, snapshots)
	if o.advisor != nil {
		o.advisor.ObserveScan(snapshots, contextSignals)
	}

	pf := o.guard.Current()
	candidates, opened := 0, 0

	batchSize := o.cfg.Scan.BatchSize
	if batchSize <= 0 {
		batchSize = len(snapshots)
	}
	for i := 0; i < len(snapshots); i += batchSize {
		end := i + batchSize
		if end > len(snapshots) {
			end = len(snapshots)
		}

		for _, snapshot := range snapshots[i:end] {
			positions, rejections := o.decider.Decide(ctx, snapshot, contextSignals, pf)
			for _, rej := range rejections {
				metrics.RecordMarketRejected(rej.Rule)
			}
			if len(positions) == 0 {
				if len(rejections) > 0 {
					last := rejections[len(rejections)-1]
					o.audit.LogMarketRejected(last.MarketID, last.Reason, snapshot.YesPrice, snapshot.NoPrice)
				}
				continue
			}

			candidates++
			n, err := o.executor.OpenPositions(ctx, pf, positions)
			if err != nil {
				o.logger.WithFields(logrus.Fields{
					"market_id": snapshot.ID,
					"error":     err.Error(),
				}).Error("Failed to open positions")
				continue
			}
			opened += n
		}

		if end < len(snapshots) && o.cfg.Scan.BatchDelayMs > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(o.cfg.Scan.BatchDelayMs) * time.Millisecond):
			}
		}
	}

	o.breaker.RecordSuccess()
	o.monitor.Update(pf)

	elapsed := time.Since(start)
	metrics.RecordScanCycle(elapsed.Seconds())
	o.strategy.LogScanCycle(len(snapshots), candidates, opened, float64(elapsed.Milliseconds()))
	return nil
}

// RunExitCycle executes one exit pass over the open positions and feeds the
// settled results into the circuit breaker.
func (o *Orchestrator) RunExitCycle(ctx context.Context) error {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	if o.guard.Simulating() {
		return nil
	}

	pf := o.guard.Current()
	closed := o.exits.CheckAndCloseAll(ctx, pf)

	o.executor.PersistClosed(ctx, closed)
	for _, pos := range closed {
		o.breaker.RecordTradeResult(pos, pf.Capital)
	}
	// DCA add-ons mutate open positions in place
	o.executor.PersistOpen(ctx, pf)

	o.monitor.Update(pf)
	return nil
}

// RunRetune reruns the walk-forward parameter search and publishes the
// resulting multipliers.
func (o *Orchestrator) RunRetune(ctx context.Context) error {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	if o.guard.Simulating() {
		return nil
	}

	params, err := o.learning.Retune(ctx)
	if err != nil {
		return fmt.Errorf("retune failed: %w", err)
	}

	metrics.RecordRetune()
	metrics.UpdateLearningMultiplier(params.SizeMultiplier)
	return nil
}

// GetStatus returns a snapshot of the running bot. It takes the cycle lock
// so callers on other goroutines see a settled portfolio.
func (o *Orchestrator) GetStatus() Status {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	pf := o.guard.Current()
	return Status{
		Running:       o.scheduler.IsRunning(),
		CircuitState:  o.breaker.State(),
		Capital:       pf.Capital,
		OpenPositions: len(pf.ActiveTrades),
		TotalExposure: pf.TotalExposure(),
		Drawdown:      pf.Drawdown(),
		Mode:          o.learning.Current().Mode,
		NextRun:       o.scheduler.GetNextRun(),
	}
}

// RecoverPortfolio rebuilds the live portfolio from persisted positions at
// startup and records the recovery in the audit log.
func RecoverPortfolio(ctx context.Context, repo repository.PositionRepository, startingCapital float64, audit *logger.AuditLogger) (*models.Portfolio, error) {
	pf, err := repo.RecoverPortfolio(ctx, startingCapital)
	if err != nil {
		return nil, fmt.Errorf("recovering portfolio: %w", err)
	}
	audit.LogPortfolioRecovery(len(pf.ActiveTrades), pf.Capital)
	return pf, nil
}
