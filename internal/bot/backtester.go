package bot

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/backtest"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/engine"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/gamma"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/metrics"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/repository"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/risk"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/signals"
)

// backtestSource aggregates the market data the walk-forward backtest needs.
type backtestSource interface {
	backtest.HistorySource
	gamma.DepthSource
	gamma.TradeSource
}

// EngineBacktester runs walk-forward backtests with a fresh decision engine
// per run, pinned to the parameter set under evaluation. The advisor overlay
// is disabled inside backtests so runs are deterministic and compare rule
// semantics only.
type EngineBacktester struct {
	cfg     *config.Config
	data    backtestSource
	guard   *risk.PortfolioGuard
	results repository.BacktestResultRepository
	logger  *logrus.Logger
	seed    func() int64
}

// NewEngineBacktester creates a backtester over the live data client.
// results may be nil; reports are then not persisted.
func NewEngineBacktester(
	cfg *config.Config,
	data backtestSource,
	guard *risk.PortfolioGuard,
	results repository.BacktestResultRepository,
	log *logrus.Logger,
) *EngineBacktester {
	return &EngineBacktester{
		cfg:     cfg,
		data:    data,
		guard:   guard,
		results: results,
		logger:  log,
		seed:    func() int64 { return time.Now().UnixNano() },
	}
}

// SetSeed pins the sampler seed, making runs reproducible.
func (eb *EngineBacktester) SetSeed(seed int64) {
	eb.seed = func() int64 { return seed }
}

// Run executes one walk-forward backtest under the given parameters.
func (eb *EngineBacktester) Run(ctx context.Context, params *models.LearningParameters) (*backtest.Report, error) {
	eng := engine.NewEngine(
		eb.cfg.Trading,
		eb.data,
		eb.data,
		signals.NewAdvisor(false),
		staticParams{params: params},
		eb.logger,
	)
	sampler := backtest.NewSampler(eb.cfg.Backtest, eb.data, eb.seed(), eb.logger)
	runner := backtest.NewRunner(eb.cfg.Backtest, sampler, eng, eb.guard, eb.logger)

	start := time.Now()
	report, err := runner.Run(ctx)
	if err != nil {
		return nil, err
	}
	metrics.RecordBacktestDuration(time.Since(start).Seconds())

	if eb.results != nil {
		if err := eb.results.SaveRun(ctx, report); err != nil {
			eb.logger.WithField("error", err.Error()).Warn("Failed to persist backtest report")
		}
	}
	return report, nil
}

// staticParams pins the engine to one parameter set for the whole run.
type staticParams struct {
	params *models.LearningParameters
}

func (s staticParams) Current() *models.LearningParameters {
	if s.params == nil {
		return models.NeutralParameters()
	}
	return s.params
}
