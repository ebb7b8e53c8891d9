package backtest

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/engine"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/risk"
)

// ErrPoolTooSmall means the resolved-market pool cannot support a meaningful
// train/test split.
var ErrPoolTooSmall = errors.New("backtest pool too small")

// Decider is the slice of the decision engine the backtester replays samples
// through.
type Decider interface {
	Decide(ctx context.Context, snapshot models.MarketSnapshot, contextSignals models.ContextSignals, pf *models.Portfolio) ([]*models.Position, []engine.Rejection)
}

// Report is the outcome of one walk-forward run.
type Report struct {
	TrainMetrics    models.PerformanceMetrics `json:"train_metrics"`
	TestMetrics     models.PerformanceMetrics `json:"test_metrics"`
	CombinedMetrics models.PerformanceMetrics `json:"combined_metrics"`
	TradeResults    []models.TradeResult      `json:"trade_results"`
	Gate            GateResult                `json:"gate"`
	PoolSize        int                       `json:"pool_size"`
}

// Runner replays resolved markets through the decision engine on an isolated
// simulated portfolio, swapped in through the portfolio guard so live state
// is restored even when a sample panics.
type Runner struct {
	cfg     config.BacktestConfig
	sampler *Sampler
	decider Decider
	guard   *risk.PortfolioGuard
	logger  *logrus.Logger
}

// NewRunner creates a walk-forward runner.
func NewRunner(cfg config.BacktestConfig, sampler *Sampler, decider Decider, guard *risk.PortfolioGuard, logger *logrus.Logger) *Runner {
	return &Runner{
		cfg:     cfg,
		sampler: sampler,
		decider: decider,
		guard:   guard,
		logger:  logger,
	}
}

// Run builds the pool, splits it, simulates both splits, and applies the
// overfit gate.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	pool, err := r.sampler.BuildPool(ctx)
	if err != nil {
		return nil, err
	}
	train, test := r.sampler.Split(pool)

	trainLedger := r.runSplit(ctx, train, "train")
	testLedger := r.runSplit(ctx, test, "test")

	report := &Report{
		TrainMetrics:    CalculateMetrics(trainLedger),
		TestMetrics:     CalculateMetrics(testLedger),
		CombinedMetrics: CalculateMetrics(mergeLedgers(r.cfg.InitialCapital, trainLedger, testLedger)),
		TradeResults:    append(append([]models.TradeResult{}, trainLedger.Trades...), testLedger.Trades...),
		PoolSize:        len(pool),
	}
	report.Gate = EvaluateOverfit(report.TrainMetrics, report.TestMetrics, r.cfg)

	r.logger.WithFields(logrus.Fields{
		"pool_size":   report.PoolSize,
		"train_roi":   report.TrainMetrics.ROIPct,
		"test_roi":    report.TestMetrics.ROIPct,
		"overfit":     report.Gate.Overfit,
		"trade_count": len(report.TradeResults),
	}).Info("Walk-forward run complete")

	return report, nil
}

// runSplit simulates one split on a fresh portfolio. The guard swap is
// restored by defer, so a panicking sample cannot leak simulated state into
// the live portfolio.
func (r *Runner) runSplit(ctx context.Context, samples []models.BacktestSample, split string) *Ledger {
	sim := models.NewPortfolio(r.cfg.InitialCapital)
	restore := r.guard.Swap(sim)
	defer restore()

	ledger := NewLedger(r.cfg.InitialCapital)
	for _, sample := range samples {
		r.simulateSample(ctx, sim, ledger, sample, split)
	}
	return ledger
}

// simulateSample runs one market through the decision engine and settles any
// resulting positions at the known outcome with round-trip costs applied.
func (r *Runner) simulateSample(ctx context.Context, sim *models.Portfolio, ledger *Ledger, sample models.BacktestSample, split string) {
	positions, rejections := r.decider.Decide(ctx, sample.Market, models.ContextSignals{}, sim)
	if len(positions) == 0 {
		if len(rejections) > 0 {
			r.logger.WithFields(logrus.Fields{
				"market_id": sample.Market.ID,
				"reason":    rejections[len(rejections)-1].Reason,
			}).Debug("Backtest sample rejected")
		}
		return
	}

	for _, pos := range positions {
		if err := sim.Open(pos); err != nil {
			continue
		}

		exitPrice := 0.0
		if pos.Side == sample.ActualWinner {
			exitPrice = 1.0
		}
		settled, err := sim.Close(pos.ID, exitPrice, "backtest settlement", sample.Market.EndTime)
		if err != nil {
			continue
		}

		gross := *settled.PnL
		costs := r.cfg.SlippageRate * settled.Amount
		if gross > 0 {
			costs += r.cfg.FeeRate * gross
		}
		sim.Capital -= costs
		net := gross - costs

		ledger.Record(models.TradeResult{
			MarketID:   settled.MarketID,
			Strategy:   settled.Strategy,
			Category:   settled.Category,
			Side:       settled.Side,
			Stake:      settled.Amount,
			EntryPrice: settled.EntryPrice,
			PnL:        net,
			Won:        net > 0,
			Split:      split,
			Time:       sample.Market.EndTime,
		}, sim.Capital)
	}
}

// mergeLedgers replays both splits' trades against one capital line for the
// combined metrics view.
func mergeLedgers(initialCapital float64, ledgers ...*Ledger) *Ledger {
	merged := NewLedger(initialCapital)
	capital := initialCapital
	for _, l := range ledgers {
		for _, trade := range l.Trades {
			capital += trade.PnL
			merged.Record(trade, capital)
		}
	}
	return merged
}
