package learning

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/backtest"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/logger"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// Backtester runs one walk-forward backtest with the decision engine forced
// to the given parameters.
type Backtester interface {
	Run(ctx context.Context, params *models.LearningParameters) (*backtest.Report, error)
}

// Store persists learning parameters across restarts.
type Store interface {
	SaveParameters(ctx context.Context, params *models.LearningParameters) error
	LoadParameters(ctx context.Context) (*models.LearningParameters, error)
}

// Controller owns the active learning parameters. It serves them to the
// decision engine and recomputes them on the retune schedule by comparing a
// forced-NEUTRAL baseline run against the currently active parameters.
type Controller struct {
	cfg    config.LearningConfig
	bt     Backtester
	store  Store
	audit  *logger.AuditLogger
	logger *logrus.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current *models.LearningParameters
}

// NewController creates a controller starting from neutral parameters.
// Store may be nil for offline runs.
func NewController(cfg config.LearningConfig, bt Backtester, store Store, audit *logger.AuditLogger, log *logrus.Logger) *Controller {
	return &Controller{
		cfg:     cfg,
		bt:      bt,
		store:   store,
		audit:   audit,
		logger:  log,
		now:     time.Now,
		current: models.NeutralParameters(),
	}
}

// Current returns the active parameters. Implements the decision engine's
// parameter provider.
func (c *Controller) Current() *models.LearningParameters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// LoadPersisted replaces the in-memory parameters with the last persisted
// set, keeping neutral when none exist.
func (c *Controller) LoadPersisted(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	params, err := c.store.LoadParameters(ctx)
	if err != nil {
		return fmt.Errorf("loading learning parameters: %w", err)
	}
	if params == nil {
		return nil
	}
	c.mu.Lock()
	c.current = params
	c.mu.Unlock()
	c.logger.WithFields(logrus.Fields{
		"mode":   params.Mode,
		"reason": params.Reason,
	}).Info("Learning parameters restored")
	return nil
}

// Retune runs the baseline (and, when non-default parameters are active, the
// current) backtest, picks the winner, maps it to a regime, applies the
// overfit gate, and derives per-strategy and per-category overrides. The
// result is installed, persisted, and returned.
func (c *Controller) Retune(ctx context.Context) (*models.LearningParameters, error) {
	previous := c.Current()

	baseline, err := c.bt.Run(ctx, models.NeutralParameters())
	if err != nil {
		return nil, fmt.Errorf("baseline backtest: %w", err)
	}

	winner := baseline
	if nonDefault(previous) {
		currentRun, err := c.bt.Run(ctx, previous)
		if err != nil {
			return nil, fmt.Errorf("current-parameters backtest: %w", err)
		}
		if c.currentBeatsBaseline(baseline.TestMetrics, currentRun.TestMetrics) {
			winner = currentRun
		}
	}

	next := c.deriveParameters(winner)
	next.UpdatedAt = c.now()

	c.mu.Lock()
	c.current = next
	c.mu.Unlock()

	c.audit.LogParameterChange("learning_parameters", previous.Mode, next.Mode, next.Reason)
	c.logger.WithFields(logrus.Fields{
		"mode":                next.Mode,
		"size_multiplier":     next.SizeMultiplier,
		"disabled_strategies": next.DisabledStrategies,
		"reason":              next.Reason,
	}).Info("Retune complete")

	if c.store != nil {
		if err := c.store.SaveParameters(ctx, next); err != nil {
			c.logger.WithField("error", err.Error()).Error("Failed to persist learning parameters")
		}
	}
	return next, nil
}

// currentBeatsBaseline prefers the current parameters only when they improve
// ROI without worsening drawdown past the tolerance fraction of the
// baseline's drawdown.
func (c *Controller) currentBeatsBaseline(baseline, current models.PerformanceMetrics) bool {
	if current.ROIPct <= baseline.ROIPct {
		return false
	}
	allowedDrawdown := baseline.MaxDrawdownPct * (1 + c.cfg.DrawdownTolerance)
	return current.MaxDrawdownPct <= allowedDrawdown
}

// deriveParameters maps the winning run into the next parameter set. An
// overfit verdict forces full neutral, dropping every override.
func (c *Controller) deriveParameters(winner *backtest.Report) *models.LearningParameters {
	if winner.Gate.Overfit {
		next := models.NeutralParameters()
		next.Reason = "overfit gate: " + joinReasons(winner.Gate.Reasons)
		return next
	}

	r := regimeFor(winner.TestMetrics)
	next := &models.LearningParameters{
		ConfidenceMultiplier: r.confidenceMultiplier,
		SizeMultiplier:       r.sizeMultiplier,
		Mode:                 r.mode,
		Reason:               r.reason,
	}

	for name, stats := range tallyByStrategy(winner.TradeResults) {
		if stats.Trades >= c.cfg.MinStrategyTrades && stats.WinRate() < c.cfg.DisableWinRate {
			next.DisabledStrategies = append(next.DisabledStrategies, name)
		}
	}
	sort.Strings(next.DisabledStrategies)

	for category, stats := range tallyByCategory(winner.TradeResults) {
		if stats.Trades < c.cfg.MinStrategyTrades {
			continue
		}
		if band := categoryBand(stats.WinRate()); band != 1.0 {
			if next.CategoryMultipliers == nil {
				next.CategoryMultipliers = make(map[models.Category]float64)
			}
			next.CategoryMultipliers[category] = band
		}
	}

	return next
}

// nonDefault reports whether parameters diverge from the neutral identity.
func nonDefault(p *models.LearningParameters) bool {
	return p.Mode != models.ModeNeutral ||
		p.ConfidenceMultiplier != 1.0 ||
		p.SizeMultiplier != 1.0 ||
		len(p.DisabledStrategies) > 0 ||
		len(p.CategoryMultipliers) > 0
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}
