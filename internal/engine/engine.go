// Package engine implements the trade decision engine: an ordered rule
// cascade over market snapshots and contextual signals, fractional Kelly
// sizing, and the advanced-signal conviction overlay.
package engine

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/gamma"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/metrics"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
	"github.com/oscardcstudio-cell/auto-polymarket/internal/signals"
)

// ParamsProvider supplies the current adaptive learning parameters.
type ParamsProvider interface {
	Current() *models.LearningParameters
}

// Rejection records why a market produced no trade this cycle.
type Rejection struct {
	MarketID string
	Rule     string
	Reason   string
}

// intent is a candidate trade produced by a matched rule.
type intent struct {
	side       models.Side
	confidence float64
	strategy   string
	price      float64
	stake      float64 // preset for arbitrage; 0 means Kelly-sized
}

// ruleOutcome is the result of evaluating one cascade rule. An unmatched
// rule passes evaluation to the next; a matched rule either produces intents
// or terminates the cycle with a rejection reason.
type ruleOutcome struct {
	matched bool
	intents []intent
	reason  string
}

// Rule is one entry of the ordered decision cascade.
type Rule struct {
	Name     string
	Evaluate func(rc *ruleContext) ruleOutcome
}

// ruleContext carries the inputs of one decision cycle through the cascade.
type ruleContext struct {
	ctx      context.Context
	engine   *Engine
	snapshot models.MarketSnapshot
	signals  models.ContextSignals
	pf       *models.Portfolio
}

// Engine is the trade decision engine.
type Engine struct {
	cfg     config.TradingConfig
	depth   gamma.DepthSource
	trades  gamma.TradeSource
	advisor *signals.Advisor
	params  ParamsProvider
	sizer   *Sizer
	rules   []Rule
	logger  *logrus.Logger
}

// NewEngine creates a decision engine with the standard rule cascade.
func NewEngine(
	cfg config.TradingConfig,
	depth gamma.DepthSource,
	trades gamma.TradeSource,
	advisor *signals.Advisor,
	params ParamsProvider,
	logger *logrus.Logger,
) *Engine {
	e := &Engine{
		cfg:     cfg,
		depth:   depth,
		trades:  trades,
		advisor: advisor,
		params:  params,
		sizer:   NewSizer(cfg, logger),
		logger:  logger,
	}
	e.rules = buildRules()
	return e
}

// Rules exposes the ordered cascade, mainly for tests asserting priority.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Decide runs the rule cascade for one market and returns the positions to
// open (two for arbitrage, one otherwise) or the rejection trail. Decide
// never mutates the portfolio; the caller opens the returned positions.
func (e *Engine) Decide(
	ctx context.Context,
	snapshot models.MarketSnapshot,
	contextSignals models.ContextSignals,
	pf *models.Portfolio,
) ([]*models.Position, []Rejection) {
	var rejections []Rejection

	if err := snapshot.Validate(); err != nil {
		return nil, append(rejections, Rejection{
			MarketID: snapshot.ID, Rule: "input", Reason: err.Error(),
		})
	}

	if pf.FindActiveByMarket(snapshot.ID) != nil {
		return nil, append(rejections, Rejection{
			MarketID: snapshot.ID, Rule: "portfolio", Reason: "position already open, add-ons handled by the exit cycle",
		})
	}

	if len(pf.ActiveTrades) >= e.cfg.MaxConcurrent {
		return nil, append(rejections, Rejection{
			MarketID: snapshot.ID, Rule: "portfolio", Reason: "max concurrent positions reached",
		})
	}

	rc := &ruleContext{ctx: ctx, engine: e, snapshot: snapshot, signals: contextSignals, pf: pf}

	for _, rule := range e.rules {
		outcome := rule.Evaluate(rc)
		if !outcome.matched {
			continue
		}
		if len(outcome.intents) == 0 {
			return nil, append(rejections, Rejection{
				MarketID: snapshot.ID, Rule: rule.Name, Reason: outcome.reason,
			})
		}
		return e.build(rc, rule.Name, outcome.intents, pf, &rejections)
	}

	return nil, append(rejections, Rejection{
		MarketID: snapshot.ID, Rule: "cascade", Reason: "no rule matched",
	})
}

// build turns matched intents into sized positions.
func (e *Engine) build(
	rc *ruleContext,
	ruleName string,
	intents []intent,
	pf *models.Portfolio,
	rejections *[]Rejection,
) ([]*models.Position, []Rejection) {
	params := e.params.Current()
	snapshot := rc.snapshot
	now := time.Now()

	var positions []*models.Position
	for _, in := range intents {
		if params.StrategyDisabled(in.strategy) {
			*rejections = append(*rejections, Rejection{
				MarketID: snapshot.ID, Rule: ruleName, Reason: "strategy disabled by adaptive controller",
			})
			return nil, *rejections
		}

		confidence := in.confidence
		if in.stake == 0 {
			confidence = clamp(confidence*params.ConfidenceMultiplier, 0.01, 0.99)
			confidence = e.applyMomentumBonus(confidence, snapshot, in.side)
		}

		baseConviction := int(math.Round(confidence * 100))
		conviction := baseConviction
		sizeMult := params.SizeMultiplier * params.CategoryMultiplier(snapshot.Category)
		stake := in.stake

		if in.stake == 0 {
			eval := e.advisor.Evaluate(snapshot, pf, baseConviction)
			if eval.Veto {
				metrics.SignalVetoesTotal.Inc()
				*rejections = append(*rejections, Rejection{
					MarketID: snapshot.ID, Rule: ruleName, Reason: eval.VetoReason,
				})
				return nil, *rejections
			}
			conviction = boundConviction(baseConviction + eval.Bonus)
			sizeMult *= eval.SizeMultiplier

			stake = e.sizer.PositionSize(confidence, in.price, pf.Capital-stakedSoFar(positions), sizeMult)
			if stake == 0 {
				*rejections = append(*rejections, Rejection{
					MarketID: snapshot.ID, Rule: ruleName, Reason: "capital cannot support minimum position",
				})
				return nil, *rejections
			}
		}

		execPrice := in.price
		if in.stake == 0 {
			execPrice = e.sizer.ExecutionPrice(in.price)
		}

		pos := models.NewPosition(snapshot.ID, in.side, stake, execPrice, now)
		pos.Strategy = in.strategy
		pos.Confidence = confidence
		pos.ConvictionScore = conviction
		pos.Category = snapshot.Category
		positions = append(positions, pos)
	}

	return positions, *rejections
}

// applyMomentumBonus adds the flat confidence bonus for a high-volume YES
// favorite trading above 0.60.
func (e *Engine) applyMomentumBonus(confidence float64, snapshot models.MarketSnapshot, side models.Side) float64 {
	if snapshot.Volume24h > e.cfg.HighVolumeThreshold &&
		side == models.SideYes &&
		snapshot.YesPrice > 0.60 {
		return clamp(confidence+0.10, 0.01, 0.99)
	}
	return confidence
}

// depthCheck walks the ask ladder of the side being bought and requires the
// notional within the slippage band to exceed minNotional. Depth provider
// failures fail open: a missing depth read never blocks the trade alone.
func (e *Engine) depthCheck(ctx context.Context, marketID string, side models.Side, minNotional float64) bool {
	book, err := e.depth.GetOrderBookDepth(ctx, marketID, side)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"market_id": marketID,
			"error":     err.Error(),
		}).Debug("Depth check unavailable, failing open")
		return true
	}
	return book.AskNotionalWithin(e.cfg.DepthSlippageBand) >= minNotional
}

// tradeTrend fetches recent prints and classifies their short-horizon trend.
// Fetch failures are inconclusive, not fatal.
func (e *Engine) tradeTrend(ctx context.Context, marketID string) TrendDirection {
	prints, err := e.trades.GetRecentTradePrices(ctx, marketID)
	if err != nil {
		return TrendNone
	}
	return detectTradeTrend(prints)
}

func stakedSoFar(positions []*models.Position) float64 {
	var total float64
	for _, pos := range positions {
		total += pos.Amount
	}
	return total
}

func boundConviction(c int) int {
	if c > 100 {
		return 100
	}
	if c < 0 {
		return 0
	}
	return c
}
