package engine

import (
	"fmt"
	"math"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// Strategy names, used for per-strategy learning stats and disabling.
const (
	StrategyArbitrage = "arbitrage"
	StrategyCrisis    = "crisis"
	StrategyWhale     = "whale"
	StrategyWizard    = "wizard"
	StrategyTrend     = "trend"
	StrategyHypeFade  = "hype_fade"
	StrategyMomentum  = "momentum"
	StrategyLongShot  = "long_shot"
	StrategyMidPrice  = "mid_price"
)

// Minimum order-book notional (USD) required within the slippage band,
// per rule.
const (
	depthMinArbitrage = 50.0
	depthMinWhale     = 100.0
	depthMinWizard    = 50.0
	depthMinTrend     = 100.0
	depthMinHypeFade  = 20.0
	depthMinMomentum  = 50.0
	depthMinFallback  = 20.0
)

const wizardMinComposite = 60.0

func noMatch() ruleOutcome {
	return ruleOutcome{}
}

func rejected(reason string) ruleOutcome {
	return ruleOutcome{matched: true, reason: reason}
}

func trade(intents ...intent) ruleOutcome {
	return ruleOutcome{matched: true, intents: intents}
}

// buildRules assembles the decision cascade in priority order. The first
// matching rule wins; a matched rule that fails its own gates ends the cycle
// rather than falling through.
func buildRules() []Rule {
	return []Rule{
		{Name: StrategyArbitrage, Evaluate: evalArbitrage},
		{Name: StrategyCrisis, Evaluate: evalCrisis},
		{Name: StrategyWhale, Evaluate: evalWhale},
		{Name: StrategyWizard, Evaluate: evalWizard},
		{Name: StrategyTrend, Evaluate: evalTrend},
		{Name: StrategyHypeFade, Evaluate: evalHypeFade},
		{Name: StrategyMomentum, Evaluate: evalMomentum},
		{Name: StrategyLongShot, Evaluate: evalLongShot},
		{Name: StrategyMidPrice, Evaluate: evalMidPrice},
	}
}

// evalArbitrage opens a paired YES+NO trade when the outcome prices sum
// below parity. Sized with equal shares on both legs so the settled leg
// always repays more than the combined stake, which is what makes the pair
// risk-free; Kelly and the signal overlay are bypassed.
func evalArbitrage(rc *ruleContext) ruleOutcome {
	s := rc.snapshot
	e := rc.engine

	// The snapshot is authoritative; the scan-level arbitrage candidate
	// list only prioritizes which markets get scanned first.
	sum := s.PriceSum()
	if sum <= 0 || sum >= e.cfg.ArbitrageThreshold {
		return noMatch()
	}

	if !e.depthCheck(rc.ctx, s.ID, models.SideYes, depthMinArbitrage) ||
		!e.depthCheck(rc.ctx, s.ID, models.SideNo, depthMinArbitrage) {
		return rejected("insufficient depth on one or both arbitrage legs")
	}

	budget := math.Min(e.cfg.ArbitrageBudget, rc.pf.Capital*maxCapitalFraction)
	if budget < e.cfg.MinPositionSize*2 {
		return rejected("capital cannot support both arbitrage legs")
	}

	shares := budget / sum
	return trade(
		intent{side: models.SideYes, confidence: 1.0, strategy: StrategyArbitrage, price: s.YesPrice, stake: shares * s.YesPrice},
		intent{side: models.SideNo, confidence: 1.0, strategy: StrategyArbitrage, price: s.NoPrice, stake: shares * s.NoPrice},
	)
}

// evalCrisis trades crisis-severity tension readings: geopolitical and
// economic markets trade YES with conviction, sports are vetoed outright.
func evalCrisis(rc *ruleContext) ruleOutcome {
	t := rc.signals.Tension
	if t == nil || !t.Crisis() {
		return noMatch()
	}

	s := rc.snapshot
	switch s.Category {
	case models.CategoryGeopolitical, models.CategoryEconomic:
		return trade(intent{side: models.SideYes, confidence: 0.65, strategy: StrategyCrisis, price: s.YesPrice})
	case models.CategorySports:
		return rejected(fmt.Sprintf("sports markets vetoed during crisis (severity %d)", t.SeverityLevel))
	default:
		return trade(intent{side: models.SideYes, confidence: 0.45, strategy: StrategyCrisis, price: s.YesPrice})
	}
}

// evalWhale follows whale alerts, but only with a confirmed short-horizon
// trade trend in the same direction.
func evalWhale(rc *ruleContext) ruleOutcome {
	s := rc.snapshot
	e := rc.engine

	if _, ok := rc.signals.WhaleAlertFor(s.ID); !ok {
		return noMatch()
	}

	var side models.Side
	switch e.tradeTrend(rc.ctx, s.ID) {
	case TrendUp:
		side = models.SideYes
	case TrendDown:
		side = models.SideNo
	default:
		return rejected("whale alert without confirmed price trend")
	}

	if !e.depthCheck(rc.ctx, s.ID, side, depthMinWhale) {
		return rejected("insufficient depth for whale follow")
	}

	return trade(intent{side: side, confidence: 0.75, strategy: StrategyWhale, price: s.Price(side)})
}

// evalWizard buys cheap YES outcomes when the composite tension score is
// high.
func evalWizard(rc *ruleContext) ruleOutcome {
	s := rc.snapshot
	e := rc.engine

	t := rc.signals.Tension
	if t == nil || t.CompositeScore < wizardMinComposite || s.YesPrice >= 0.30 {
		return noMatch()
	}

	if !e.depthCheck(rc.ctx, s.ID, models.SideYes, depthMinWizard) {
		return rejected("insufficient depth for wizard entry")
	}

	return trade(intent{side: models.SideYes, confidence: 0.60, strategy: StrategyWizard, price: s.YesPrice})
}

// evalTrend follows confirmed upward trends on high-volume markets priced
// inside the follow band.
func evalTrend(rc *ruleContext) ruleOutcome {
	s := rc.snapshot
	e := rc.engine

	if s.Volume24h <= e.cfg.HighVolumeThreshold {
		return noMatch()
	}
	if s.YesPrice <= 0.55 || s.YesPrice >= 0.90 {
		return noMatch()
	}
	if e.tradeTrend(rc.ctx, s.ID) != TrendUp {
		return noMatch()
	}

	if !e.depthCheck(rc.ctx, s.ID, models.SideYes, depthMinTrend) {
		return rejected("insufficient depth for trend follow")
	}

	return trade(intent{side: models.SideYes, confidence: 0.65, strategy: StrategyTrend, price: s.YesPrice})
}

// evalHypeFade fades near-certain pricing by buying the opposite side.
func evalHypeFade(rc *ruleContext) ruleOutcome {
	s := rc.snapshot
	e := rc.engine

	var side models.Side
	switch {
	case s.YesPrice > 0.92 && s.YesPrice < 0.98:
		side = models.SideNo
	case s.NoPrice > 0.92 && s.NoPrice < 0.98:
		side = models.SideYes
	default:
		return noMatch()
	}

	if !e.depthCheck(rc.ctx, s.ID, side, depthMinHypeFade) {
		return rejected("insufficient depth for hype fade")
	}

	return trade(intent{side: side, confidence: 0.50, strategy: StrategyHypeFade, price: s.Price(side)})
}

// evalMomentum buys the favorite on moderately active markets, falling back
// to the statistically cheaper side outside the favorite band.
func evalMomentum(rc *ruleContext) ruleOutcome {
	s := rc.snapshot
	e := rc.engine

	if s.Volume24h <= e.cfg.LowVolumeThreshold {
		return noMatch()
	}

	favorite := models.SideYes
	if s.NoPrice > s.YesPrice {
		favorite = models.SideNo
	}
	favPrice := s.Price(favorite)

	var side models.Side
	var confidence float64
	if favPrice >= 0.55 && favPrice <= 0.85 {
		side, confidence = favorite, 0.45
	} else {
		side, confidence = favorite.Opposite(), 0.35
	}

	if !e.depthCheck(rc.ctx, s.ID, side, depthMinMomentum) {
		return rejected("insufficient depth for momentum entry")
	}

	return trade(intent{side: side, confidence: confidence, strategy: StrategyMomentum, price: s.Price(side)})
}

// evalLongShot buys deeply cheap YES outcomes.
func evalLongShot(rc *ruleContext) ruleOutcome {
	s := rc.snapshot
	e := rc.engine

	if s.YesPrice >= 0.20 {
		return noMatch()
	}
	if !e.depthCheck(rc.ctx, s.ID, models.SideYes, depthMinFallback) {
		return rejected("insufficient depth for long-shot entry")
	}
	return trade(intent{side: models.SideYes, confidence: 0.35, strategy: StrategyLongShot, price: s.YesPrice})
}

// evalMidPrice buys moderately priced YES outcomes as the final fallback.
func evalMidPrice(rc *ruleContext) ruleOutcome {
	s := rc.snapshot
	e := rc.engine

	if s.YesPrice < 0.20 || s.YesPrice > 0.40 {
		return noMatch()
	}
	if !e.depthCheck(rc.ctx, s.ID, models.SideYes, depthMinFallback) {
		return rejected("insufficient depth for mid-price entry")
	}
	return trade(intent{side: models.SideYes, confidence: 0.40, strategy: StrategyMidPrice, price: s.YesPrice})
}
