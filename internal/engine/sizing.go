package engine

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
)

// maxCapitalFraction caps any single position at this fraction of capital.
const maxCapitalFraction = 0.15

// Sizer computes position sizes with the fractional Kelly criterion.
type Sizer struct {
	cfg    config.TradingConfig
	logger *logrus.Logger
}

// NewSizer creates a position sizer.
func NewSizer(cfg config.TradingConfig, logger *logrus.Logger) *Sizer {
	return &Sizer{cfg: cfg, logger: logger}
}

// PositionSize calculates the stake for a trade using fractional Kelly.
//
// Kelly criterion: f = (bp - q) / b where b is the net payout per unit
// (1/price - 1 for a binary contract), p the win probability (confidence),
// q = 1 - p. The raw fraction is clamped to [0.01, MaxPositionPct], scaled
// by the conservative Kelly fraction and any overlay multiplier, and the
// final stake is clamped to [MinPositionSize, capital*0.15].
//
// Returns 0 when capital cannot support the minimum position.
func (s *Sizer) PositionSize(confidence, price, capital, sizeMultiplier float64) float64 {
	if price <= 0 || price >= 1 || confidence <= 0 || confidence >= 1 {
		return 0
	}

	b := 1/price - 1
	p := confidence
	q := 1.0 - p

	kelly := (b*p - q) / b

	// Clamp the raw fraction before scaling so a deeply negative Kelly
	// still produces the floor allocation rather than no trade; the rule
	// cascade has already decided this trade is worth taking.
	target := clamp(kelly, 0.01, s.cfg.MaxPositionPct) * s.cfg.KellyFraction

	if sizeMultiplier > 0 {
		target *= sizeMultiplier
	}

	stake := target * capital
	ceiling := capital * maxCapitalFraction

	stake = clamp(stake, s.cfg.MinPositionSize, ceiling)

	if stake > capital {
		s.logger.WithFields(logrus.Fields{
			"capital":    capital,
			"confidence": confidence,
			"price":      price,
			"stake":      stake,
		}).Debug("Capital cannot support minimum position")
		return 0
	}

	return stake
}

// ExecutionPrice applies the fixed adverse slippage adjustment: the taker
// always fills slightly worse than the quoted price.
func (s *Sizer) ExecutionPrice(price float64) float64 {
	adjusted := price * (1 + s.cfg.SlippageRate)
	return math.Min(adjusted, 0.99)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
