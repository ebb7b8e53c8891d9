package signals

import (
	"fmt"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// Drawdown recovery tiers. Thresholds are fractions of starting capital.
const (
	tier1Drawdown = 0.03
	tier2Drawdown = 0.05
	tier3Drawdown = 0.10

	tier1LossStreak = 3
)

// recoveryTier describes the sizing restriction for one drawdown tier.
type recoveryTier struct {
	Level          int
	SizeMultiplier float64
	MinConviction  int
}

var recoveryTiers = []recoveryTier{
	{Level: 0, SizeMultiplier: 1.00, MinConviction: 0},
	{Level: 1, SizeMultiplier: 0.75, MinConviction: 40},
	{Level: 2, SizeMultiplier: 0.50, MinConviction: 60},
	{Level: 3, SizeMultiplier: 0.25, MinConviction: 70},
}

// AntiFragility restricts position sizing during drawdowns and vetoes
// low-conviction trades until capital recovers.
type AntiFragility struct{}

// NewAntiFragility creates the drawdown recovery module.
func NewAntiFragility() *AntiFragility {
	return &AntiFragility{}
}

// TierFor classifies the portfolio's current state into a recovery tier.
func (af *AntiFragility) TierFor(pf *models.Portfolio) recoveryTier {
	drawdown := pf.Drawdown()
	streak := pf.LossStreak()

	switch {
	case drawdown >= tier3Drawdown || (streak >= tier1LossStreak && drawdown >= tier2Drawdown):
		return recoveryTiers[3]
	case drawdown >= tier2Drawdown:
		return recoveryTiers[2]
	case drawdown >= tier1Drawdown || streak >= tier1LossStreak:
		return recoveryTiers[1]
	default:
		return recoveryTiers[0]
	}
}

// Evaluate applies the tier policy to a candidate trade. totalConviction is
// the engine score plus all advanced bonuses; below the tier minimum the
// trade is vetoed with an explicit reason.
func (af *AntiFragility) Evaluate(pf *models.Portfolio, totalConviction int) SignalResult {
	tier := af.TierFor(pf)
	if tier.Level == 0 {
		return SignalResult{Module: "anti_fragility", SizeMultiplier: 1.0}
	}

	if totalConviction < tier.MinConviction {
		return SignalResult{
			Module:         "anti_fragility",
			SizeMultiplier: tier.SizeMultiplier,
			Veto:           true,
			Reason: fmt.Sprintf("recovery tier %d requires conviction >= %d, got %d",
				tier.Level, tier.MinConviction, totalConviction),
		}
	}

	return SignalResult{
		Module:         "anti_fragility",
		SizeMultiplier: tier.SizeMultiplier,
		Reason:         fmt.Sprintf("recovery tier %d, size x%.2f", tier.Level, tier.SizeMultiplier),
	}
}
