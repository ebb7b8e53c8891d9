// Package learning implements the adaptive strategy controller: periodic
// walk-forward retunes that map realized performance into regime multipliers,
// per-strategy disables, and per-category size bands.
package learning

import (
	"fmt"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// regime is one row of the ROI/drawdown policy table.
type regime struct {
	mode                 models.LearningMode
	sizeMultiplier       float64
	confidenceMultiplier float64
	reason               string
}

// regimeFor maps a run's ROI and max drawdown (both in percent) to a regime.
func regimeFor(m models.PerformanceMetrics) regime {
	switch {
	case m.ROIPct < -2:
		r := regime{
			mode:                 models.ModeDefensive,
			sizeMultiplier:       0.85,
			confidenceMultiplier: 0.95,
			reason:               fmt.Sprintf("ROI %.1f%% negative", m.ROIPct),
		}
		if m.MaxDrawdownPct > 15 {
			r.sizeMultiplier = 0.65
			r.reason = fmt.Sprintf("ROI %.1f%% negative with %.1f%% drawdown", m.ROIPct, m.MaxDrawdownPct)
		}
		return r
	case m.ROIPct > 5 && m.MaxDrawdownPct < 10:
		return regime{
			mode:                 models.ModeAggressive,
			sizeMultiplier:       1.25,
			confidenceMultiplier: 1.05,
			reason:               fmt.Sprintf("ROI %.1f%% with contained drawdown", m.ROIPct),
		}
	case m.ROIPct > 0 && m.MaxDrawdownPct > 10:
		return regime{
			mode:                 models.ModeConservative,
			sizeMultiplier:       0.80,
			confidenceMultiplier: 1.0,
			reason:               fmt.Sprintf("positive ROI but %.1f%% drawdown", m.MaxDrawdownPct),
		}
	default:
		return regime{
			mode:                 models.ModeNeutral,
			sizeMultiplier:       1.0,
			confidenceMultiplier: 1.0,
			reason:               "performance within neutral band",
		}
	}
}
