package models

import "time"

// LearningMode is the regime the adaptive controller has selected
type LearningMode string

const (
	ModeNeutral      LearningMode = "NEUTRAL"
	ModeDefensive    LearningMode = "DEFENSIVE"
	ModeConservative LearningMode = "CONSERVATIVE"
	ModeAggressive   LearningMode = "AGGRESSIVE"
)

// LearningParameters is the multiplicative overlay the adaptive controller
// produces and the decision engine consumes. Recomputed on a fixed interval,
// persisted, and reloaded at process start.
type LearningParameters struct {
	ConfidenceMultiplier float64            `db:"confidence_multiplier" json:"confidence_multiplier"`
	SizeMultiplier       float64            `db:"size_multiplier" json:"size_multiplier"`
	Mode                 LearningMode       `db:"mode" json:"mode"`
	Reason               string             `db:"reason" json:"reason"`
	CategoryMultipliers  map[Category]float64 `db:"-" json:"category_multipliers,omitempty"`
	DisabledStrategies   []string           `db:"-" json:"disabled_strategies,omitempty"`
	UpdatedAt            time.Time          `db:"updated_at" json:"updated_at"`
}

// NeutralParameters returns the identity overlay
func NeutralParameters() *LearningParameters {
	return &LearningParameters{
		ConfidenceMultiplier: 1.0,
		SizeMultiplier:       1.0,
		Mode:                 ModeNeutral,
		Reason:               "default",
	}
}

// CategoryMultiplier returns the per-category size multiplier, defaulting to 1
func (lp *LearningParameters) CategoryMultiplier(category Category) float64 {
	if lp.CategoryMultipliers == nil {
		return 1.0
	}
	if m, ok := lp.CategoryMultipliers[category]; ok {
		return m
	}
	return 1.0
}

// StrategyDisabled reports whether a named strategy has been switched off
func (lp *LearningParameters) StrategyDisabled(name string) bool {
	for _, s := range lp.DisabledStrategies {
		if s == name {
			return true
		}
	}
	return false
}
