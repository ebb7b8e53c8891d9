// Package signals implements the advanced signal modules that adjust
// conviction and position size around the core decision rules: market memory,
// cross-market correlation, entry timing, event catalysts, anti-fragility and
// calendar awareness.
package signals

// MaxTotalBonus caps the combined conviction adjustment from all modules.
const MaxTotalBonus = 25

// SignalResult is the typed numeric output of one signal module. The Reason
// string exists for the audit trail only; scoring reads Bonus, SizeMultiplier
// and Veto.
type SignalResult struct {
	Module         string
	Bonus          int
	SizeMultiplier float64
	Veto           bool
	Reason         string
}

// Evaluation aggregates the module results for one candidate trade.
type Evaluation struct {
	Bonus          int
	SizeMultiplier float64
	Veto           bool
	VetoReason     string
	Results        []SignalResult
}

// Reasons returns the audit reason strings of all contributing modules.
func (e Evaluation) Reasons() []string {
	reasons := make([]string, 0, len(e.Results))
	for _, r := range e.Results {
		if r.Reason != "" {
			reasons = append(reasons, r.Module+": "+r.Reason)
		}
	}
	return reasons
}

// aggregate folds module results into a capped bonus and combined size
// multiplier. The first veto wins.
func aggregate(results []SignalResult) Evaluation {
	eval := Evaluation{SizeMultiplier: 1.0, Results: results}

	for _, r := range results {
		if r.Veto && !eval.Veto {
			eval.Veto = true
			eval.VetoReason = r.Reason
		}
		eval.Bonus += r.Bonus
		if r.SizeMultiplier > 0 {
			eval.SizeMultiplier *= r.SizeMultiplier
		}
	}

	if eval.Bonus > MaxTotalBonus {
		eval.Bonus = MaxTotalBonus
	}
	if eval.Bonus < -MaxTotalBonus {
		eval.Bonus = -MaxTotalBonus
	}

	return eval
}
