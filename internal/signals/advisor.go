package signals

import (
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// Advisor bundles the advanced signal modules and runs them in a fixed
// order for each candidate trade: conviction adjustments first, then the
// anti-fragility gate on the combined score, then the calendar size overlay.
type Advisor struct {
	Memory        *MarketMemory
	Correlation   *CorrelationTracker
	Timing        *EntryTiming
	Catalysts     *CatalystTracker
	AntiFragility *AntiFragility
	Calendar      *Calendar

	enabled bool
}

// NewAdvisor wires the module set over a shared market memory.
func NewAdvisor(enabled bool) *Advisor {
	memory := NewMarketMemory()
	return &Advisor{
		Memory:        memory,
		Correlation:   NewCorrelationTracker(memory),
		Timing:        NewEntryTiming(memory),
		Catalysts:     NewCatalystTracker(memory),
		AntiFragility: NewAntiFragility(),
		Calendar:      NewCalendar(),
		enabled:       enabled,
	}
}

// ObserveScan feeds one scan's snapshots into the stateful modules: memory
// histories, the correlation map, and volume-spike catalysts. Trend text from
// the tension signal seeds event catalysts.
func (a *Advisor) ObserveScan(snapshots []models.MarketSnapshot, signals models.ContextSignals) {
	if !a.enabled {
		return
	}

	for _, s := range snapshots {
		a.Catalysts.ObserveVolumeSpike(s)
		a.Memory.Observe(s)
	}
	a.Correlation.Rebuild(snapshots)

	if signals.Tension != nil {
		a.Catalysts.AddTrendText(signals.Tension.TrendText)
	}
}

// Evaluate runs the module pipeline for a candidate trade. baseConviction is
// the engine rule's score on the 0-100 scale; the returned evaluation carries
// the capped bonus, the combined size multiplier, and any veto.
func (a *Advisor) Evaluate(snapshot models.MarketSnapshot, pf *models.Portfolio, baseConviction int) Evaluation {
	if !a.enabled {
		return Evaluation{SizeMultiplier: 1.0}
	}

	results := []SignalResult{
		a.Memory.DetectPriceRange(snapshot.ID, snapshot.YesPrice),
		momentumOnly(a.Memory, snapshot.ID),
		a.Correlation.Evaluate(snapshot.ID),
		a.Timing.Evaluate(snapshot.ID, snapshot.YesPrice),
		a.Catalysts.Evaluate(snapshot),
	}
	eval := aggregate(results)

	// Anti-fragility gates on the combined score, after all bonuses
	gate := a.AntiFragility.Evaluate(pf, baseConviction+eval.Bonus)
	calendar := a.Calendar.Evaluate()

	eval.Results = append(eval.Results, gate, calendar)
	if gate.Veto {
		eval.Veto = true
		eval.VetoReason = gate.Reason
	}
	if gate.SizeMultiplier > 0 {
		eval.SizeMultiplier *= gate.SizeMultiplier
	}
	if calendar.SizeMultiplier > 0 {
		eval.SizeMultiplier *= calendar.SizeMultiplier
	}

	return eval
}

func momentumOnly(memory *MarketMemory, marketID string) SignalResult {
	_, result := memory.DetectMomentum(marketID)
	return result
}
