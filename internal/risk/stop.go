// Package risk implements the exit engine owning the open-position
// lifecycle: dynamic stops, take-profit, timeout, spike-lock, settlement,
// and bounded averaging-down.
package risk

import "time"

// StopInputs are the parameters of one dynamic stop computation.
type StopInputs struct {
	CategoryVolatility float64
	MaxReturn          float64
	TrailingActivation float64
	TrailingDistance   float64
	BreakEvenReturn    float64
	Age                time.Duration
	DecayAge           time.Duration
	DecayPenalty       float64
}

// ComputeStop returns the dynamic stop level as a fractional return
// threshold. The base stop is the negative category volatility; once
// MaxReturn reaches the break-even threshold the stop rises to zero, and
// past the trailing activation it trails MaxReturn by the trailing
// distance. Aged positions get the stop tightened by a fixed penalty.
//
// The result is non-decreasing in MaxReturn: a trailing stop never
// retreats.
func ComputeStop(in StopInputs) float64 {
	stop := -in.CategoryVolatility

	switch {
	case in.TrailingActivation > 0 && in.MaxReturn >= in.TrailingActivation:
		stop = in.MaxReturn - in.TrailingDistance
	case in.BreakEvenReturn > 0 && in.MaxReturn >= in.BreakEvenReturn:
		stop = 0
	}

	if in.DecayAge > 0 && in.Age >= in.DecayAge {
		stop += in.DecayPenalty
	}

	return stop
}
