package signals

import "fmt"

const (
	timingDeviation = 0.02
	timingPenalty   = -5
	timingReward    = 5
)

// EntryTiming penalizes entries right after a price spike and rewards
// dip-buys, comparing the current price against the recent rolling average
// from market memory.
type EntryTiming struct {
	memory *MarketMemory
}

// NewEntryTiming creates an entry timing module over the shared memory.
func NewEntryTiming(memory *MarketMemory) *EntryTiming {
	return &EntryTiming{memory: memory}
}

// Evaluate scores the entry timing for a market at the given price.
func (et *EntryTiming) Evaluate(marketID string, currentPrice float64) SignalResult {
	prices := et.memory.Prices(marketID)
	if len(prices) < 3 {
		return SignalResult{Module: "entry_timing"}
	}

	avg := mean(prices)
	if avg <= 0 {
		return SignalResult{Module: "entry_timing"}
	}

	deviation := (currentPrice - avg) / avg
	switch {
	case deviation > timingDeviation:
		return SignalResult{
			Module: "entry_timing",
			Bonus:  timingPenalty,
			Reason: fmt.Sprintf("price %.1f%% above rolling average, likely spiked", deviation*100),
		}
	case deviation < -timingDeviation:
		return SignalResult{
			Module: "entry_timing",
			Bonus:  timingReward,
			Reason: fmt.Sprintf("price %.1f%% below rolling average, dip entry", deviation*100),
		}
	default:
		return SignalResult{Module: "entry_timing"}
	}
}
