package signals

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

const (
	maxObservationsPerMarket = 30
	maxObservationAge        = 24 * time.Hour

	rangeMinCrossings = 3
	rangeMaxWidth     = 0.30

	supportBonus      = 8
	resistancePenalty = -3
	momentumMaxBonus  = 10
)

// observation is one price/volume sample for a market.
type observation struct {
	Price  float64
	Volume float64
	Time   time.Time
}

// MarketMemory keeps a bounded rolling price/volume history per market and
// derives range-bound and momentum readings from it.
type MarketMemory struct {
	mu      sync.RWMutex
	history map[string][]observation
	now     func() time.Time
}

// NewMarketMemory creates an empty market memory.
func NewMarketMemory() *MarketMemory {
	return &MarketMemory{
		history: make(map[string][]observation),
		now:     time.Now,
	}
}

// Observe records one snapshot into the rolling history, evicting stale and
// excess entries.
func (m *MarketMemory) Observe(snapshot models.MarketSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	obs := append(m.history[snapshot.ID], observation{
		Price:  snapshot.YesPrice,
		Volume: snapshot.Volume24h,
		Time:   now,
	})

	cutoff := now.Add(-maxObservationAge)
	start := 0
	for start < len(obs) && obs[start].Time.Before(cutoff) {
		start++
	}
	obs = obs[start:]

	if len(obs) > maxObservationsPerMarket {
		obs = obs[len(obs)-maxObservationsPerMarket:]
	}

	m.history[snapshot.ID] = obs
}

// Prices returns the recorded price sequence for a market, oldest first.
func (m *MarketMemory) Prices(marketID string) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obs := m.history[marketID]
	prices := make([]float64, len(obs))
	for i, o := range obs {
		prices[i] = o.Price
	}
	return prices
}

// AverageVolume returns the mean recorded volume for a market, 0 when the
// history is empty.
func (m *MarketMemory) AverageVolume(marketID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obs := m.history[marketID]
	if len(obs) == 0 {
		return 0
	}
	var total float64
	for _, o := range obs {
		total += o.Volume
	}
	return total / float64(len(obs))
}

// DetectPriceRange flags range-bound behavior: at least 3 crossings of the
// range midpoint with total width under 30%. Near support earns a bonus,
// near resistance a small penalty.
func (m *MarketMemory) DetectPriceRange(marketID string, currentPrice float64) SignalResult {
	prices := m.Prices(marketID)
	if len(prices) < 5 {
		return SignalResult{Module: "market_memory"}
	}

	low, high := prices[0], prices[0]
	for _, p := range prices {
		low = math.Min(low, p)
		high = math.Max(high, p)
	}
	width := high - low
	if width <= 0 || width >= rangeMaxWidth {
		return SignalResult{Module: "market_memory"}
	}

	mid := (low + high) / 2
	crossings := 0
	for i := 1; i < len(prices); i++ {
		if (prices[i-1] < mid) != (prices[i] < mid) {
			crossings++
		}
	}
	if crossings < rangeMinCrossings {
		return SignalResult{Module: "market_memory"}
	}

	// Position within the range: bottom fifth is support, top fifth resistance
	pos := (currentPrice - low) / width
	switch {
	case pos <= 0.2:
		return SignalResult{
			Module: "market_memory",
			Bonus:  supportBonus,
			Reason: fmt.Sprintf("range-bound near support (%.2f-%.2f)", low, high),
		}
	case pos >= 0.8:
		return SignalResult{
			Module: "market_memory",
			Bonus:  resistancePenalty,
			Reason: fmt.Sprintf("range-bound near resistance (%.2f-%.2f)", low, high),
		}
	default:
		return SignalResult{Module: "market_memory"}
	}
}

// MomentumClass labels the detected momentum shape.
type MomentumClass string

// Momentum classifications.
const (
	MomentumFlat           MomentumClass = "flat"
	MomentumAcceleratingUp MomentumClass = "accelerating_up"
	MomentumDecelerating   MomentumClass = "decelerating"
	MomentumDown           MomentumClass = "accelerating_down"
)

// DetectMomentum compares first-half vs second-half averages of the recent
// price window plus the most recent delta, contributing a bonus scaled by
// magnitude.
func (m *MarketMemory) DetectMomentum(marketID string) (MomentumClass, SignalResult) {
	prices := m.Prices(marketID)
	if len(prices) < 4 {
		return MomentumFlat, SignalResult{Module: "market_memory"}
	}

	half := len(prices) / 2
	firstAvg := mean(prices[:half])
	secondAvg := mean(prices[half:])
	shift := secondAvg - firstAvg
	lastDelta := prices[len(prices)-1] - prices[len(prices)-2]

	magnitudeBonus := func(v float64) int {
		b := int(math.Round(math.Abs(v) * 100))
		if b > momentumMaxBonus {
			b = momentumMaxBonus
		}
		return b
	}

	switch {
	case shift > 0.01 && lastDelta > 0:
		return MomentumAcceleratingUp, SignalResult{
			Module: "market_memory",
			Bonus:  magnitudeBonus(shift),
			Reason: fmt.Sprintf("accelerating upward momentum (+%.3f)", shift),
		}
	case shift > 0.01 && lastDelta <= 0:
		return MomentumDecelerating, SignalResult{
			Module: "market_memory",
			Bonus:  0,
			Reason: "upward momentum decelerating",
		}
	case shift < -0.01 && lastDelta < 0:
		return MomentumDown, SignalResult{
			Module: "market_memory",
			Bonus:  -magnitudeBonus(shift),
			Reason: fmt.Sprintf("accelerating downward momentum (%.3f)", shift),
		}
	default:
		return MomentumFlat, SignalResult{Module: "market_memory"}
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var total float64
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}
