package engine

import (
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// TrendDirection labels a short-horizon trade print trend.
type TrendDirection int

// Trend directions.
const (
	TrendNone TrendDirection = iota
	TrendUp
	TrendDown
)

const (
	minTrendPrints = 4
	trendThreshold = 0.01
)

// detectTradeTrend classifies the short-horizon trend of recent trade
// prints by comparing the older half's average price against the newer
// half's. Fewer than 4 prints is inconclusive.
func detectTradeTrend(prints []models.TradePrint) TrendDirection {
	if len(prints) < minTrendPrints {
		return TrendNone
	}

	half := len(prints) / 2
	var older, newer float64
	for _, p := range prints[:half] {
		older += p.Price
	}
	older /= float64(half)
	for _, p := range prints[half:] {
		newer += p.Price
	}
	newer /= float64(len(prints) - half)

	switch {
	case newer-older > trendThreshold:
		return TrendUp
	case older-newer > trendThreshold:
		return TrendDown
	default:
		return TrendNone
	}
}
