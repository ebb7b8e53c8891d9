package learning

import (
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// groupStats is the win/loss tally of one strategy or category.
type groupStats struct {
	Trades int
	Wins   int
}

// WinRate returns the group's fractional win rate.
func (g groupStats) WinRate() float64 {
	if g.Trades == 0 {
		return 0
	}
	return float64(g.Wins) / float64(g.Trades)
}

// tallyByStrategy groups trade results by strategy name.
func tallyByStrategy(trades []models.TradeResult) map[string]groupStats {
	stats := make(map[string]groupStats)
	for _, trade := range trades {
		if trade.Strategy == "" {
			continue
		}
		g := stats[trade.Strategy]
		g.Trades++
		if trade.Won {
			g.Wins++
		}
		stats[trade.Strategy] = g
	}
	return stats
}

// tallyByCategory groups trade results by market category.
func tallyByCategory(trades []models.TradeResult) map[models.Category]groupStats {
	stats := make(map[models.Category]groupStats)
	for _, trade := range trades {
		if trade.Category == "" {
			continue
		}
		g := stats[trade.Category]
		g.Trades++
		if trade.Won {
			g.Wins++
		}
		stats[trade.Category] = g
	}
	return stats
}

// categoryBand maps a category win rate to its size multiplier band. The
// losing bands are checked first so a 25% win rate lands on the deepest cut.
func categoryBand(winRate float64) float64 {
	switch {
	case winRate < 0.30:
		return 0.5
	case winRate < 0.40:
		return 0.7
	case winRate >= 0.65:
		return 1.3
	case winRate >= 0.50:
		return 1.1
	default:
		return 1.0
	}
}
