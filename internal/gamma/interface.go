// Package gamma provides clients for the Polymarket Gamma and CLOB APIs.
package gamma

import (
	"context"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// MarketFilters narrows the candidate market listing.
type MarketFilters struct {
	MinVolume24h float64
	MinLiquidity float64
	MaxMarkets   int
	Active       bool
}

// MarketSource provides market snapshots.
type MarketSource interface {
	GetMarketSnapshot(ctx context.Context, marketID string) (*models.MarketSnapshot, error)
	ListCandidateMarkets(ctx context.Context, filters MarketFilters) ([]models.MarketSnapshot, error)
}

// DepthSource provides order book depth for liquidity checks.
type DepthSource interface {
	GetOrderBookDepth(ctx context.Context, marketID string, side models.Side) (*models.OrderBook, error)
}

// TradeSource provides recent trade prints for short-horizon trend detection.
type TradeSource interface {
	GetRecentTradePrices(ctx context.Context, marketID string) ([]models.TradePrint, error)
}

// SignalSource provides the contextual signals consumed by the decision engine.
// Arbitrage candidates are derived locally from snapshot price sums rather
// than fetched.
type SignalSource interface {
	GetTensionSignal(ctx context.Context) (*models.TensionSignal, error)
	GetWhaleAlerts(ctx context.Context) ([]models.WhaleAlert, error)
	DeriveArbitrageCandidates(snapshots []models.MarketSnapshot) []models.ArbitrageCandidate
}

// DataSource aggregates everything a scan cycle needs from the outside world.
type DataSource interface {
	MarketSource
	DepthSource
	TradeSource
}
