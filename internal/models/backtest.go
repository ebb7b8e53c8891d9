package models

import "time"

// BacktestSample is one resolved market replayed through the decision engine.
// EntryPrice is either a real pre-resolution price or a synthetic draw in
// [0.40, 0.80] biased toward the eventual winner.
type BacktestSample struct {
	Market         MarketSnapshot `json:"market"`
	ActualWinner   Side           `json:"actual_winner"`
	EntryPrice     float64        `json:"entry_price"`
	SyntheticEntry bool           `json:"synthetic_entry"`
}

// TradeResult records the round-trip outcome of one simulated trade
type TradeResult struct {
	MarketID   string    `json:"market_id"`
	Strategy   string    `json:"strategy"`
	Category   Category  `json:"category"`
	Side       Side      `json:"side"`
	Stake      float64   `json:"stake"`
	EntryPrice float64   `json:"entry_price"`
	PnL        float64   `json:"pnl"`
	Won        bool      `json:"won"`
	Split      string    `json:"split"`
	Time       time.Time `json:"time"`
}

// Return is the trade's PnL relative to its stake
func (t TradeResult) Return() float64 {
	if t.Stake == 0 {
		return 0
	}
	return t.PnL / t.Stake
}
