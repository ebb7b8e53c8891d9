package models

// TensionSignal is the aggregated geopolitical tension reading.
// SeverityLevel follows a DEFCON-like scale where lower is more severe.
type TensionSignal struct {
	SeverityLevel  int      `json:"severity_level"`
	CompositeScore float64  `json:"composite_score"`
	TrendText      []string `json:"trend_text"`
}

// Crisis reports whether the tension reading indicates crisis severity.
func (t TensionSignal) Crisis() bool {
	return t.SeverityLevel > 0 && t.SeverityLevel <= 2
}

// WhaleAlert flags unusually large activity on a market.
type WhaleAlert struct {
	MarketID string  `json:"market_id"`
	Volume   float64 `json:"volume"`
}

// ArbitrageCandidate is a market whose outcome prices sum below parity.
type ArbitrageCandidate struct {
	MarketID string  `json:"market_id"`
	PriceSum float64 `json:"price_sum"`
}

// ContextSignals bundles the external signals consumed by one decision cycle.
// Nil Tension means the provider was unavailable; consumers fail open.
type ContextSignals struct {
	Tension     *TensionSignal
	WhaleAlerts map[string]WhaleAlert
	Arbitrage   map[string]ArbitrageCandidate
}

// WhaleAlertFor returns the whale alert for a market, if any.
func (cs ContextSignals) WhaleAlertFor(marketID string) (WhaleAlert, bool) {
	a, ok := cs.WhaleAlerts[marketID]
	return a, ok
}
