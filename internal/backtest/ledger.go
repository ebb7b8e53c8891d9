// Package backtest implements the walk-forward backtester: a resolved-market
// sampler, an isolated simulation ledger, per-split performance metrics, and
// the configurable overfit gate.
package backtest

import (
	"github.com/oscardcstudio-cell/auto-polymarket/internal/models"
)

// EquityPoint is one observation of simulated capital after a settled trade.
type EquityPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// EquityCurve is the ordered capital history of one simulation run.
type EquityCurve []EquityPoint

// Returns converts the curve into per-step fractional returns.
func (ec EquityCurve) Returns() []float64 {
	if len(ec) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(ec)-1)
	for i := 1; i < len(ec); i++ {
		prev := ec[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, (ec[i].Value-prev)/prev)
	}
	return returns
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction.
func (ec EquityCurve) MaxDrawdown() float64 {
	maxDD := 0.0
	peak := 0.0
	for _, p := range ec {
		if p.Value > peak {
			peak = p.Value
		}
		if peak == 0 {
			continue
		}
		if dd := (peak - p.Value) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Ledger accumulates the settled trades and equity curve of one simulation.
type Ledger struct {
	InitialCapital float64
	Trades         []models.TradeResult
	Curve          EquityCurve
}

// NewLedger starts a ledger at the given capital.
func NewLedger(initialCapital float64) *Ledger {
	return &Ledger{
		InitialCapital: initialCapital,
		Curve:          EquityCurve{{Index: 0, Value: initialCapital}},
	}
}

// Record appends a settled trade and the capital level after it.
func (l *Ledger) Record(trade models.TradeResult, capitalAfter float64) {
	l.Trades = append(l.Trades, trade)
	l.Curve = append(l.Curve, EquityPoint{Index: len(l.Curve), Value: capitalAfter})
}

// FinalCapital returns the last equity observation.
func (l *Ledger) FinalCapital() float64 {
	if len(l.Curve) == 0 {
		return l.InitialCapital
	}
	return l.Curve[len(l.Curve)-1].Value
}
