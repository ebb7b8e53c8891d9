package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxClosedTrades bounds the rolling closed-trade window
const MaxClosedTrades = 200

// Portfolio holds trading capital and the open/closed position sets.
// Opening deducts the stake atomically; closing credits shares times exit
// price. One open position per (market, side) pair except via DCA.
type Portfolio struct {
	Capital         float64
	StartingCapital float64
	ActiveTrades    map[uuid.UUID]*Position
	ClosedTrades    []*Position
}

// NewPortfolio creates a portfolio with the given starting capital
func NewPortfolio(startingCapital float64) *Portfolio {
	return &Portfolio{
		Capital:         startingCapital,
		StartingCapital: startingCapital,
		ActiveTrades:    make(map[uuid.UUID]*Position),
	}
}

// Open deducts the position's stake from capital and tracks it as active
func (pf *Portfolio) Open(pos *Position) error {
	if pos.Amount <= 0 {
		return ErrInvalidStake
	}
	if pos.Amount > pf.Capital {
		return ErrInsufficientCapital
	}
	if existing := pf.FindActive(pos.MarketID, pos.Side); existing != nil {
		return ErrDuplicatePosition
	}
	pf.Capital -= pos.Amount
	pf.ActiveTrades[pos.ID] = pos
	return nil
}

// AddToPosition funds a DCA add-on from capital
func (pf *Portfolio) AddToPosition(pos *Position, addAmount, price float64) error {
	if addAmount > pf.Capital {
		return ErrInsufficientCapital
	}
	if err := pos.ApplyDCA(addAmount, price); err != nil {
		return err
	}
	pf.Capital -= addAmount
	return nil
}

// Close settles an active position at the exit price, credits the payout,
// and moves it into the closed window (most recent first, capped).
func (pf *Portfolio) Close(id uuid.UUID, exitPrice float64, reason string, now time.Time) (*Position, error) {
	pos, ok := pf.ActiveTrades[id]
	if !ok {
		return nil, ErrNotFound
	}
	pos.Close(exitPrice, reason, now)
	pf.Capital += pos.Payout()
	delete(pf.ActiveTrades, id)

	pf.ClosedTrades = append([]*Position{pos}, pf.ClosedTrades...)
	if len(pf.ClosedTrades) > MaxClosedTrades {
		pf.ClosedTrades = pf.ClosedTrades[:MaxClosedTrades]
	}
	return pos, nil
}

// FindActive returns the open position for a (market, side) pair, if any
func (pf *Portfolio) FindActive(marketID string, side Side) *Position {
	for _, pos := range pf.ActiveTrades {
		if pos.MarketID == marketID && pos.Side == side {
			return pos
		}
	}
	return nil
}

// FindActiveByMarket returns any open position on a market regardless of side
func (pf *Portfolio) FindActiveByMarket(marketID string) *Position {
	for _, pos := range pf.ActiveTrades {
		if pos.MarketID == marketID {
			return pos
		}
	}
	return nil
}

// Drawdown returns the fractional decline from starting capital, floored at 0
func (pf *Portfolio) Drawdown() float64 {
	if pf.StartingCapital <= 0 {
		return 0
	}
	dd := (pf.StartingCapital - pf.Capital) / pf.StartingCapital
	if dd < 0 {
		return 0
	}
	return dd
}

// LossStreak counts consecutive losses from the most recent closed trades
func (pf *Portfolio) LossStreak() int {
	streak := 0
	for _, pos := range pf.ClosedTrades {
		if pos.IsWin() {
			break
		}
		streak++
	}
	return streak
}

// TotalExposure sums the stakes of all open positions
func (pf *Portfolio) TotalExposure() float64 {
	total := 0.0
	for _, pos := range pf.ActiveTrades {
		total += pos.Amount
	}
	return total
}

// Clone returns a deep copy, used to isolate simulated backtest state
func (pf *Portfolio) Clone() *Portfolio {
	clone := &Portfolio{
		Capital:         pf.Capital,
		StartingCapital: pf.StartingCapital,
		ActiveTrades:    make(map[uuid.UUID]*Position, len(pf.ActiveTrades)),
		ClosedTrades:    make([]*Position, len(pf.ClosedTrades)),
	}
	for id, pos := range pf.ActiveTrades {
		copied := *pos
		copied.PriceHistory = append([]float64(nil), pos.PriceHistory...)
		clone.ActiveTrades[id] = &copied
	}
	for i, pos := range pf.ClosedTrades {
		copied := *pos
		clone.ClosedTrades[i] = &copied
	}
	return clone
}
