package models

import (
	"time"

	"github.com/google/uuid"
)

// PositionStatus represents the lifecycle state of a position
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "OPEN"
	PositionStatusClosed PositionStatus = "CLOSED"
)

// MaxPriceHistory bounds the per-position price history window
const MaxPriceHistory = 50

// MaxDCACount caps averaging-down add-ons per position
const MaxDCACount = 2

// Position represents a paper position on one side of a binary market.
// Created by the decision engine; mutated only by the exit engine (price
// history, max return) and by DCA add-ons (weighted-average recompute).
type Position struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	MarketID        string         `db:"market_id" json:"market_id" validate:"required"`
	Side            Side           `db:"side" json:"side" validate:"required,oneof=YES NO"`
	Strategy        string         `db:"strategy" json:"strategy"`
	Amount          float64        `db:"amount" json:"amount" validate:"required,gt=0"`
	OriginalStake   float64        `db:"original_stake" json:"original_stake"`
	EntryPrice      float64        `db:"entry_price" json:"entry_price" validate:"required,gt=0,lt=1"`
	Shares          float64        `db:"shares" json:"shares"`
	Status          PositionStatus `db:"status" json:"status"`
	Confidence      float64        `db:"confidence" json:"confidence" validate:"gte=0,lte=1"`
	ConvictionScore int            `db:"conviction_score" json:"conviction_score"`
	Category        Category       `db:"category" json:"category"`
	StartTime       time.Time      `db:"start_time" json:"start_time"`
	PriceHistory    []float64      `db:"-" json:"price_history,omitempty"`
	MaxReturn       float64        `db:"max_return" json:"max_return"`
	DCACount        int            `db:"dca_count" json:"dca_count"`
	CloseReason     string         `db:"close_reason" json:"close_reason,omitempty"`
	ExitPrice       *float64       `db:"exit_price" json:"exit_price,omitempty"`
	PnL             *float64       `db:"pnl" json:"pnl,omitempty"`
	ClosedAt        *time.Time     `db:"closed_at" json:"closed_at,omitempty"`
}

// NewPosition creates an open position with shares derived from the stake
func NewPosition(marketID string, side Side, amount, entryPrice float64, now time.Time) *Position {
	return &Position{
		ID:            uuid.New(),
		MarketID:      marketID,
		Side:          side,
		Amount:        amount,
		OriginalStake: amount,
		EntryPrice:    entryPrice,
		Shares:        amount / entryPrice,
		Status:        PositionStatusOpen,
		StartTime:     now,
	}
}

// CurrentReturn computes the unrealized fractional return at a price
func (p *Position) CurrentReturn(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice
}

// RecordPrice appends a price observation to the bounded history and
// ratchets MaxReturn. Most recent price is last.
func (p *Position) RecordPrice(price float64) {
	p.PriceHistory = append(p.PriceHistory, price)
	if len(p.PriceHistory) > MaxPriceHistory {
		p.PriceHistory = p.PriceHistory[len(p.PriceHistory)-MaxPriceHistory:]
	}
	if r := p.CurrentReturn(price); r > p.MaxReturn {
		p.MaxReturn = r
	}
}

// LastPrice returns the most recent recorded price, or the entry price when
// no observation has been recorded yet
func (p *Position) LastPrice() float64 {
	if len(p.PriceHistory) == 0 {
		return p.EntryPrice
	}
	return p.PriceHistory[len(p.PriceHistory)-1]
}

// Age returns how long the position has been open
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.StartTime)
}

// ApplyDCA adds capital to a losing position at the current price, recomputing
// the weighted-average entry. Returns ErrDCALimitReached past the cap.
func (p *Position) ApplyDCA(addAmount, price float64) error {
	if p.DCACount >= MaxDCACount {
		return ErrDCALimitReached
	}
	if addAmount <= 0 || price <= 0 {
		return ErrInvalidStake
	}
	addShares := addAmount / price
	totalShares := p.Shares + addShares
	p.EntryPrice = (p.Amount + addAmount) / totalShares
	p.Amount += addAmount
	p.Shares = totalShares
	p.DCACount++
	return nil
}

// Close settles the position at an exit price and records the reason
func (p *Position) Close(exitPrice float64, reason string, now time.Time) {
	pnl := p.Shares*exitPrice - p.Amount
	p.Status = PositionStatusClosed
	p.CloseReason = reason
	p.ExitPrice = &exitPrice
	p.PnL = &pnl
	p.ClosedAt = &now
}

// IsWin reports whether a closed position was profitable
func (p *Position) IsWin() bool {
	return p.PnL != nil && *p.PnL > 0
}

// Payout returns the capital credited on close (shares at exit price)
func (p *Position) Payout() float64 {
	if p.ExitPrice == nil {
		return 0
	}
	return p.Shares * *p.ExitPrice
}
