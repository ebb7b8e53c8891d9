package models

import (
	"math"
	"time"
)

// Side represents the outcome side of a binary market position
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the complementary side
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// MarketSnapshot is a normalized, immutable view of a binary market at read time
type MarketSnapshot struct {
	ID        string    `json:"id" validate:"required"`
	Question  string    `json:"question"`
	YesPrice  float64   `json:"yes_price" validate:"gte=0,lte=1"`
	NoPrice   float64   `json:"no_price" validate:"gte=0,lte=1"`
	Volume24h float64   `json:"volume_24h" validate:"gte=0"`
	Liquidity float64   `json:"liquidity" validate:"gte=0"`
	Category  Category  `json:"category"`
	EndTime   time.Time `json:"end_time"`
}

// Price returns the price of the given side
func (m MarketSnapshot) Price(side Side) float64 {
	if side == SideYes {
		return m.YesPrice
	}
	return m.NoPrice
}

// PriceSum returns yesPrice + noPrice, used by the arbitrage rule
func (m MarketSnapshot) PriceSum() float64 {
	return m.YesPrice + m.NoPrice
}

// Validate rejects snapshots with missing or non-finite prices before they
// reach the decision engine
func (m MarketSnapshot) Validate() error {
	if m.ID == "" {
		return ErrInvalidSnapshot
	}
	for _, p := range []float64{m.YesPrice, m.NoPrice} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 || p >= 1 {
			return ErrInvalidSnapshot
		}
	}
	if m.Volume24h < 0 || m.Liquidity < 0 {
		return ErrInvalidSnapshot
	}
	return nil
}

// Resolved reports whether the market's end time has passed
func (m MarketSnapshot) Resolved(now time.Time) bool {
	return !m.EndTime.IsZero() && now.After(m.EndTime)
}
