package models

import "time"

// BookLevel is one price level in an order book
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook holds the bid/ask ladder for one outcome token.
// Bids are ordered best (highest) first, asks best (lowest) first.
type OrderBook struct {
	MarketID string      `json:"market_id"`
	Side     Side        `json:"side"`
	Bids     []BookLevel `json:"bids"`
	Asks     []BookLevel `json:"asks"`
}

// BestBid returns the highest bid price, 0 on an empty book
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk returns the lowest ask price, 0 on an empty book
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Spread returns ask minus bid, 0 when either side is empty
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// AskNotionalWithin walks the ask ladder from the best price outward and sums
// notional (size x price) within a fractional slippage band of the best ask.
// This is the depth available to a taker buying within the band.
func (ob OrderBook) AskNotionalWithin(slippage float64) float64 {
	best := ob.BestAsk()
	if best == 0 {
		return 0
	}
	limit := best * (1 + slippage)
	var total float64
	for _, lvl := range ob.Asks {
		if lvl.Price > limit {
			break
		}
		total += lvl.Size * lvl.Price
	}
	return total
}

// BidNotionalWithin sums bid notional within a fractional slippage band of
// the best bid, the depth available to a taker selling within the band.
func (ob OrderBook) BidNotionalWithin(slippage float64) float64 {
	best := ob.BestBid()
	if best == 0 {
		return 0
	}
	limit := best * (1 - slippage)
	var total float64
	for _, lvl := range ob.Bids {
		if lvl.Price < limit {
			break
		}
		total += lvl.Size * lvl.Price
	}
	return total
}

// TradePrint is one executed trade observation used for intraday trend checks
type TradePrint struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
