package model

import "time"

// PriceLevel is one (price, size) rung of an order book side.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBookSnapshot is an immutable view of the book at one instant.
// Bids are ordered descending by price, asks ascending.
type OrderBookSnapshot struct {
	Instrument InstrumentID
	Bids       []PriceLevel
	Asks       []PriceLevel
	CapturedAt time.Time
}

// BestBid returns the highest bid, or false when the bid side is empty.
func (b *OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if b == nil || len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, or false when the ask side is empty.
func (b *OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if b == nil || len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// MidPrice returns (bestBid+bestAsk)/2, or false when either side is empty.
func (b *OrderBookSnapshot) MidPrice() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// SpreadPct returns the bid/ask spread as a fraction of the mid price.
func (b *OrderBookSnapshot) SpreadPct() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	mid := (bid.Price + ask.Price) / 2
	if mid <= 0 {
		return 0, false
	}
	return (ask.Price - bid.Price) / mid, true
}

// DepthWithin sums visible size on the opposite side an aggressing order of
// the given side would consume, across all snapshot levels.
func (b *OrderBookSnapshot) DepthWithin(side Side) float64 {
	var levels []PriceLevel
	if side == SideBuy {
		levels = b.Asks
	} else {
		levels = b.Bids
	}
	var total float64
	for _, lvl := range levels {
		total += lvl.Size
	}
	return total
}
