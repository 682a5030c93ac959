package feed

import (
	"papertrade/internal/model"
)

// Feed supplies market data for one instrument. The desk pulls the latest
// book once per tick; implementations never push.
type Feed interface {
	// Book returns the current order book snapshot, or nil when no data has
	// arrived yet.
	Book() *model.OrderBookSnapshot

	// FundingRate returns the current funding rate for perpetuals. Spot
	// feeds return 0.
	FundingRate() float64
}

// StaticFeed holds the book and funding rate set by the host. It backs live
// paper trading, where an external market-data connection keeps it current.
type StaticFeed struct {
	book *model.OrderBookSnapshot
	rate float64
}

func NewStaticFeed() *StaticFeed {
	return &StaticFeed{}
}

func (f *StaticFeed) SetBook(book *model.OrderBookSnapshot) { f.book = book }
func (f *StaticFeed) SetFundingRate(rate float64)           { f.rate = rate }

func (f *StaticFeed) Book() *model.OrderBookSnapshot { return f.book }
func (f *StaticFeed) FundingRate() float64           { return f.rate }
