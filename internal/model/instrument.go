package model

import (
	"fmt"
	"math"
	"strings"
)

// InstrumentType distinguishes spot pairs from perpetual swaps.
type InstrumentType int32

const (
	InstrumentSpot InstrumentType = iota
	InstrumentPerp
)

func (it InstrumentType) String() string {
	switch it {
	case InstrumentSpot:
		return "spot"
	case InstrumentPerp:
		return "perp"
	default:
		return "unknown"
	}
}

// InstrumentID identifies a tradable instrument: venue + pair + type.
// Immutable; the zero value is not a valid instrument.
type InstrumentID struct {
	Venue string
	Base  string
	Quote string
	Type  InstrumentType
}

// Key returns the canonical map key, e.g. "binance:BTC/USDT:perp".
func (id InstrumentID) Key() string {
	return fmt.Sprintf("%s:%s/%s:%s",
		strings.ToLower(id.Venue), id.Base, id.Quote, id.Type)
}

// BaseAsset returns the base asset name.
func (id InstrumentID) BaseAsset() string { return id.Base }

// QuoteAsset returns the quote asset name.
func (id InstrumentID) QuoteAsset() string { return id.Quote }

// IsPerp reports whether the instrument is a perpetual swap.
func (id InstrumentID) IsPerp() bool { return id.Type == InstrumentPerp }

// InstrumentSpec carries the trading rules for one instrument.
type InstrumentSpec struct {
	ID InstrumentID

	PriceIncrement float64
	SizeIncrement  float64
	PricePrecision int
	SizePrecision  int

	MinQuantity float64
	MaxQuantity float64
	MinNotional float64

	MakerFeeRate float64
	TakerFeeRate float64

	MarginInitRate  float64
	MarginMaintRate float64
	MaxLeverage     float64

	FundingIntervalSec int64
}

// QuantizePrice snaps a price onto the instrument's price grid, rounding
// toward the safer side for the order direction: buys round down, sells
// round up.
func (s *InstrumentSpec) QuantizePrice(price float64, side Side) float64 {
	if s.PriceIncrement <= 0 {
		return price
	}
	steps := price / s.PriceIncrement
	if side == SideBuy {
		steps = math.Floor(steps + 1e-9)
	} else {
		steps = math.Ceil(steps - 1e-9)
	}
	return roundTo(steps*s.PriceIncrement, s.PricePrecision)
}

// QuantizeSize snaps a size down onto the size grid, then clamps up to the
// minimum quantity so a dust remainder is still submittable.
func (s *InstrumentSpec) QuantizeSize(size float64) float64 {
	if s.SizeIncrement > 0 {
		steps := math.Floor(size/s.SizeIncrement + 1e-9)
		size = roundTo(steps*s.SizeIncrement, s.SizePrecision)
	}
	if size < s.MinQuantity {
		size = s.MinQuantity
	}
	return size
}

// ValidateOrder checks quantity and notional bounds. It returns a specific
// rejection reason, or "" when the order is acceptable.
func (s *InstrumentSpec) ValidateOrder(price, quantity float64) string {
	if quantity <= 0 {
		return "quantity_not_positive"
	}
	if quantity < s.MinQuantity {
		return "quantity_below_min"
	}
	if s.MaxQuantity > 0 && quantity > s.MaxQuantity {
		return "quantity_above_max"
	}
	if price <= 0 {
		return "price_not_positive"
	}
	if s.MinNotional > 0 && price*quantity < s.MinNotional {
		return "notional_below_min"
	}
	return ""
}

func roundTo(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}
