package model

import "time"

// PositionSide is derived from the sign of the position quantity.
type PositionSide int32

const (
	PositionFlat PositionSide = iota
	PositionLong
	PositionShort
)

func (ps PositionSide) String() string {
	switch ps {
	case PositionLong:
		return "long"
	case PositionShort:
		return "short"
	default:
		return "flat"
	}
}

// PaperPosition tracks directional exposure for one instrument.
// Quantity is signed: positive long, negative short, zero flat.
type PaperPosition struct {
	Instrument    InstrumentID
	Quantity      float64
	AvgEntryPrice float64
	RealizedPnL   float64
	UnrealizedPnL float64
	FeesPaid      float64
	FundingPaid   float64
	OpenedAt      time.Time
}

// Side derives the direction from the signed quantity.
func (p *PaperPosition) Side() PositionSide {
	switch {
	case p.Quantity > 0:
		return PositionLong
	case p.Quantity < 0:
		return PositionShort
	default:
		return PositionFlat
	}
}

// IsFlat reports whether the position has no exposure.
func (p *PaperPosition) IsFlat() bool { return p.Quantity == 0 }

// NetPnL is realized + unrealized minus fees and funding.
func (p *PaperPosition) NetPnL() float64 {
	return p.RealizedPnL + p.UnrealizedPnL - p.FeesPaid - p.FundingPaid
}

// MarkToMarket refreshes unrealized PnL against the given mark price.
func (p *PaperPosition) MarkToMarket(markPrice float64) {
	if p.IsFlat() || markPrice <= 0 {
		p.UnrealizedPnL = 0
		return
	}
	p.UnrealizedPnL = (markPrice - p.AvgEntryPrice) * p.Quantity
}

// Notional returns |quantity| * price.
func (p *PaperPosition) Notional(price float64) float64 {
	q := p.Quantity
	if q < 0 {
		q = -q
	}
	return q * price
}
