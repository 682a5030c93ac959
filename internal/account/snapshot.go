package account

import (
	"time"

	"papertrade/internal/model"
)

// Snapshot is the serializable portfolio state for persistence round-trips.
type Snapshot struct {
	Balances   map[string]BalanceSnap `json:"balances"`
	Positions  []PositionSnap         `json:"positions"`
	PeakEquity float64                `json:"peak_equity"`
	EventSeq   int64                  `json:"event_seq"`
	CreatedAt  time.Time              `json:"created_at"`
}

// BalanceSnap is one asset's ledger entry.
type BalanceSnap struct {
	Total    float64 `json:"total"`
	Reserved float64 `json:"reserved"`
}

// PositionSnap is a serializable position.
type PositionSnap struct {
	Venue         string  `json:"venue"`
	Base          string  `json:"base"`
	Quote         string  `json:"quote"`
	Type          int32   `json:"type"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	FeesPaid      float64 `json:"fees_paid"`
	FundingPaid   float64 `json:"funding_paid"`
	OpenedAt      int64   `json:"opened_at"`
}

// TakeSnapshot serializes balances, reserves, positions, and the peak-equity
// watermark.
func (p *Portfolio) TakeSnapshot(now time.Time) *Snapshot {
	snap := &Snapshot{
		Balances:   make(map[string]BalanceSnap, len(p.ledger.balances)),
		PeakEquity: p.peakEquity,
		CreatedAt:  now,
	}

	for _, asset := range p.ledger.Assets() {
		snap.Balances[asset] = BalanceSnap{
			Total:    p.ledger.Total(asset),
			Reserved: p.ledger.Reserved(asset),
		}
	}

	for _, pos := range p.Positions() {
		snap.Positions = append(snap.Positions, PositionSnap{
			Venue:         pos.Instrument.Venue,
			Base:          pos.Instrument.Base,
			Quote:         pos.Instrument.Quote,
			Type:          int32(pos.Instrument.Type),
			Quantity:      pos.Quantity,
			AvgEntryPrice: pos.AvgEntryPrice,
			RealizedPnL:   pos.RealizedPnL,
			UnrealizedPnL: pos.UnrealizedPnL,
			FeesPaid:      pos.FeesPaid,
			FundingPaid:   pos.FundingPaid,
			OpenedAt:      pos.OpenedAt.UnixNano(),
		})
	}

	return snap
}

// RestoreFromSnapshot replaces all ledger and position state with the
// snapshot contents.
func (p *Portfolio) RestoreFromSnapshot(snap *Snapshot) {
	p.ledger = NewLedger()
	p.positions = make(map[string]*model.PaperPosition)
	p.peakEquity = snap.PeakEquity

	for asset, b := range snap.Balances {
		p.ledger.Credit(asset, b.Total)
		bal := p.ledger.get(asset)
		bal.reserved = b.Reserved
	}

	for _, ps := range snap.Positions {
		id := model.InstrumentID{
			Venue: ps.Venue,
			Base:  ps.Base,
			Quote: ps.Quote,
			Type:  model.InstrumentType(ps.Type),
		}
		p.positions[id.Key()] = &model.PaperPosition{
			Instrument:    id,
			Quantity:      ps.Quantity,
			AvgEntryPrice: ps.AvgEntryPrice,
			RealizedPnL:   ps.RealizedPnL,
			UnrealizedPnL: ps.UnrealizedPnL,
			FeesPaid:      ps.FeesPaid,
			FundingPaid:   ps.FundingPaid,
			OpenedAt:      time.Unix(0, ps.OpenedAt),
		}
	}
}
