package account

import (
	"fmt"
	"sort"
	"time"

	"papertrade/internal/event"
	"papertrade/internal/model"
)

// MarginRequirement is the quote-side hold for a perpetual fill:
// notional / leverage, scaled by the initial-margin rate.
func MarginRequirement(spec *model.InstrumentSpec, price, quantity float64) float64 {
	notional := price * quantity
	leverage := spec.MaxLeverage
	if leverage <= 0 {
		leverage = 1
	}
	return notional / leverage * spec.MarginInitRate
}

// Portfolio owns the ledger and the per-instrument position map.
// Positions are created flat on first reference and never deleted; a closed
// position stays in the map at zero.
type Portfolio struct {
	ledger     *Ledger
	positions  map[string]*model.PaperPosition
	peakEquity float64
}

func NewPortfolio(initialBalances map[string]float64) *Portfolio {
	p := &Portfolio{
		ledger:    NewLedger(),
		positions: make(map[string]*model.PaperPosition),
	}
	for asset, amount := range initialBalances {
		p.ledger.Credit(asset, amount)
	}
	return p
}

// Ledger exposes the balance ledger.
func (p *Portfolio) Ledger() *Ledger { return p.ledger }

// Position returns the position for an instrument, creating a flat one on
// first reference.
func (p *Portfolio) Position(id model.InstrumentID) *model.PaperPosition {
	key := id.Key()
	pos := p.positions[key]
	if pos == nil {
		pos = &model.PaperPosition{Instrument: id}
		p.positions[key] = pos
	}
	return pos
}

// Positions returns all positions sorted by instrument key for deterministic
// iteration.
func (p *Portfolio) Positions() []*model.PaperPosition {
	keys := make([]string, 0, len(p.positions))
	for k := range p.positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]*model.PaperPosition, 0, len(keys))
	for _, k := range keys {
		result = append(result, p.positions[k])
	}
	return result
}

// SettleFill applies one fill to balances and (for perpetuals) the position.
//
// Spot fills move the full notional: quote debited/credited, base
// credited/debited, fee debited from quote. Perpetual fills run through the
// accounting function; only the fee and realized PnL touch the quote
// balance, margin consumption is handled by the caller's reserve release.
func (p *Portfolio) SettleFill(
	spec *model.InstrumentSpec,
	side model.Side,
	quantity, price, fee float64,
	now time.Time,
) (Transition, float64, error) {
	if quantity <= 0 || price <= 0 {
		return TransitionNone, 0, fmt.Errorf("invalid fill: qty=%f price=%f", quantity, price)
	}

	id := spec.ID
	quote := id.QuoteAsset()
	notional := price * quantity

	if !id.IsPerp() {
		if side == model.SideBuy {
			p.ledger.Debit(quote, notional)
			p.ledger.Credit(id.BaseAsset(), quantity)
		} else {
			p.ledger.Credit(quote, notional)
			p.ledger.Debit(id.BaseAsset(), quantity)
		}
		p.ledger.Debit(quote, fee)
		return TransitionNone, 0, nil
	}

	pos := p.Position(id)
	next, transition, realized, _, _ := ApplyFill(*pos, side, quantity, price, now)
	next.FeesPaid = pos.FeesPaid + fee
	*pos = next

	p.ledger.Debit(quote, fee)
	if realized >= 0 {
		p.ledger.Credit(quote, realized)
	} else {
		p.ledger.Debit(quote, -realized)
	}

	return transition, realized, nil
}

// MarkToMarket refreshes unrealized PnL from the supplied mark prices,
// keyed by instrument key. Instruments without a mark are left untouched.
func (p *Portfolio) MarkToMarket(marks map[string]float64) {
	for key, pos := range p.positions {
		if mark, ok := marks[key]; ok {
			pos.MarkToMarket(mark)
		}
	}
}

// ApplyFunding debits the quote balance by charge, accumulates it on the
// position's funding total, and returns a FundingApplied event with the rate
// left for the caller to fill in.
func (p *Portfolio) ApplyFunding(id model.InstrumentID, charge float64, now time.Time) event.Event {
	pos := p.Position(id)
	pos.FundingPaid += charge
	p.ledger.Debit(id.QuoteAsset(), charge)

	return event.Event{
		Type:          event.TypeFundingApplied,
		Instrument:    id,
		Timestamp:     now,
		FundingCharge: charge,
	}
}

// Equity values the portfolio in the given quote asset: quote total plus
// unrealized PnL of every position quoted in that asset. Positions are
// summed in sorted key order so the float result is identical across runs.
func (p *Portfolio) Equity(quoteAsset string) float64 {
	eq := p.ledger.Total(quoteAsset)
	for _, pos := range p.Positions() {
		if pos.Instrument.QuoteAsset() == quoteAsset {
			eq += pos.UnrealizedPnL
		}
	}
	return eq
}

// UpdatePeakEquity raises the peak-equity watermark when exceeded and
// returns the current peak.
func (p *Portfolio) UpdatePeakEquity(equity float64) float64 {
	if equity > p.peakEquity {
		p.peakEquity = equity
	}
	return p.peakEquity
}

// PeakEquity returns the highest equity observed so far.
func (p *Portfolio) PeakEquity() float64 { return p.peakEquity }
