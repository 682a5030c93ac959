package account

import (
	"fmt"
	"sort"
)

// assetBalance is the per-asset pair of totals maintained by the ledger.
type assetBalance struct {
	total    float64
	reserved float64
}

// Ledger maintains per-asset total and reserved amounts.
//
// Reserve/Release move the reserved amount without changing the total;
// available = max(0, total - reserved). Release clamps reserved at zero
// rather than going negative: the ledger degrades safely instead of
// crashing, and correctness is asserted externally by the test suite.
type Ledger struct {
	balances map[string]*assetBalance
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]*assetBalance)}
}

func (l *Ledger) get(asset string) *assetBalance {
	b := l.balances[asset]
	if b == nil {
		b = &assetBalance{}
		l.balances[asset] = b
	}
	return b
}

// Credit increases the total balance of an asset.
func (l *Ledger) Credit(asset string, amount float64) {
	l.get(asset).total += amount
}

// Debit decreases the total balance of an asset.
func (l *Ledger) Debit(asset string, amount float64) {
	l.get(asset).total -= amount
}

// Total returns the total balance for an asset.
func (l *Ledger) Total(asset string) float64 {
	if b := l.balances[asset]; b != nil {
		return b.total
	}
	return 0
}

// Reserved returns the reserved amount for an asset.
func (l *Ledger) Reserved(asset string) float64 {
	if b := l.balances[asset]; b != nil {
		return b.reserved
	}
	return 0
}

// Available returns max(0, total - reserved).
func (l *Ledger) Available(asset string) float64 {
	b := l.balances[asset]
	if b == nil {
		return 0
	}
	avail := b.total - b.reserved
	if avail < 0 {
		return 0
	}
	return avail
}

// CanReserve reports whether amount fits in the available balance.
func (l *Ledger) CanReserve(asset string, amount float64) bool {
	return amount <= l.Available(asset)+DustEpsilon
}

// Reserve places a hold against the available balance.
func (l *Ledger) Reserve(asset string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("reserve amount negative: %f", amount)
	}
	if !l.CanReserve(asset, amount) {
		return fmt.Errorf("insufficient available %s: have=%f, need=%f",
			asset, l.Available(asset), amount)
	}
	l.get(asset).reserved += amount
	return nil
}

// Release removes a hold. Over-release clamps reserved at zero, and a
// sub-dust residue left by float arithmetic is swept to zero so repeated
// reserve/release cycles cannot accumulate a phantom hold.
func (l *Ledger) Release(asset string, amount float64) {
	if amount <= 0 {
		return
	}
	b := l.get(asset)
	b.reserved -= amount
	if b.reserved < DustEpsilon {
		b.reserved = 0
	}
}

// Assets returns all asset names in sorted order for deterministic iteration.
func (l *Ledger) Assets() []string {
	assets := make([]string, 0, len(l.balances))
	for a := range l.balances {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return assets
}
