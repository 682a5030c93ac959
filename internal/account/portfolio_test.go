package account_test

import (
	"testing"
	"time"

	"papertrade/internal/account"
	"papertrade/internal/model"
)

func perpSpec() *model.InstrumentSpec {
	return &model.InstrumentSpec{
		ID: model.InstrumentID{
			Venue: "paper", Base: "BTC", Quote: "USDT", Type: model.InstrumentPerp,
		},
		MarginInitRate:  1.0,
		MarginMaintRate: 0.005,
		MaxLeverage:     10,
	}
}

func spotSpec() *model.InstrumentSpec {
	return &model.InstrumentSpec{
		ID: model.InstrumentID{
			Venue: "paper", Base: "ETH", Quote: "USDT", Type: model.InstrumentSpot,
		},
	}
}

func TestMarginRequirement(t *testing.T) {
	spec := perpSpec()
	// 100 * 2 / 10 * 1.0 = 20
	if got := account.MarginRequirement(spec, 100, 2); !almost(got, 20) {
		t.Errorf("margin = %f, want 20", got)
	}
}

func TestPortfolio_SettleSpotBuy(t *testing.T) {
	p := account.NewPortfolio(map[string]float64{"USDT": 1000})

	tr, realized, err := p.SettleFill(spotSpec(), model.SideBuy, 2.0, 100.0, 0.2, fillTime)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if tr != account.TransitionNone || realized != 0 {
		t.Errorf("spot settle returned transition=%s realized=%f", tr, realized)
	}
	// 1000 - 200 notional - 0.2 fee
	if !almost(p.Ledger().Total("USDT"), 799.8) {
		t.Errorf("USDT = %f, want 799.8", p.Ledger().Total("USDT"))
	}
	if !almost(p.Ledger().Total("ETH"), 2.0) {
		t.Errorf("ETH = %f, want 2.0", p.Ledger().Total("ETH"))
	}
}

func TestPortfolio_SettleSpotSell(t *testing.T) {
	p := account.NewPortfolio(map[string]float64{"ETH": 3, "USDT": 0})

	if _, _, err := p.SettleFill(spotSpec(), model.SideSell, 1.0, 100.0, 0.1, fillTime); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !almost(p.Ledger().Total("USDT"), 99.9) {
		t.Errorf("USDT = %f, want 99.9", p.Ledger().Total("USDT"))
	}
	if !almost(p.Ledger().Total("ETH"), 2.0) {
		t.Errorf("ETH = %f, want 2.0", p.Ledger().Total("ETH"))
	}
}

func TestPortfolio_SettlePerpRealizedCredits(t *testing.T) {
	p := account.NewPortfolio(map[string]float64{"USDT": 1000})
	spec := perpSpec()

	if _, _, err := p.SettleFill(spec, model.SideBuy, 1.0, 100.0, 0.05, fillTime); err != nil {
		t.Fatalf("open: %v", err)
	}
	tr, realized, err := p.SettleFill(spec, model.SideSell, 1.0, 110.0, 0.05, fillTime)
	if err != nil {
		t.Fatalf("close: %v", err)
	}

	if tr != account.TransitionClose {
		t.Errorf("transition = %s, want Close", tr)
	}
	if !almost(realized, 10.0) {
		t.Errorf("realized = %f, want 10.0", realized)
	}
	// 1000 + 10 realized - 0.1 total fees
	if !almost(p.Ledger().Total("USDT"), 1009.9) {
		t.Errorf("USDT = %f, want 1009.9", p.Ledger().Total("USDT"))
	}

	pos := p.Position(spec.ID)
	if !almost(pos.FeesPaid, 0.1) {
		t.Errorf("fees paid = %f, want 0.1", pos.FeesPaid)
	}
}

func TestPortfolio_SettleInvalidFill(t *testing.T) {
	p := account.NewPortfolio(nil)
	if _, _, err := p.SettleFill(perpSpec(), model.SideBuy, 0, 100, 0, fillTime); err == nil {
		t.Error("expected error for zero quantity")
	}
	if _, _, err := p.SettleFill(perpSpec(), model.SideBuy, 1, -5, 0, fillTime); err == nil {
		t.Error("expected error for negative price")
	}
}

func TestPortfolio_MarkToMarketAndEquity(t *testing.T) {
	p := account.NewPortfolio(map[string]float64{"USDT": 1000})
	spec := perpSpec()

	if _, _, err := p.SettleFill(spec, model.SideBuy, 2.0, 100.0, 0, fillTime); err != nil {
		t.Fatalf("open: %v", err)
	}
	p.MarkToMarket(map[string]float64{spec.ID.Key(): 105.0})

	pos := p.Position(spec.ID)
	if !almost(pos.UnrealizedPnL, 10.0) {
		t.Errorf("unrealized = %f, want 10.0", pos.UnrealizedPnL)
	}
	if !almost(p.Equity("USDT"), 1010.0) {
		t.Errorf("equity = %f, want 1010.0", p.Equity("USDT"))
	}
}

func TestPortfolio_EquitySumsInSortedKeyOrder(t *testing.T) {
	p := account.NewPortfolio(nil)

	// Unrealized values chosen so the float sum depends on addition order;
	// sorted-key order (AAA, BBB, CCC) yields exactly zero.
	unrealized := map[string]float64{"CCC": -1e16, "BBB": 1, "AAA": 1e16}
	for base, u := range unrealized {
		id := model.InstrumentID{
			Venue: "paper", Base: base, Quote: "USDT", Type: model.InstrumentPerp,
		}
		p.Position(id).UnrealizedPnL = u
	}

	if got := p.Equity("USDT"); got != 0 {
		t.Errorf("equity = %g, want exactly 0 from sorted-key summation", got)
	}
}

func TestPortfolio_ApplyFunding(t *testing.T) {
	p := account.NewPortfolio(map[string]float64{"USDT": 1000})
	spec := perpSpec()
	if _, _, err := p.SettleFill(spec, model.SideBuy, 1.0, 100.0, 0, fillTime); err != nil {
		t.Fatalf("open: %v", err)
	}

	evt := p.ApplyFunding(spec.ID, 0.01, fillTime)

	if !almost(evt.FundingCharge, 0.01) {
		t.Errorf("event charge = %f, want 0.01", evt.FundingCharge)
	}
	if !almost(p.Ledger().Total("USDT"), 999.99) {
		t.Errorf("USDT = %f, want 999.99", p.Ledger().Total("USDT"))
	}
	if !almost(p.Position(spec.ID).FundingPaid, 0.01) {
		t.Errorf("funding paid = %f, want 0.01", p.Position(spec.ID).FundingPaid)
	}
}

func TestPortfolio_PeakEquityWatermark(t *testing.T) {
	p := account.NewPortfolio(nil)
	p.UpdatePeakEquity(100)
	p.UpdatePeakEquity(90)
	if !almost(p.PeakEquity(), 100) {
		t.Errorf("peak = %f, want 100", p.PeakEquity())
	}
	p.UpdatePeakEquity(120)
	if !almost(p.PeakEquity(), 120) {
		t.Errorf("peak = %f, want 120", p.PeakEquity())
	}
}

func TestPortfolio_SnapshotRoundTrip(t *testing.T) {
	p := account.NewPortfolio(map[string]float64{"USDT": 1000})
	spec := perpSpec()
	if _, _, err := p.SettleFill(spec, model.SideBuy, 1.5, 100.0, 0.1, fillTime); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := p.Ledger().Reserve("USDT", 50); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	p.MarkToMarket(map[string]float64{spec.ID.Key(): 102.0})
	p.UpdatePeakEquity(p.Equity("USDT"))

	snap := p.TakeSnapshot(time.Now())

	restored := account.NewPortfolio(nil)
	restored.RestoreFromSnapshot(snap)

	if !almost(restored.Ledger().Total("USDT"), p.Ledger().Total("USDT")) {
		t.Errorf("total mismatch: %f vs %f",
			restored.Ledger().Total("USDT"), p.Ledger().Total("USDT"))
	}
	if !almost(restored.Ledger().Reserved("USDT"), 50) {
		t.Errorf("reserved = %f, want 50", restored.Ledger().Reserved("USDT"))
	}

	pos := restored.Position(spec.ID)
	orig := p.Position(spec.ID)
	if !almost(pos.Quantity, orig.Quantity) ||
		!almost(pos.AvgEntryPrice, orig.AvgEntryPrice) ||
		!almost(pos.UnrealizedPnL, orig.UnrealizedPnL) ||
		!almost(pos.FeesPaid, orig.FeesPaid) {
		t.Errorf("position mismatch after restore:\n got %+v\nwant %+v", pos, orig)
	}
	if !almost(restored.PeakEquity(), p.PeakEquity()) {
		t.Errorf("peak equity mismatch: %f vs %f", restored.PeakEquity(), p.PeakEquity())
	}
}
