package risk_test

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"papertrade/internal/model"
	"papertrade/internal/risk"
)

func newEngine() *risk.Engine {
	return risk.NewEngine(risk.DefaultConfig(), zerolog.Nop())
}

func perpPosition(qty float64) *model.PaperPosition {
	return &model.PaperPosition{
		Instrument: model.InstrumentID{
			Venue: "paper", Base: "BTC", Quote: "USDT", Type: model.InstrumentPerp,
		},
		Quantity:      qty,
		AvgEntryPrice: 100,
	}
}

// ============================================================================
// Test: margin ladder
// ============================================================================

func TestAssessMarginLevel_Ladder(t *testing.T) {
	e := newEngine()
	cases := []struct {
		name   string
		equity float64
		maint  float64
		want   risk.MarginLevel
	}{
		{"no margin in use", 1000, 0, risk.LevelSafe},
		{"comfortable", 300, 100, risk.LevelSafe},
		{"warn band", 180, 100, risk.LevelWarn},
		{"critical band", 120, 100, risk.LevelCritical},
		{"liquidate band", 105, 100, risk.LevelLiquidate},
		{"bankrupt", -5, 100, risk.LevelBankrupt},
		{"zero equity", 0, 100, risk.LevelBankrupt},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.AssessMarginLevel(tc.equity, tc.maint); got != tc.want {
				t.Errorf("level = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestMarginLevel_Impaired(t *testing.T) {
	if risk.LevelSafe.Impaired() || risk.LevelWarn.Impaired() {
		t.Error("Safe/Warn must not be impaired")
	}
	for _, lvl := range []risk.MarginLevel{
		risk.LevelCritical, risk.LevelLiquidate, risk.LevelBankrupt,
	} {
		if !lvl.Impaired() {
			t.Errorf("%s should be impaired", lvl)
		}
	}
}

// ============================================================================
// Test: pre-trade gates
// ============================================================================

func TestCheckOrder_Passes(t *testing.T) {
	e := newEngine()
	reason := e.CheckOrder(risk.OrderCheck{
		Equity: 10_000, PeakEquity: 10_000, MaintenanceMargin: 100,
		ResultingNotional: 1_000, ResultingExposure: 1_000,
	})
	if reason != "" {
		t.Errorf("healthy order rejected: %q", reason)
	}
}

func TestCheckOrder_MaxDrawdown(t *testing.T) {
	e := newEngine()
	reason := e.CheckOrder(risk.OrderCheck{
		Equity: 70, PeakEquity: 100,
	})
	if reason != "max_drawdown" {
		t.Errorf("reason = %q, want max_drawdown", reason)
	}
}

func TestCheckOrder_MarginImpaired(t *testing.T) {
	e := newEngine()
	reason := e.CheckOrder(risk.OrderCheck{
		Equity: 120, PeakEquity: 120, MaintenanceMargin: 100,
	})
	if reason != "margin_impaired" {
		t.Errorf("reason = %q, want margin_impaired", reason)
	}
}

func TestCheckOrder_NotionalCap(t *testing.T) {
	e := newEngine()
	reason := e.CheckOrder(risk.OrderCheck{
		Equity: 1_000_000, PeakEquity: 1_000_000,
		ResultingNotional: 300_000,
	})
	if reason != "instrument_notional_cap" {
		t.Errorf("reason = %q, want instrument_notional_cap", reason)
	}
}

func TestCheckOrder_ExposureCap(t *testing.T) {
	e := newEngine()
	reason := e.CheckOrder(risk.OrderCheck{
		Equity: 1_000_000, PeakEquity: 1_000_000,
		ResultingNotional: 100_000, ResultingExposure: -600_000,
	})
	if reason != "net_exposure_cap" {
		t.Errorf("reason = %q, want net_exposure_cap", reason)
	}
}

// ============================================================================
// Test: advisory actions
// ============================================================================

// Equity 105 against maintenance margin 100 sits below the 1.1 liquidate
// threshold: one reduce action at half the open quantity.
func TestEvaluate_LiquidateEmitsReduce(t *testing.T) {
	e := newEngine()
	actions := e.Evaluate(105, 100, []*model.PaperPosition{perpPosition(2.0)})

	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	a := actions[0]
	if a.Kind != risk.ActionReduce {
		t.Errorf("kind = %s, want reduce", a.Kind)
	}
	if a.Side != model.SideSell {
		t.Errorf("side = %s, want sell to reduce a long", a.Side)
	}
	if math.Abs(a.Quantity-1.0) > 1e-9 {
		t.Errorf("quantity = %f, want 1.0 (50%% of 2.0)", a.Quantity)
	}
}

func TestEvaluate_BankruptEmitsForceClose(t *testing.T) {
	e := newEngine()
	actions := e.Evaluate(-10, 100, []*model.PaperPosition{perpPosition(-3.0)})

	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	a := actions[0]
	if a.Kind != risk.ActionForceClose {
		t.Errorf("kind = %s, want force_close", a.Kind)
	}
	if a.Side != model.SideBuy {
		t.Errorf("side = %s, want buy to close a short", a.Side)
	}
	if math.Abs(a.Quantity-3.0) > 1e-9 {
		t.Errorf("quantity = %f, want full 3.0", a.Quantity)
	}
}

func TestEvaluate_SkipsFlatAndSpot(t *testing.T) {
	e := newEngine()
	spot := &model.PaperPosition{
		Instrument: model.InstrumentID{
			Venue: "paper", Base: "ETH", Quote: "USDT", Type: model.InstrumentSpot,
		},
		Quantity: 5,
	}
	actions := e.Evaluate(-10, 100, []*model.PaperPosition{perpPosition(0), spot})
	if len(actions) != 0 {
		t.Errorf("got %d actions for flat/spot positions, want 0", len(actions))
	}
}

func TestEvaluate_HealthyNoActions(t *testing.T) {
	e := newEngine()
	if actions := e.Evaluate(1000, 100, []*model.PaperPosition{perpPosition(1)}); len(actions) != 0 {
		t.Errorf("healthy account produced %d actions", len(actions))
	}
}
