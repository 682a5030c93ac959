package risk

import (
	"math"

	"github.com/rs/zerolog"

	"papertrade/internal/model"
)

// MarginLevel is the liquidation-ladder rung, most to least healthy.
type MarginLevel int32

const (
	LevelSafe MarginLevel = iota
	LevelWarn
	LevelCritical
	LevelLiquidate
	LevelBankrupt
)

func (ml MarginLevel) String() string {
	switch ml {
	case LevelSafe:
		return "Safe"
	case LevelWarn:
		return "Warn"
	case LevelCritical:
		return "Critical"
	case LevelLiquidate:
		return "Liquidate"
	case LevelBankrupt:
		return "Bankrupt"
	default:
		return "Unknown"
	}
}

// Impaired reports whether new risk-increasing orders are blocked.
func (ml MarginLevel) Impaired() bool {
	return ml >= LevelCritical
}

// ActionKind classifies an advisory liquidation action.
type ActionKind int32

const (
	ActionReduce ActionKind = iota
	ActionForceClose
)

func (ak ActionKind) String() string {
	if ak == ActionForceClose {
		return "force_close"
	}
	return "reduce"
}

// Action is an advisory instruction. The engine never executes these; the
// caller routes them as forced orders.
type Action struct {
	Kind       ActionKind
	Instrument model.InstrumentID
	Side       model.Side
	Quantity   float64
}

// Config holds the risk thresholds.
type Config struct {
	// Margin-ratio thresholds, descending: below WarnRatio the account is
	// Warn, below CriticalRatio Critical, below LiquidateRatio Liquidate.
	WarnRatio      float64 `mapstructure:"warn_ratio"`
	CriticalRatio  float64 `mapstructure:"critical_ratio"`
	LiquidateRatio float64 `mapstructure:"liquidate_ratio"`

	// MaxDrawdown is the hard drawdown fraction below peak equity.
	MaxDrawdown float64 `mapstructure:"max_drawdown"`

	// InstrumentNotionalCap bounds resulting per-instrument position notional.
	InstrumentNotionalCap float64 `mapstructure:"instrument_notional_cap"`

	// NetExposureCap bounds resulting absolute net portfolio exposure.
	NetExposureCap float64 `mapstructure:"net_exposure_cap"`

	// ReduceFraction sizes the per-position reduce action at Liquidate.
	ReduceFraction float64 `mapstructure:"reduce_fraction"`
}

// DefaultConfig returns conservative paper-trading thresholds.
func DefaultConfig() Config {
	return Config{
		WarnRatio:             2.0,
		CriticalRatio:         1.5,
		LiquidateRatio:        1.1,
		MaxDrawdown:           0.25,
		InstrumentNotionalCap: 250_000,
		NetExposureCap:        500_000,
		ReduceFraction:        0.5,
	}
}

// Engine classifies margin health and emits advisory liquidation actions.
// It is stateless except for the last observed level, kept only so level
// changes are logged once.
type Engine struct {
	cfg       Config
	log       zerolog.Logger
	lastLevel MarginLevel
}

func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	if cfg.ReduceFraction <= 0 || cfg.ReduceFraction > 1 {
		cfg.ReduceFraction = 0.5
	}
	return &Engine{cfg: cfg, log: log, lastLevel: LevelSafe}
}

// AssessMarginLevel classifies equity against maintenance margin.
func (e *Engine) AssessMarginLevel(equity, maintenanceMargin float64) MarginLevel {
	if equity <= 0 {
		return LevelBankrupt
	}
	if maintenanceMargin <= 0 {
		return LevelSafe
	}

	ratio := equity / maintenanceMargin
	switch {
	case ratio < e.cfg.LiquidateRatio:
		return LevelLiquidate
	case ratio < e.cfg.CriticalRatio:
		return LevelCritical
	case ratio < e.cfg.WarnRatio:
		return LevelWarn
	default:
		return LevelSafe
	}
}

// OrderCheck carries the pre-trade inputs for one prospective order.
type OrderCheck struct {
	Equity            float64
	PeakEquity        float64
	MaintenanceMargin float64

	// ResultingNotional is the per-instrument position notional after the
	// order would fill in full.
	ResultingNotional float64

	// ResultingExposure is the absolute net portfolio exposure after the
	// order would fill in full.
	ResultingExposure float64
}

// CheckOrder runs the pre-trade gates. It returns the name of the first
// failing gate, or "" when the order is allowed.
func (e *Engine) CheckOrder(chk OrderCheck) string {
	if chk.PeakEquity > 0 {
		drawdown := (chk.PeakEquity - chk.Equity) / chk.PeakEquity
		if drawdown > e.cfg.MaxDrawdown {
			return "max_drawdown"
		}
	}

	level := e.AssessMarginLevel(chk.Equity, chk.MaintenanceMargin)
	if level.Impaired() {
		return "margin_impaired"
	}

	if e.cfg.InstrumentNotionalCap > 0 && chk.ResultingNotional > e.cfg.InstrumentNotionalCap {
		return "instrument_notional_cap"
	}

	if e.cfg.NetExposureCap > 0 && math.Abs(chk.ResultingExposure) > e.cfg.NetExposureCap {
		return "net_exposure_cap"
	}

	return ""
}

// Evaluate runs the post-trade ladder and emits advisory actions: one reduce
// per open perpetual position at Liquidate, one full force-close at Bankrupt.
func (e *Engine) Evaluate(equity, maintenanceMargin float64, positions []*model.PaperPosition) []Action {
	level := e.AssessMarginLevel(equity, maintenanceMargin)
	if level != e.lastLevel {
		e.log.Warn().
			Str("from", e.lastLevel.String()).
			Str("to", level.String()).
			Float64("equity", equity).
			Float64("maintenance_margin", maintenanceMargin).
			Msg("margin level changed")
		e.lastLevel = level
	}

	if level != LevelLiquidate && level != LevelBankrupt {
		return nil
	}

	var actions []Action
	for _, pos := range positions {
		if pos.IsFlat() || !pos.Instrument.IsPerp() {
			continue
		}

		absQty := math.Abs(pos.Quantity)
		side := model.SideSell
		if pos.Quantity < 0 {
			side = model.SideBuy
		}

		if level == LevelBankrupt {
			actions = append(actions, Action{
				Kind:       ActionForceClose,
				Instrument: pos.Instrument,
				Side:       side,
				Quantity:   absQty,
			})
		} else {
			actions = append(actions, Action{
				Kind:       ActionReduce,
				Instrument: pos.Instrument,
				Side:       side,
				Quantity:   absQty * e.cfg.ReduceFraction,
			})
		}
	}

	return actions
}

// Level returns the last assessed margin level.
func (e *Engine) Level() MarginLevel { return e.lastLevel }
