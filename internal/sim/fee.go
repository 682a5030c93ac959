package sim

import (
	"fmt"

	"papertrade/internal/model"
)

// FeeModel computes the fee for a fill. Fees are never negative.
type FeeModel interface {
	Compute(notional float64, isMaker bool) float64
}

// MakerTakerFees reads maker/taker rates from the instrument spec.
type MakerTakerFees struct {
	spec *model.InstrumentSpec
}

func NewMakerTakerFees(spec *model.InstrumentSpec) *MakerTakerFees {
	return &MakerTakerFees{spec: spec}
}

func (f *MakerTakerFees) Compute(notional float64, isMaker bool) float64 {
	rate := f.spec.TakerFeeRate
	if isMaker {
		rate = f.spec.MakerFeeRate
	}
	fee := notional * rate
	if fee < 0 {
		return 0
	}
	return fee
}

// FeePair is one maker/taker rate entry in a tiered fee table.
type FeePair struct {
	Maker float64
	Taker float64
}

// TieredFees looks up rates from a venue/profile table, falling back to a
// fixed default pair when the lookup misses.
type TieredFees struct {
	table        map[string]FeePair
	profile      string
	defaultRates FeePair
}

func NewTieredFees(table map[string]FeePair, profile string, defaults FeePair) *TieredFees {
	return &TieredFees{table: table, profile: profile, defaultRates: defaults}
}

func (f *TieredFees) Compute(notional float64, isMaker bool) float64 {
	rates, ok := f.table[f.profile]
	if !ok {
		rates = f.defaultRates
	}
	rate := rates.Taker
	if isMaker {
		rate = rates.Maker
	}
	fee := notional * rate
	if fee < 0 {
		return 0
	}
	return fee
}

// FixedCommission charges a constant per fill, ignoring notional and role.
type FixedCommission struct {
	amount float64
}

func NewFixedCommission(amount float64) *FixedCommission {
	return &FixedCommission{amount: amount}
}

func (f *FixedCommission) Compute(float64, bool) float64 {
	if f.amount < 0 {
		return 0
	}
	return f.amount
}

// FeeConfig selects and parameterizes a fee model by name.
type FeeConfig struct {
	Model string `mapstructure:"model"` // makertaker | tiered | fixed

	Profile      string             `mapstructure:"profile"`
	Table        map[string]FeePair `mapstructure:"table"`
	DefaultMaker float64            `mapstructure:"default_maker"`
	DefaultTaker float64            `mapstructure:"default_taker"`

	Commission float64 `mapstructure:"commission"`
}

// NewFeeModel builds the configured fee model. Selection is by name only.
func NewFeeModel(cfg FeeConfig, spec *model.InstrumentSpec) (FeeModel, error) {
	switch cfg.Model {
	case "", "makertaker":
		return NewMakerTakerFees(spec), nil
	case "tiered":
		return NewTieredFees(cfg.Table, cfg.Profile, FeePair{
			Maker: cfg.DefaultMaker,
			Taker: cfg.DefaultTaker,
		}), nil
	case "fixed":
		return NewFixedCommission(cfg.Commission), nil
	default:
		return nil, fmt.Errorf("unknown fee model %q", cfg.Model)
	}
}
