package sim

import (
	"fmt"
	"math/rand"
	"time"

	"papertrade/internal/model"
)

// FillDecision is one tick's verdict for one order. Zero quantity means no
// fill this tick.
type FillDecision struct {
	Quantity   float64
	Price      float64
	IsMaker    bool
	QueueDelay time.Duration
}

// FillModel decides whether and how much of an order fills against a book
// snapshot this tick. Implementations hold a single seeded RNG so identical
// inputs reproduce identical fill sequences.
type FillModel interface {
	Evaluate(order *model.PaperOrder, book *model.OrderBookSnapshot, now time.Time) FillDecision
}

// FillConfig parameterizes the fill models. All probabilities are in [0,1],
// slippage figures in basis points.
type FillConfig struct {
	Model string `mapstructure:"model"` // queue | top | latency

	ProbFillOnTouch  float64 `mapstructure:"prob_fill_on_touch"`
	DepthFractionMin float64 `mapstructure:"depth_fraction_min"`
	DepthFractionMax float64 `mapstructure:"depth_fraction_max"`
	PartialRatioMin  float64 `mapstructure:"partial_ratio_min"`
	PartialRatioMax  float64 `mapstructure:"partial_ratio_max"`

	SlippageBps      float64 `mapstructure:"slippage_bps"`
	AdverseBps       float64 `mapstructure:"adverse_bps"`
	ExtraSlipProb    float64 `mapstructure:"extra_slip_prob"`
	MaxParticipation float64 `mapstructure:"max_participation"`

	Seed int64 `mapstructure:"seed"`
}

// DefaultFillConfig returns the queue model defaults.
func DefaultFillConfig() FillConfig {
	return FillConfig{
		Model:            "queue",
		ProbFillOnTouch:  0.35,
		DepthFractionMin: 0.05,
		DepthFractionMax: 0.25,
		PartialRatioMin:  0.25,
		PartialRatioMax:  1.0,
		SlippageBps:      1.0,
		AdverseBps:       1.5,
		ExtraSlipProb:    0.05,
		MaxParticipation: 0.1,
		Seed:             1,
	}
}

// QueueFillModel approximates queue position probabilistically: resting
// orders fill at their own price once touched, crossing orders pay taker
// slippage against visible depth.
type QueueFillModel struct {
	spec *model.InstrumentSpec
	cfg  FillConfig
	rng  *rand.Rand
}

func NewQueueFillModel(spec *model.InstrumentSpec, cfg FillConfig) *QueueFillModel {
	return &QueueFillModel{
		spec: spec,
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (m *QueueFillModel) Evaluate(order *model.PaperOrder, book *model.OrderBookSnapshot, now time.Time) FillDecision {
	if book == nil || order.Remaining() <= 0 {
		return FillDecision{}
	}

	if order.CrossedAtCreation || order.Type == model.OrderMarket {
		return m.takerFill(order, book)
	}

	if !touchable(order, book) {
		return FillDecision{}
	}

	// Reaching the front of the queue this tick is a probability draw;
	// limit-maker orders never cross, they only ever fill here.
	if m.rng.Float64() >= m.cfg.ProbFillOnTouch {
		return FillDecision{}
	}

	depth := book.DepthWithin(order.Side)
	depthCap := depth * m.uniform(m.cfg.DepthFractionMin, m.cfg.DepthFractionMax)
	partial := order.Remaining() * m.uniform(m.cfg.PartialRatioMin, m.cfg.PartialRatioMax)

	qty := min3(order.Remaining(), depthCap, partial)
	if qty <= 0 {
		return FillDecision{}
	}

	return FillDecision{
		Quantity: qty,
		Price:    order.Price,
		IsMaker:  true,
	}
}

func (m *QueueFillModel) takerFill(order *model.PaperOrder, book *model.OrderBookSnapshot) FillDecision {
	var best model.PriceLevel
	var ok bool
	if order.Side == model.SideBuy {
		best, ok = book.BestAsk()
	} else {
		best, ok = book.BestBid()
	}
	if !ok {
		return FillDecision{}
	}

	depth := book.DepthWithin(order.Side)
	depthCap := depth * m.uniform(m.cfg.DepthFractionMin, m.cfg.DepthFractionMax)
	qty := order.Remaining()
	if depthCap < qty {
		qty = depthCap
	}
	if qty <= 0 {
		return FillDecision{}
	}

	slipBps := m.cfg.SlippageBps + m.cfg.AdverseBps
	price := best.Price
	if order.Side == model.SideBuy {
		price *= 1 + slipBps/10_000
	} else {
		price *= 1 - slipBps/10_000
	}

	// Occasionally the fill crosses one more tick than modeled slippage.
	if m.rng.Float64() < m.cfg.ExtraSlipProb {
		if order.Side == model.SideBuy {
			price += m.spec.PriceIncrement
		} else {
			price -= m.spec.PriceIncrement
		}
	}

	return FillDecision{
		Quantity: qty,
		Price:    price,
		IsMaker:  false,
	}
}

func (m *QueueFillModel) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + m.rng.Float64()*(hi-lo)
}

// TopOfBookFillModel instantly fills the full remaining quantity at the best
// opposite price. Intended for structural smoke testing only; it ignores
// depth and queue position, so PnL from it is not benchmark-accurate.
type TopOfBookFillModel struct{}

func NewTopOfBookFillModel() *TopOfBookFillModel { return &TopOfBookFillModel{} }

func (m *TopOfBookFillModel) Evaluate(order *model.PaperOrder, book *model.OrderBookSnapshot, _ time.Time) FillDecision {
	if book == nil || order.Remaining() <= 0 {
		return FillDecision{}
	}
	var best model.PriceLevel
	var ok bool
	if order.Side == model.SideBuy {
		best, ok = book.BestAsk()
	} else {
		best, ok = book.BestBid()
	}
	if !ok {
		return FillDecision{}
	}
	return FillDecision{Quantity: order.Remaining(), Price: best.Price, IsMaker: false}
}

// LatencyAwareFillModel wraps the queue model and additionally caps the fill
// at a participation fraction of visible opposite-side depth.
type LatencyAwareFillModel struct {
	inner            *QueueFillModel
	maxParticipation float64
}

func NewLatencyAwareFillModel(spec *model.InstrumentSpec, cfg FillConfig) *LatencyAwareFillModel {
	return &LatencyAwareFillModel{
		inner:            NewQueueFillModel(spec, cfg),
		maxParticipation: cfg.MaxParticipation,
	}
}

func (m *LatencyAwareFillModel) Evaluate(order *model.PaperOrder, book *model.OrderBookSnapshot, now time.Time) FillDecision {
	decision := m.inner.Evaluate(order, book, now)
	if decision.Quantity <= 0 || m.maxParticipation <= 0 {
		return decision
	}
	limit := book.DepthWithin(order.Side) * m.maxParticipation
	if decision.Quantity > limit {
		decision.Quantity = limit
	}
	return decision
}

// NewFillModel builds the configured fill model. Selection is by name only.
func NewFillModel(cfg FillConfig, spec *model.InstrumentSpec) (FillModel, error) {
	switch cfg.Model {
	case "", "queue":
		return NewQueueFillModel(spec, cfg), nil
	case "top":
		return NewTopOfBookFillModel(), nil
	case "latency":
		return NewLatencyAwareFillModel(spec, cfg), nil
	default:
		return nil, fmt.Errorf("unknown fill model %q", cfg.Model)
	}
}

// touchable reports whether the book has reached the order's price: a buy is
// touchable when the best ask trades at or below it, a sell when the best
// bid trades at or above it.
func touchable(order *model.PaperOrder, book *model.OrderBookSnapshot) bool {
	if order.Side == model.SideBuy {
		ask, ok := book.BestAsk()
		return ok && ask.Price <= order.Price
	}
	bid, ok := book.BestBid()
	return ok && bid.Price >= order.Price
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
