package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"papertrade/internal/account"
	"papertrade/internal/event"
	"papertrade/internal/model"
	"papertrade/internal/observability"
	"papertrade/internal/risk"
	"papertrade/internal/sim"
)

// MatchingEngine simulates the venue for one instrument: it validates,
// reserves, ticks the fill/fee/latency models, drives the order state
// machine, and settles fills through the shared portfolio.
//
// Not internally synchronized; the desk serializes all calls.
type MatchingEngine struct {
	spec      *model.InstrumentSpec
	portfolio *account.Portfolio
	riskEng   *risk.Engine
	fillModel sim.FillModel
	feeModel  sim.FeeModel
	latency   sim.LatencyModel
	gen       *event.Generator
	log       zerolog.Logger
	metrics   *observability.Metrics

	// specs is the desk-shared registry, used for portfolio-wide margin.
	specs map[string]*model.InstrumentSpec

	orders   map[string]*model.PaperOrder
	orderSeq []string
	activeAt map[string]time.Time
	cancelAt map[string]time.Time
	book     *model.OrderBookSnapshot
}

func NewMatchingEngine(
	spec *model.InstrumentSpec,
	portfolio *account.Portfolio,
	riskEng *risk.Engine,
	fillModel sim.FillModel,
	feeModel sim.FeeModel,
	latency sim.LatencyModel,
	gen *event.Generator,
	specs map[string]*model.InstrumentSpec,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *MatchingEngine {
	return &MatchingEngine{
		spec:      spec,
		portfolio: portfolio,
		riskEng:   riskEng,
		fillModel: fillModel,
		feeModel:  feeModel,
		latency:   latency,
		gen:       gen,
		specs:     specs,
		log:       log,
		metrics:   metrics,
		orders:    make(map[string]*model.PaperOrder),
		activeAt:  make(map[string]time.Time),
		cancelAt:  make(map[string]time.Time),
	}
}

// transition moves an order to the next status or panics. An illegal
// transition means desynchronized bookkeeping, never legitimate input.
func (e *MatchingEngine) transition(o *model.PaperOrder, next model.OrderStatus, now time.Time) {
	if !o.Status.CanTransitionTo(next) {
		panic(fmt.Sprintf("FATAL: illegal order transition %s -> %s (order=%s)",
			o.Status, next, o.ID))
	}
	o.Status = next
	o.UpdatedAt = now
}

// UpdateBook replaces the latest snapshot used by the next Tick.
func (e *MatchingEngine) UpdateBook(book *model.OrderBookSnapshot) {
	e.book = book
}

// Order returns a submitted order by ID. Terminal orders stay retrievable.
func (e *MatchingEngine) Order(id string) (*model.PaperOrder, bool) {
	o, ok := e.orders[id]
	return o, ok
}

// OpenOrders returns non-terminal orders in submission order.
func (e *MatchingEngine) OpenOrders() []*model.PaperOrder {
	var open []*model.PaperOrder
	for _, id := range e.orderSeq {
		if o := e.orders[id]; !o.Status.IsTerminal() {
			open = append(open, o)
		}
	}
	return open
}

// SubmitOrder runs validation, the pre-trade risk gates, and the atomic
// reserve, then records the order. Rejections surface as OrderRejected
// events with no reservation left behind.
func (e *MatchingEngine) SubmitOrder(o *model.PaperOrder, now time.Time) []event.Event {
	return e.submit(o, now, false)
}

// SubmitForced places a risk-reducing order on behalf of the risk engine:
// the pre-trade gates and the balance reserve are skipped, since the order
// exists precisely because the account is impaired.
func (e *MatchingEngine) SubmitForced(o *model.PaperOrder, now time.Time) []event.Event {
	return e.submit(o, now, true)
}

func (e *MatchingEngine) submit(o *model.PaperOrder, now time.Time, forced bool) []event.Event {
	o.Price = e.spec.QuantizePrice(o.Price, o.Side)
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Status = model.StatusPendingSubmit

	refPrice := e.referencePrice(o)

	// Validate the raw quantity before snapping it onto the size grid;
	// quantization clamps up to the minimum and would mask a zero, negative,
	// or below-minimum submission.
	if reason := e.validate(o, refPrice); reason != "" {
		return e.reject(o, reason, now)
	}
	o.Quantity = e.spec.QuantizeSize(o.Quantity)

	if !forced {
		if reason := e.riskCheck(o, refPrice); reason != "" {
			return e.reject(o, reason, now)
		}

		asset, amount := e.reserveRequirement(o, refPrice)
		if err := e.portfolio.Ledger().Reserve(asset, amount); err != nil {
			return e.reject(o, "insufficient_balance", now)
		}
		o.Reserved = amount
		o.ReservedAsset = asset
	}

	o.CrossedAtCreation = e.crossesBook(o)

	e.orders[o.ID] = o
	e.orderSeq = append(e.orderSeq, o.ID)

	if d := e.latency.TotalInsert(); d > 0 {
		e.activeAt[o.ID] = now.Add(d)
	} else {
		e.transition(o, model.StatusOpen, now)
	}

	if e.metrics != nil {
		e.metrics.OrdersAccepted.WithLabelValues(e.spec.ID.Key()).Inc()
	}
	e.log.Debug().
		Str("order_id", o.ID).
		Str("side", o.Side.String()).
		Float64("price", o.Price).
		Float64("quantity", o.Quantity).
		Bool("crossed", o.CrossedAtCreation).
		Msg("order accepted")

	evt := e.gen.Next(event.TypeOrderAccepted, e.spec.ID, now)
	evt.OrderID = o.ID
	evt.BotID = o.BotID
	return []event.Event{evt}
}

func (e *MatchingEngine) validate(o *model.PaperOrder, refPrice float64) string {
	price := o.Price
	if o.Type == model.OrderMarket {
		if refPrice <= 0 {
			return "no_market_data"
		}
		price = refPrice
	}
	return e.spec.ValidateOrder(price, o.Quantity)
}

// referencePrice is the limit price, or the book mid for market orders.
func (e *MatchingEngine) referencePrice(o *model.PaperOrder) float64 {
	if o.Type != model.OrderMarket && o.Price > 0 {
		return o.Price
	}
	if mid, ok := e.book.MidPrice(); ok {
		return mid
	}
	return 0
}

func (e *MatchingEngine) riskCheck(o *model.PaperOrder, refPrice float64) string {
	quote := e.spec.ID.QuoteAsset()
	equity := e.portfolio.Equity(quote)
	peak := e.portfolio.UpdatePeakEquity(equity)

	pos := e.portfolio.Position(e.spec.ID)
	delta := o.Quantity
	if o.Side == model.SideSell {
		delta = -o.Quantity
	}
	resultingNotional := math.Abs(pos.Quantity+delta) * refPrice

	var exposure float64
	for _, p := range e.portfolio.Positions() {
		if p.Instrument.Key() == e.spec.ID.Key() {
			exposure += (p.Quantity + delta) * refPrice
			continue
		}
		exposure += p.Quantity * p.AvgEntryPrice
	}

	return e.riskEng.CheckOrder(risk.OrderCheck{
		Equity:            equity,
		PeakEquity:        peak,
		MaintenanceMargin: MaintenanceMargin(e.portfolio, e.specs),
		ResultingNotional: resultingNotional,
		ResultingExposure: exposure,
	})
}

// reserveRequirement sizes the hold placed at acceptance: full quote
// notional for spot buys, base quantity for spot sells, initial margin for
// perpetuals.
func (e *MatchingEngine) reserveRequirement(o *model.PaperOrder, refPrice float64) (string, float64) {
	id := e.spec.ID
	if id.IsPerp() {
		return id.QuoteAsset(), account.MarginRequirement(e.spec, refPrice, o.Quantity)
	}
	if o.Side == model.SideBuy {
		notional := refPrice * o.Quantity
		return id.QuoteAsset(), notional * (1 + e.spec.TakerFeeRate)
	}
	return id.BaseAsset(), o.Quantity
}

// crossesBook checks at submission time whether the order would trade
// immediately against the current book.
func (e *MatchingEngine) crossesBook(o *model.PaperOrder) bool {
	if o.Type == model.OrderMarket {
		return true
	}
	if o.Side == model.SideBuy {
		if ask, ok := e.book.BestAsk(); ok {
			return o.Price >= ask.Price
		}
		return false
	}
	if bid, ok := e.book.BestBid(); ok {
		return o.Price <= bid.Price
	}
	return false
}

func (e *MatchingEngine) reject(o *model.PaperOrder, reason string, now time.Time) []event.Event {
	e.transition(o, model.StatusRejected, now)
	e.orders[o.ID] = o
	e.orderSeq = append(e.orderSeq, o.ID)

	if e.metrics != nil {
		e.metrics.OrdersRejected.WithLabelValues(e.spec.ID.Key(), reason).Inc()
	}
	e.log.Debug().Str("order_id", o.ID).Str("reason", reason).Msg("order rejected")

	evt := e.gen.Next(event.TypeOrderRejected, e.spec.ID, now)
	evt.OrderID = o.ID
	evt.BotID = o.BotID
	evt.Reason = reason
	return []event.Event{evt}
}

// Tick advances all live orders in submission order: activates orders whose
// insert latency elapsed, finalizes due cancels, evaluates the fill model,
// and settles any fills. Afterwards positions are marked to the latest book.
func (e *MatchingEngine) Tick(now time.Time) []event.Event {
	var events []event.Event

	for _, id := range e.orderSeq {
		o := e.orders[id]
		if o.Status.IsTerminal() {
			continue
		}

		if o.Status == model.StatusPendingSubmit {
			at, ok := e.activeAt[id]
			if !ok || !now.Before(at) {
				e.transition(o, model.StatusOpen, now)
				delete(e.activeAt, id)
			} else if _, canceling := e.cancelAt[id]; !canceling {
				continue
			}
		}

		if at, ok := e.cancelAt[id]; ok && !now.Before(at) {
			events = append(events, e.finalizeCancel(o, now))
			continue
		}

		if o.Status != model.StatusOpen && o.Status != model.StatusPartiallyFilled {
			continue
		}

		decision := e.fillModel.Evaluate(o, e.book, now)
		if decision.Quantity <= 0 {
			continue
		}
		if decision.Quantity > o.Remaining() {
			decision.Quantity = o.Remaining()
		}

		events = append(events, e.applyFill(o, decision, now)...)
	}

	e.markToMarket()
	return events
}

func (e *MatchingEngine) applyFill(o *model.PaperOrder, d sim.FillDecision, now time.Time) []event.Event {
	fee := e.feeModel.Compute(d.Price*d.Quantity, d.IsMaker)

	remainingBefore := o.Remaining()
	transition, _, err := e.portfolio.SettleFill(e.spec, o.Side, d.Quantity, d.Price, fee, now)
	if err != nil {
		e.log.Error().Err(err).Str("order_id", o.ID).Msg("fill settlement failed")
		evt := e.gen.Next(event.TypeEngineError, e.spec.ID, now)
		evt.OrderID = o.ID
		evt.Error = err.Error()
		return []event.Event{evt}
	}

	o.FilledQty += d.Quantity

	// Release the slice of the hold consumed by this fill; the final fill
	// releases whatever is left so nothing leaks.
	release := o.Reserved
	if remainingBefore > 0 && o.Remaining() > account.DustEpsilon {
		release = o.Reserved * (d.Quantity / remainingBefore)
	}
	if release > o.Reserved {
		release = o.Reserved
	}
	e.portfolio.Ledger().Release(o.ReservedAsset, release)
	o.Reserved -= release

	if o.Remaining() <= account.DustEpsilon {
		o.FilledQty = o.Quantity
		e.transition(o, model.StatusFilled, now)
		delete(e.cancelAt, o.ID)
	} else {
		e.transition(o, model.StatusPartiallyFilled, now)
	}

	if e.metrics != nil {
		key := e.spec.ID.Key()
		role := "taker"
		if d.IsMaker {
			role = "maker"
		}
		e.metrics.OrderFills.WithLabelValues(key, role).Inc()
		e.metrics.FillQuantity.WithLabelValues(key).Observe(d.Quantity)
		e.metrics.FeesCharged.WithLabelValues(key).Add(fee)
	}

	fillEvt := e.gen.Next(event.TypeOrderFilled, e.spec.ID, now)
	fillEvt.OrderID = o.ID
	fillEvt.BotID = o.BotID
	fillEvt.Price = d.Price
	fillEvt.Quantity = d.Quantity
	fillEvt.Fee = fee
	fillEvt.IsMaker = d.IsMaker
	fillEvt.Remaining = o.Remaining()

	events := []event.Event{fillEvt}

	if e.spec.ID.IsPerp() && transition != account.TransitionNone {
		posEvt := e.gen.Next(event.TypePositionChanged, e.spec.ID, now)
		posEvt.OrderID = o.ID
		posEvt.Reason = transition.String()
		events = append(events, posEvt)

		if e.metrics != nil {
			e.metrics.RealizedPnL.WithLabelValues(e.spec.ID.Key(), transition.String()).Inc()
		}
	}

	return events
}

// CancelOrder requests cancellation. Canceling an already-terminal order is
// a no-op (duplicate cancel requests are tolerated); the remaining reserve
// is released exactly once, on finalization.
func (e *MatchingEngine) CancelOrder(id string, now time.Time) []event.Event {
	o, ok := e.orders[id]
	if !ok {
		evt := e.gen.Next(event.TypeOrderRejected, e.spec.ID, now)
		evt.OrderID = id
		evt.Reason = "unknown_order"
		return []event.Event{evt}
	}
	if o.Status.IsTerminal() {
		return nil
	}
	if _, pending := e.cancelAt[id]; pending {
		return nil
	}

	if d := e.latency.TotalCancel(); d > 0 {
		e.cancelAt[id] = now.Add(d)
		return nil
	}
	return []event.Event{e.finalizeCancel(o, now)}
}

func (e *MatchingEngine) finalizeCancel(o *model.PaperOrder, now time.Time) event.Event {
	e.portfolio.Ledger().Release(o.ReservedAsset, o.Reserved)
	o.Reserved = 0
	e.transition(o, model.StatusCanceled, now)
	delete(e.cancelAt, o.ID)
	delete(e.activeAt, o.ID)

	if e.metrics != nil {
		e.metrics.OrdersCanceled.WithLabelValues(e.spec.ID.Key()).Inc()
	}

	evt := e.gen.Next(event.TypeOrderCanceled, e.spec.ID, now)
	evt.OrderID = o.ID
	evt.BotID = o.BotID
	return evt
}

// CancelAll cancels every non-terminal order for the instrument.
func (e *MatchingEngine) CancelAll(now time.Time) []event.Event {
	var events []event.Event
	for _, id := range e.orderSeq {
		if o := e.orders[id]; !o.Status.IsTerminal() {
			events = append(events, e.CancelOrder(id, now)...)
		}
	}
	return events
}

func (e *MatchingEngine) markToMarket() {
	mid, ok := e.book.MidPrice()
	if !ok {
		return
	}
	e.portfolio.MarkToMarket(map[string]float64{e.spec.ID.Key(): mid})
}

// MaintenanceMargin sums |quantity| * entry * maintenance rate across all
// open perpetual positions with a registered spec.
func MaintenanceMargin(p *account.Portfolio, specs map[string]*model.InstrumentSpec) float64 {
	var total float64
	for _, pos := range p.Positions() {
		if pos.IsFlat() || !pos.Instrument.IsPerp() {
			continue
		}
		spec, ok := specs[pos.Instrument.Key()]
		if !ok {
			continue
		}
		total += pos.Notional(pos.AvgEntryPrice) * spec.MarginMaintRate
	}
	return total
}
