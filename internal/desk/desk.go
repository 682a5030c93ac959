package desk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"papertrade/internal/account"
	"papertrade/internal/engine"
	"papertrade/internal/event"
	"papertrade/internal/feed"
	"papertrade/internal/funding"
	"papertrade/internal/model"
	"papertrade/internal/observability"
	"papertrade/internal/persistence"
	"papertrade/internal/risk"
	"papertrade/internal/sim"
)

// RiskBotID tags orders the desk places on behalf of the risk engine.
const RiskBotID = "risk-engine"

// OrderRequest is the desk-level submission payload. The desk assigns the
// order ID.
type OrderRequest struct {
	Instrument model.InstrumentID
	Side       model.Side
	Type       model.OrderType
	Price      float64
	Quantity   float64
	BotID      string
}

// Options configures desk construction.
type Options struct {
	InitialBalances map[string]float64
	FillConfig      sim.FillConfig
	FeeConfig       sim.FeeConfig
	Latency         sim.LatencyModel
	RiskConfig      risk.Config

	// EventLogCapacity bounds the in-memory event ring. Zero means 10000.
	EventLogCapacity int

	// Store and Journal are optional; a nil store disables snapshots, a nil
	// journal disables the append-only event file.
	Store   persistence.StateStore
	Journal *persistence.Journal

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Desk coordinates all per-instrument engines over one shared portfolio.
// All methods must be called from a single goroutine; the desk owns no locks.
type Desk struct {
	opts       Options
	log        zerolog.Logger
	metrics    *observability.Metrics
	portfolio  *account.Portfolio
	riskEng    *risk.Engine
	gen        *event.Generator
	fundingSim *funding.Simulator

	specs   map[string]*model.InstrumentSpec
	engines map[string]*engine.MatchingEngine
	feeds   map[string]feed.Feed

	eventLog     []event.Event
	orderCounter int64
	quoteAsset   string
}

func New(opts Options) *Desk {
	if opts.EventLogCapacity <= 0 {
		opts.EventLogCapacity = 10_000
	}
	log := opts.Logger

	return &Desk{
		opts:       opts,
		log:        log,
		metrics:    opts.Metrics,
		portfolio:  account.NewPortfolio(opts.InitialBalances),
		riskEng:    risk.NewEngine(opts.RiskConfig, log),
		gen:        event.NewGenerator(),
		fundingSim: funding.NewSimulator(log, opts.Metrics),
		specs:      make(map[string]*model.InstrumentSpec),
		engines:    make(map[string]*engine.MatchingEngine),
		feeds:      make(map[string]feed.Feed),
	}
}

// RegisterInstrument adds an instrument with its market-data feed. The first
// registered instrument's quote asset becomes the equity valuation asset.
func (d *Desk) RegisterInstrument(spec *model.InstrumentSpec, f feed.Feed) error {
	key := spec.ID.Key()
	if _, exists := d.specs[key]; exists {
		return fmt.Errorf("instrument %s already registered", key)
	}

	fillModel, err := sim.NewFillModel(d.opts.FillConfig, spec)
	if err != nil {
		return fmt.Errorf("fill model for %s: %w", key, err)
	}
	feeModel, err := sim.NewFeeModel(d.opts.FeeConfig, spec)
	if err != nil {
		return fmt.Errorf("fee model for %s: %w", key, err)
	}

	d.specs[key] = spec
	d.feeds[key] = f
	d.engines[key] = engine.NewMatchingEngine(
		spec,
		d.portfolio,
		d.riskEng,
		fillModel,
		feeModel,
		d.opts.Latency,
		d.gen,
		d.specs,
		d.log.With().Str("instrument", key).Logger(),
		d.metrics,
	)

	if d.quoteAsset == "" {
		d.quoteAsset = spec.ID.QuoteAsset()
	}

	d.log.Info().Str("instrument", key).Msg("instrument registered")
	return nil
}

// instrumentKeys returns registered keys sorted, the desk's canonical
// iteration order.
func (d *Desk) instrumentKeys() []string {
	keys := make([]string, 0, len(d.specs))
	for k := range d.specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SubmitOrder assigns an ID and routes the request to the owning engine.
// Requests for unregistered instruments yield an OrderRejected event.
func (d *Desk) SubmitOrder(req OrderRequest, now time.Time) (string, []event.Event) {
	d.orderCounter++
	id := event.OrderID(d.orderCounter)

	eng, ok := d.engines[req.Instrument.Key()]
	if !ok {
		evt := d.gen.Next(event.TypeOrderRejected, req.Instrument, now)
		evt.OrderID = id
		evt.BotID = req.BotID
		evt.Reason = "not_registered"
		events := []event.Event{evt}
		d.record(events, now)
		return id, events
	}

	order := &model.PaperOrder{
		ID:         id,
		Instrument: req.Instrument,
		Side:       req.Side,
		Type:       req.Type,
		Price:      req.Price,
		Quantity:   req.Quantity,
		BotID:      req.BotID,
	}

	events := eng.SubmitOrder(order, now)
	d.record(events, now)
	return id, events
}

// CancelOrder routes a cancel to the owning engine.
func (d *Desk) CancelOrder(instrument model.InstrumentID, orderID string, now time.Time) []event.Event {
	eng, ok := d.engines[instrument.Key()]
	if !ok {
		evt := d.gen.Next(event.TypeOrderRejected, instrument, now)
		evt.OrderID = orderID
		evt.Reason = "not_registered"
		events := []event.Event{evt}
		d.record(events, now)
		return events
	}
	events := eng.CancelOrder(orderID, now)
	d.record(events, now)
	return events
}

// CancelAll cancels open orders desk-wide, or for one instrument when its
// key is non-empty, optionally filtered by bot ID.
func (d *Desk) CancelAll(instrumentKey, botID string, now time.Time) []event.Event {
	var events []event.Event
	for _, key := range d.instrumentKeys() {
		if instrumentKey != "" && key != instrumentKey {
			continue
		}
		eng := d.engines[key]
		for _, o := range eng.OpenOrders() {
			if botID != "" && o.BotID != botID {
				continue
			}
			events = append(events, eng.CancelOrder(o.ID, now)...)
		}
	}
	d.record(events, now)
	return events
}

// Tick advances one simulation step: refresh books, run every engine, apply
// funding, evaluate risk, and route any advisory actions as market orders.
// Instruments are processed in sorted key order so replays are stable.
func (d *Desk) Tick(ctx context.Context, now time.Time) []event.Event {
	var events []event.Event
	filled := false

	rates := make(map[string]float64, len(d.specs))
	for _, key := range d.instrumentKeys() {
		f := d.feeds[key]
		eng := d.engines[key]
		eng.UpdateBook(f.Book())
		rates[key] = f.FundingRate()

		tickEvents := eng.Tick(now)
		for _, evt := range tickEvents {
			if evt.Type == event.TypeOrderFilled {
				filled = true
			}
		}
		events = append(events, tickEvents...)
	}

	events = append(events, d.fundingSim.Process(d.portfolio, d.specs, rates, d.gen, now)...)

	events = append(events, d.evaluateRisk(now)...)

	d.record(events, now)
	d.updateGauges()
	d.save(ctx, now, filled)

	return events
}

// evaluateRisk runs the margin ladder and converts advisory actions into
// forced market orders tagged with the risk bot ID.
func (d *Desk) evaluateRisk(now time.Time) []event.Event {
	equity := d.portfolio.Equity(d.quoteAsset)
	d.portfolio.UpdatePeakEquity(equity)
	maint := engine.MaintenanceMargin(d.portfolio, d.specs)

	actions := d.riskEng.Evaluate(equity, maint, d.portfolio.Positions())
	if len(actions) == 0 {
		return nil
	}

	var events []event.Event
	for _, action := range actions {
		if d.metrics != nil {
			d.metrics.RiskActionsIssued.WithLabelValues(action.Kind.String()).Inc()
		}
		d.log.Warn().
			Str("kind", action.Kind.String()).
			Str("instrument", action.Instrument.Key()).
			Float64("quantity", action.Quantity).
			Msg("risk action issued")

		eng, ok := d.engines[action.Instrument.Key()]
		if !ok {
			continue
		}
		d.orderCounter++
		order := &model.PaperOrder{
			ID:         event.OrderID(d.orderCounter),
			Instrument: action.Instrument,
			Side:       action.Side,
			Type:       model.OrderMarket,
			Quantity:   action.Quantity,
			BotID:      RiskBotID,
		}
		events = append(events, eng.SubmitForced(order, now)...)
	}
	return events
}

// record appends events to the bounded ring and the journal. The ring
// discards oldest first; journal append failures are logged, never fatal.
func (d *Desk) record(events []event.Event, now time.Time) {
	if len(events) == 0 {
		return
	}

	d.eventLog = append(d.eventLog, events...)
	if over := len(d.eventLog) - d.opts.EventLogCapacity; over > 0 {
		d.eventLog = append(d.eventLog[:0], d.eventLog[over:]...)
	}

	if d.opts.Journal != nil {
		for _, evt := range events {
			if err := d.opts.Journal.Append(evt.Type.String(), evt, now); err != nil {
				d.log.Error().Err(err).Msg("journal append failed")
				break
			}
		}
	}
}

func (d *Desk) updateGauges() {
	if d.metrics == nil || d.quoteAsset == "" {
		return
	}
	equity := d.portfolio.Equity(d.quoteAsset)
	d.metrics.Equity.Set(equity)
	d.metrics.PeakEquity.Set(d.portfolio.PeakEquity())
	d.metrics.MarginLevel.Set(float64(d.riskEng.Level()))
}

// save writes a snapshot through the store: throttled normally, forced right
// after fills so a crash never loses settled trades.
func (d *Desk) save(ctx context.Context, now time.Time, force bool) {
	if d.opts.Store == nil {
		return
	}
	snap := d.portfolio.TakeSnapshot(now)
	snap.EventSeq = d.gen.Seq()

	if err := d.opts.Store.Save(ctx, snap, now, force); err != nil {
		d.log.Error().Err(err).Msg("snapshot save failed")
		if d.metrics != nil {
			d.metrics.SnapshotErrors.Inc()
		}
		return
	}
	if d.metrics != nil {
		d.metrics.SnapshotSaves.WithLabelValues("store").Inc()
	}
}

// Restore loads the freshest snapshot from the store and replaces portfolio
// state. A cold start (no snapshot) is not an error.
func (d *Desk) Restore(ctx context.Context) error {
	if d.opts.Store == nil {
		return nil
	}
	snap, err := d.opts.Store.Load(ctx)
	if err != nil {
		if errors.Is(err, persistence.ErrNoSnapshot) {
			d.log.Info().Msg("no snapshot found, starting fresh")
			return nil
		}
		return err
	}

	d.portfolio.RestoreFromSnapshot(snap)
	d.gen.RestoreSeq(snap.EventSeq)
	d.fundingSim.Reset()
	d.log.Info().
		Time("created_at", snap.CreatedAt).
		Int64("event_seq", snap.EventSeq).
		Msg("state restored from snapshot")
	return nil
}

// Order looks up an order across all engines.
func (d *Desk) Order(instrument model.InstrumentID, orderID string) (*model.PaperOrder, bool) {
	eng, ok := d.engines[instrument.Key()]
	if !ok {
		return nil, false
	}
	return eng.Order(orderID)
}

// Events returns a copy of the bounded in-memory event log.
func (d *Desk) Events() []event.Event {
	out := make([]event.Event, len(d.eventLog))
	copy(out, d.eventLog)
	return out
}

// Portfolio exposes the shared portfolio for inspection.
func (d *Desk) Portfolio() *account.Portfolio { return d.portfolio }

// Status is a point-in-time operational summary.
type Status struct {
	Equity      float64                  `json:"equity"`
	PeakEquity  float64                  `json:"peak_equity"`
	MarginLevel string                   `json:"margin_level"`
	OpenOrders  map[string]int           `json:"open_orders"`
	Positions   []*model.PaperPosition   `json:"positions"`
	Balances    map[string]StatusBalance `json:"balances"`
	EventSeq    int64                    `json:"event_seq"`
}

type StatusBalance struct {
	Total     float64 `json:"total"`
	Reserved  float64 `json:"reserved"`
	Available float64 `json:"available"`
}

// Status reports the desk's current state.
func (d *Desk) Status() Status {
	st := Status{
		Equity:      d.portfolio.Equity(d.quoteAsset),
		PeakEquity:  d.portfolio.PeakEquity(),
		MarginLevel: d.riskEng.Level().String(),
		OpenOrders:  make(map[string]int),
		Positions:   d.portfolio.Positions(),
		Balances:    make(map[string]StatusBalance),
		EventSeq:    d.gen.Seq(),
	}
	for _, key := range d.instrumentKeys() {
		st.OpenOrders[key] = len(d.engines[key].OpenOrders())
	}
	ledger := d.portfolio.Ledger()
	for _, asset := range ledger.Assets() {
		st.Balances[asset] = StatusBalance{
			Total:     ledger.Total(asset),
			Reserved:  ledger.Reserved(asset),
			Available: ledger.Available(asset),
		}
	}
	return st
}
