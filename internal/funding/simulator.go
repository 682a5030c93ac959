package funding

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"papertrade/internal/account"
	"papertrade/internal/event"
	"papertrade/internal/model"
	"papertrade/internal/observability"
)

// Simulator applies periodic funding charges to open perpetual positions.
//
// The first tick for an instrument only records a baseline timestamp; charges
// start once a full funding interval has elapsed since then. The charge is
// always a debit from the quote balance regardless of position direction, a
// deliberate simplification that makes paper PnL strictly conservative.
type Simulator struct {
	lastCharge map[string]time.Time
	log        zerolog.Logger
	metrics    *observability.Metrics
}

func NewSimulator(log zerolog.Logger, metrics *observability.Metrics) *Simulator {
	return &Simulator{
		lastCharge: make(map[string]time.Time),
		log:        log,
		metrics:    metrics,
	}
}

// Process runs one funding cycle over all registered instruments. Rates are
// keyed by instrument key. A failure for one instrument is logged and
// surfaced as an EngineError event without aborting the others.
func (s *Simulator) Process(
	p *account.Portfolio,
	specs map[string]*model.InstrumentSpec,
	rates map[string]float64,
	gen *event.Generator,
	now time.Time,
) []event.Event {
	keys := make([]string, 0, len(specs))
	for k := range specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var events []event.Event
	for _, key := range keys {
		spec := specs[key]
		evt, err := s.tickInstrument(p, spec, rates[key], gen, now)
		if err != nil {
			s.log.Error().Err(err).Str("instrument", key).Msg("funding cycle failed")
			errEvt := gen.Next(event.TypeEngineError, spec.ID, now)
			errEvt.Error = err.Error()
			events = append(events, errEvt)
			continue
		}
		if evt != nil {
			events = append(events, *evt)
		}
	}
	return events
}

func (s *Simulator) tickInstrument(
	p *account.Portfolio,
	spec *model.InstrumentSpec,
	rate float64,
	gen *event.Generator,
	now time.Time,
) (evt *event.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			evt = nil
			err = fmt.Errorf("funding panic: %v", r)
		}
	}()

	if !spec.ID.IsPerp() || spec.FundingIntervalSec <= 0 {
		return nil, nil
	}

	key := spec.ID.Key()
	last, seen := s.lastCharge[key]
	if !seen {
		s.lastCharge[key] = now
		return nil, nil
	}

	interval := time.Duration(spec.FundingIntervalSec) * time.Second
	if now.Sub(last) < interval {
		return nil, nil
	}
	s.lastCharge[key] = now

	pos := p.Position(spec.ID)
	if rate == 0 || pos.IsFlat() {
		return nil, nil
	}

	charge := abs(rate) * abs(pos.Quantity) * pos.AvgEntryPrice
	applied := p.ApplyFunding(spec.ID, charge, now)

	full := gen.Next(event.TypeFundingApplied, spec.ID, now)
	full.FundingRate = rate
	full.FundingCharge = applied.FundingCharge

	if s.metrics != nil {
		s.metrics.FundingCharges.WithLabelValues(key).Add(charge)
	}
	s.log.Debug().
		Str("instrument", key).
		Float64("rate", rate).
		Float64("charge", charge).
		Msg("funding applied")

	return &full, nil
}

// Reset clears all baseline timestamps, forcing a fresh baseline on the next
// cycle. Used when a session restarts without restored funding state.
func (s *Simulator) Reset() {
	s.lastCharge = make(map[string]time.Time)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
