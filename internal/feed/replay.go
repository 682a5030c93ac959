package feed

// ReplayFeed walks a scripted sequence of market-data steps. Replaying the
// same script against the same configuration must reproduce the same event
// stream, so the feed exposes no randomness and no wall-clock dependence.

import (
	"papertrade/internal/model"
)

// Step is one scripted market-data state.
type Step struct {
	Book        *model.OrderBookSnapshot
	FundingRate float64
}

// ReplayFeed serves steps in order. Before the first Advance it serves the
// zero state; after the last step it keeps serving the final one.
type ReplayFeed struct {
	steps []Step
	idx   int
}

func NewReplayFeed(steps []Step) *ReplayFeed {
	return &ReplayFeed{steps: steps, idx: -1}
}

// Advance moves to the next step. It reports false once the script is
// exhausted; the current step then stays at the last one.
func (f *ReplayFeed) Advance() bool {
	if f.idx+1 >= len(f.steps) {
		return false
	}
	f.idx++
	return true
}

// Remaining returns the number of steps not yet served.
func (f *ReplayFeed) Remaining() int {
	if f.idx >= len(f.steps) {
		return 0
	}
	return len(f.steps) - f.idx - 1
}

func (f *ReplayFeed) current() *Step {
	if f.idx < 0 || len(f.steps) == 0 {
		return nil
	}
	i := f.idx
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	return &f.steps[i]
}

func (f *ReplayFeed) Book() *model.OrderBookSnapshot {
	if s := f.current(); s != nil {
		return s.Book
	}
	return nil
}

func (f *ReplayFeed) FundingRate() float64 {
	if s := f.current(); s != nil {
		return s.FundingRate
	}
	return 0
}
