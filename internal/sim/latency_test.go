package sim_test

import (
	"testing"
	"time"

	"papertrade/internal/sim"
)

func TestLatencyModel_Totals(t *testing.T) {
	l := sim.LatencyModel{BaseMs: 10, InsertMs: 20, CancelMs: 15}

	if got := l.TotalInsert(); got != 30*time.Millisecond {
		t.Errorf("insert latency = %v, want 30ms", got)
	}
	if got := l.TotalCancel(); got != 25*time.Millisecond {
		t.Errorf("cancel latency = %v, want 25ms", got)
	}
}

func TestLatencyNone_Zero(t *testing.T) {
	l := sim.LatencyNone()
	if l.TotalInsert() != 0 || l.TotalCancel() != 0 {
		t.Error("none preset should have zero latency")
	}
}

func TestLatencyPreset_Names(t *testing.T) {
	if sim.LatencyPreset("none") != sim.LatencyNone() {
		t.Error("preset none mismatch")
	}
	if sim.LatencyPreset("fast") != sim.LatencyFast() {
		t.Error("preset fast mismatch")
	}
	if sim.LatencyPreset("realistic") != sim.LatencyRealistic() {
		t.Error("preset realistic mismatch")
	}
	// Unknown names fall back to the paper default
	if sim.LatencyPreset("whatever") != sim.LatencyPaperDefault() {
		t.Error("unknown preset should fall back to paper default")
	}
}
