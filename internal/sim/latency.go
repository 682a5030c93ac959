package sim

import "time"

// LatencyModel simulates per-command network and processing delay in
// milliseconds. A zero total disables the delay entirely.
type LatencyModel struct {
	BaseMs   int64 `mapstructure:"base_ms"`
	InsertMs int64 `mapstructure:"insert_ms"`
	CancelMs int64 `mapstructure:"cancel_ms"`
}

// TotalInsert is the delay between submission and the order going live.
func (l LatencyModel) TotalInsert() time.Duration {
	return time.Duration(l.BaseMs+l.InsertMs) * time.Millisecond
}

// TotalCancel is the delay between a cancel request and its finalization.
func (l LatencyModel) TotalCancel() time.Duration {
	return time.Duration(l.BaseMs+l.CancelMs) * time.Millisecond
}

// Latency presets.
func LatencyNone() LatencyModel {
	return LatencyModel{}
}

func LatencyFast() LatencyModel {
	return LatencyModel{BaseMs: 5, InsertMs: 5, CancelMs: 5}
}

func LatencyRealistic() LatencyModel {
	return LatencyModel{BaseMs: 30, InsertMs: 50, CancelMs: 40}
}

// LatencyPaperDefault is the default profile for paper trading runs.
func LatencyPaperDefault() LatencyModel {
	return LatencyModel{BaseMs: 10, InsertMs: 20, CancelMs: 15}
}

// LatencyPreset resolves a named profile; unknown names fall back to the
// paper default.
func LatencyPreset(name string) LatencyModel {
	switch name {
	case "none":
		return LatencyNone()
	case "fast":
		return LatencyFast()
	case "realistic":
		return LatencyRealistic()
	default:
		return LatencyPaperDefault()
	}
}
