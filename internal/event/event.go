package event

import (
	"time"

	"papertrade/internal/model"
)

// Type discriminates event payloads.
type Type int32

const (
	TypeUnknown Type = iota
	TypeOrderAccepted
	TypeOrderRejected
	TypeOrderFilled
	TypeOrderCanceled
	TypePositionChanged
	TypeFundingApplied
	TypeEngineError
)

func (t Type) String() string {
	switch t {
	case TypeOrderAccepted:
		return "OrderAccepted"
	case TypeOrderRejected:
		return "OrderRejected"
	case TypeOrderFilled:
		return "OrderFilled"
	case TypeOrderCanceled:
		return "OrderCanceled"
	case TypePositionChanged:
		return "PositionChanged"
	case TypeFundingApplied:
		return "FundingApplied"
	case TypeEngineError:
		return "EngineError"
	default:
		return "Unknown"
	}
}

// Event is an immutable fact emitted by the engine. Every event carries a
// unique ID, a simulated timestamp, and the instrument it belongs to.
type Event struct {
	ID         string             `json:"id"`
	Seq        int64              `json:"seq"`
	Type       Type               `json:"type"`
	Instrument model.InstrumentID `json:"instrument"`
	Timestamp  time.Time          `json:"timestamp"`
	OrderID    string             `json:"order_id,omitempty"`
	BotID      string             `json:"bot_id,omitempty"`

	// OrderRejected
	Reason string `json:"reason,omitempty"`

	// OrderFilled
	Price     float64 `json:"price,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	Fee       float64 `json:"fee,omitempty"`
	IsMaker   bool    `json:"is_maker,omitempty"`
	Remaining float64 `json:"remaining,omitempty"`

	// FundingApplied
	FundingRate   float64 `json:"funding_rate,omitempty"`
	FundingCharge float64 `json:"funding_charge,omitempty"`

	// EngineError
	Error string `json:"error,omitempty"`
}
