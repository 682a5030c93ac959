package model

import "time"

// Side is the order direction.
type Side int32

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

// Opposite returns the other direction.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the execution style requested by the caller.
type OrderType int32

const (
	OrderLimit OrderType = iota
	OrderLimitMaker
	OrderMarket
)

func (ot OrderType) String() string {
	switch ot {
	case OrderLimitMaker:
		return "limit_maker"
	case OrderMarket:
		return "market"
	default:
		return "limit"
	}
}

// OrderStatus is the order lifecycle state. The transition set is closed;
// anything outside CanTransitionTo is a programming error.
type OrderStatus int32

const (
	StatusPendingSubmit OrderStatus = iota
	StatusOpen
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusRejected
)

func (os OrderStatus) String() string {
	switch os {
	case StatusPendingSubmit:
		return "PendingSubmit"
	case StatusOpen:
		return "Open"
	case StatusPartiallyFilled:
		return "PartiallyFilled"
	case StatusFilled:
		return "Filled"
	case StatusCanceled:
		return "Canceled"
	case StatusRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether the status has no outgoing transitions.
func (os OrderStatus) IsTerminal() bool {
	return os == StatusFilled || os == StatusCanceled || os == StatusRejected
}

// CanTransitionTo validates status transitions.
func (os OrderStatus) CanTransitionTo(next OrderStatus) bool {
	validTransitions := map[OrderStatus][]OrderStatus{
		StatusPendingSubmit: {
			StatusOpen,
			StatusCanceled,
			StatusRejected,
		},
		StatusOpen: {
			StatusPartiallyFilled,
			StatusFilled,
			StatusCanceled,
		},
		StatusPartiallyFilled: {
			StatusPartiallyFilled, // Repeated partial fills
			StatusFilled,
			StatusCanceled,
		},
	}

	allowed, ok := validTransitions[os]
	if !ok {
		return false
	}

	for _, a := range allowed {
		if next == a {
			return true
		}
	}

	return false
}

// PaperOrder is the mutable order record kept by the matching engine.
type PaperOrder struct {
	ID         string
	Instrument InstrumentID
	Side       Side
	Type       OrderType
	Price      float64
	Quantity   float64
	FilledQty  float64

	// Reserved is the unconsumed hold still placed against the ledger
	// for this order (quote notional or margin, base for spot sells).
	Reserved      float64
	ReservedAsset string

	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	BotID     string

	// CrossedAtCreation is fixed at submission: the order already crossed
	// the book and takes the taker path in the fill model.
	CrossedAtCreation bool
}

// Remaining returns the unfilled quantity.
func (o *PaperOrder) Remaining() float64 {
	rem := o.Quantity - o.FilledQty
	if rem < 0 {
		return 0
	}
	return rem
}
