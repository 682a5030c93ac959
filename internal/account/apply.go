package account

import (
	"math"
	"time"

	"papertrade/internal/model"
)

// Transition classifies what one fill did to a position.
type Transition int32

const (
	TransitionNone Transition = iota
	TransitionOpen
	TransitionAdd
	TransitionReduce
	TransitionClose
	TransitionFlip
)

func (t Transition) String() string {
	switch t {
	case TransitionOpen:
		return "Open"
	case TransitionAdd:
		return "Add"
	case TransitionReduce:
		return "Reduce"
	case TransitionClose:
		return "Close"
	case TransitionFlip:
		return "Flip"
	default:
		return "None"
	}
}

// DustEpsilon clamps near-zero residual quantity to an exact close.
const DustEpsilon = 1e-9

// ApplyFill is the pure position-accounting function: it folds one fill into
// a position and reports the realized PnL of any closing leg.
//
// Average entry is the fill-size-weighted average over same-direction fills.
// On a flip the closing leg realizes PnL first, then the residual reopens at
// the fill price. Fees and funding are tracked outside this function.
func ApplyFill(
	pos model.PaperPosition,
	side model.Side,
	quantity float64,
	price float64,
	now time.Time,
) (next model.PaperPosition, transition Transition, realized, closedQty, openedQty float64) {
	next = pos

	if quantity <= 0 {
		return next, TransitionNone, 0, 0, 0
	}

	signed := quantity
	if side == model.SideSell {
		signed = -quantity
	}

	// Flat -> directional
	if pos.IsFlat() {
		next.Quantity = signed
		next.AvgEntryPrice = price
		next.OpenedAt = now
		return next, TransitionOpen, 0, 0, quantity
	}

	sameDirection := (pos.Quantity > 0) == (signed > 0)

	if sameDirection {
		oldAbs := math.Abs(pos.Quantity)
		next.AvgEntryPrice = (oldAbs*pos.AvgEntryPrice + quantity*price) / (oldAbs + quantity)
		next.Quantity = pos.Quantity + signed
		return next, TransitionAdd, 0, 0, quantity
	}

	oldAbs := math.Abs(pos.Quantity)

	switch {
	case quantity < oldAbs-DustEpsilon:
		// Partial close, direction unchanged
		realized = closePnL(pos, quantity, price)
		if pos.Quantity > 0 {
			next.Quantity = pos.Quantity - quantity
		} else {
			next.Quantity = pos.Quantity + quantity
		}
		next.RealizedPnL += realized
		return next, TransitionReduce, realized, quantity, 0

	case quantity <= oldAbs+DustEpsilon:
		// Exact or dust-close
		realized = closePnL(pos, oldAbs, price)
		next.Quantity = 0
		next.AvgEntryPrice = 0
		next.UnrealizedPnL = 0
		next.RealizedPnL += realized
		return next, TransitionClose, realized, oldAbs, 0

	default:
		// Close fully, reopen the residual on the opposite side
		realized = closePnL(pos, oldAbs, price)
		residual := quantity - oldAbs
		if signed > 0 {
			next.Quantity = residual
		} else {
			next.Quantity = -residual
		}
		next.AvgEntryPrice = price
		next.UnrealizedPnL = 0
		next.RealizedPnL += realized
		next.OpenedAt = now
		return next, TransitionFlip, realized, oldAbs, residual
	}
}

// closePnL realizes PnL for closing closedQty of the existing direction at
// exitPrice. Long closes gain on price rises, shorts on price drops.
func closePnL(pos model.PaperPosition, closedQty, exitPrice float64) float64 {
	if pos.Quantity > 0 {
		return (exitPrice - pos.AvgEntryPrice) * closedQty
	}
	return (pos.AvgEntryPrice - exitPrice) * closedQty
}
