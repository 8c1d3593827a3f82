package order

import (
	"errors"
	"fmt"

	"tradenode/internal/model"
)

var ErrInvalidStateTransition = errors.New("invalid order state transition")

// transitions is the complete order lifecycle table. A pair absent from the
// table is rejected and leaves the order untouched. DENIED, CANCELED,
// EXPIRED and FILLED have no exits; REJECTED has none either.
var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusInitialized: {
		model.OrderStatusDenied,
		model.OrderStatusEmulated,
		model.OrderStatusSubmitted,
	},
	model.OrderStatusEmulated: {
		model.OrderStatusReleased,
		model.OrderStatusCanceled,
		model.OrderStatusExpired,
	},
	model.OrderStatusReleased: {
		model.OrderStatusDenied,
		model.OrderStatusSubmitted,
	},
	model.OrderStatusSubmitted: {
		model.OrderStatusAccepted,
		model.OrderStatusRejected,
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
		model.OrderStatusCanceled,
	},
	model.OrderStatusAccepted: {
		model.OrderStatusPendingUpdate,
		model.OrderStatusPendingCancel,
		model.OrderStatusTriggered,
		model.OrderStatusCanceled,
		model.OrderStatusExpired,
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
		model.OrderStatusUpdated,
	},
	model.OrderStatusTriggered: {
		model.OrderStatusPendingUpdate,
		model.OrderStatusPendingCancel,
		model.OrderStatusCanceled,
		model.OrderStatusExpired,
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
	},
	model.OrderStatusPendingUpdate: {
		model.OrderStatusUpdated,
		model.OrderStatusModifyRejected,
		model.OrderStatusCanceled,
		model.OrderStatusExpired,
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
	},
	model.OrderStatusPendingCancel: {
		model.OrderStatusCanceled,
		model.OrderStatusCancelRejected,
		model.OrderStatusExpired,
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
	},
	model.OrderStatusModifyRejected: {
		model.OrderStatusPendingUpdate,
		model.OrderStatusPendingCancel,
		model.OrderStatusCanceled,
		model.OrderStatusExpired,
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
	},
	model.OrderStatusCancelRejected: {
		model.OrderStatusPendingUpdate,
		model.OrderStatusPendingCancel,
		model.OrderStatusCanceled,
		model.OrderStatusExpired,
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
	},
	model.OrderStatusUpdated: {
		model.OrderStatusPendingUpdate,
		model.OrderStatusPendingCancel,
		model.OrderStatusTriggered,
		model.OrderStatusCanceled,
		model.OrderStatusExpired,
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
		model.OrderStatusUpdated,
	},
	model.OrderStatusPartiallyFilled: {
		model.OrderStatusPendingUpdate,
		model.OrderStatusPendingCancel,
		model.OrderStatusCanceled,
		model.OrderStatusExpired,
		model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
	},
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to model.OrderStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Apply validates the event against the transition table and mutates the
// order. On a disallowed transition the order is left unchanged and
// ErrInvalidStateTransition is returned wrapped with context. Apply holds
// the order's lock for the whole transition, so concurrent readers never see
// a half-applied event.
func (o *Order) Apply(event Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	target, err := o.targetStatus(event)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, target) {
		return fmt.Errorf("%s -> %s for order %s: %w",
			o.Status, target, o.ClientOrderID, ErrInvalidStateTransition)
	}

	switch e := event.(type) {
	case Accepted:
		o.VenueOrderID = e.VenueOrderID
	case Updated:
		if e.Quantity.IsPositive() {
			o.Quantity = e.Quantity
		}
		if e.Price.IsPositive() {
			o.Price = e.Price
		}
		if e.TriggerPrice.IsPositive() {
			o.TriggerPrice = e.TriggerPrice
		}
	case Filled:
		o.applyFill(e)
	}

	o.Status = target
	o.TsLast = event.Header().TsInit
	o.events = append(o.events, event)
	return nil
}

// targetStatus maps an event to the status it drives the order into.
func (o *Order) targetStatus(event Event) (model.OrderStatus, error) {
	switch e := event.(type) {
	case Initialized:
		return model.OrderStatusInitialized, fmt.Errorf(
			"order %s is already initialized: %w", o.ClientOrderID, ErrInvalidStateTransition)
	case Denied:
		return model.OrderStatusDenied, nil
	case Emulated:
		return model.OrderStatusEmulated, nil
	case Released:
		return model.OrderStatusReleased, nil
	case Submitted:
		return model.OrderStatusSubmitted, nil
	case Rejected:
		return model.OrderStatusRejected, nil
	case Accepted:
		return model.OrderStatusAccepted, nil
	case PendingUpdate:
		return model.OrderStatusPendingUpdate, nil
	case PendingCancel:
		return model.OrderStatusPendingCancel, nil
	case Triggered:
		return model.OrderStatusTriggered, nil
	case Canceled:
		return model.OrderStatusCanceled, nil
	case Expired:
		return model.OrderStatusExpired, nil
	case ModifyRejected:
		return model.OrderStatusModifyRejected, nil
	case CancelRejected:
		return model.OrderStatusCancelRejected, nil
	case Updated:
		return model.OrderStatusUpdated, nil
	case Filled:
		if !e.LastQty.IsPositive() {
			return 0, fmt.Errorf("fill qty must be positive for order %s: %w",
				o.ClientOrderID, ErrInvalidStateTransition)
		}
		if o.FilledQty.Add(e.LastQty).GreaterThanOrEqual(o.Quantity) {
			return model.OrderStatusFilled, nil
		}
		return model.OrderStatusPartiallyFilled, nil
	default:
		return 0, fmt.Errorf("unhandled order event %T: %w", event, ErrInvalidStateTransition)
	}
}

// applyFill folds a fill into the quantity and average price.
func (o *Order) applyFill(e Filled) {
	if e.PositionID != "" {
		o.PositionID = e.PositionID
	}
	filledBefore := o.FilledQty
	o.FilledQty = o.FilledQty.Add(e.LastQty)
	if o.FilledQty.GreaterThan(o.Quantity) {
		o.FilledQty = o.Quantity
	}
	applied := o.FilledQty.Sub(filledBefore)
	if !applied.IsPositive() {
		return
	}
	if o.AvgPx.IsZero() {
		o.AvgPx = e.LastPx
		return
	}
	total := filledBefore.Mul(o.AvgPx).Add(applied.Mul(e.LastPx))
	o.AvgPx = total.Div(o.FilledQty)
}
