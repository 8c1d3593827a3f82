package model

// OrderSide is the direction of an order.
type OrderSide uint8

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

// String returns the side name.
func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "BUY"
	case OrderSideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderType is the execution type of an order.
type OrderType uint8

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeMarket
	OrderTypeLimit
	OrderTypeStopMarket
	OrderTypeStopLimit
)

// String returns the order type name.
func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeStopMarket:
		return "STOP_MARKET"
	case OrderTypeStopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce controls how long an order stays working.
type TimeInForce uint8

const (
	TimeInForceUnknown TimeInForce = iota
	TimeInForceGTC
	TimeInForceIOC
	TimeInForceFOK
	TimeInForceGTD
	TimeInForceDay
)

// String returns the time-in-force name.
func (t TimeInForce) String() string {
	switch t {
	case TimeInForceGTC:
		return "GTC"
	case TimeInForceIOC:
		return "IOC"
	case TimeInForceFOK:
		return "FOK"
	case TimeInForceGTD:
		return "GTD"
	case TimeInForceDay:
		return "DAY"
	default:
		return "UNKNOWN"
	}
}

// TriggerType selects the market data an emulated order watches.
type TriggerType uint8

const (
	TriggerNone TriggerType = iota
	TriggerDefault
	TriggerBidAsk
	TriggerLastTrade
)

// String returns the trigger type name.
func (t TriggerType) String() string {
	switch t {
	case TriggerDefault:
		return "DEFAULT"
	case TriggerBidAsk:
		return "BID_ASK"
	case TriggerLastTrade:
		return "LAST_TRADE"
	default:
		return "NONE"
	}
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus uint8

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusInitialized
	OrderStatusDenied
	OrderStatusEmulated
	OrderStatusReleased
	OrderStatusSubmitted
	OrderStatusRejected
	OrderStatusAccepted
	OrderStatusPendingUpdate
	OrderStatusPendingCancel
	OrderStatusTriggered
	OrderStatusCanceled
	OrderStatusExpired
	OrderStatusModifyRejected
	OrderStatusCancelRejected
	OrderStatusUpdated
	OrderStatusPartiallyFilled
	OrderStatusFilled
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusInitialized:     "INITIALIZED",
	OrderStatusDenied:          "DENIED",
	OrderStatusEmulated:        "EMULATED",
	OrderStatusReleased:        "RELEASED",
	OrderStatusSubmitted:       "SUBMITTED",
	OrderStatusRejected:        "REJECTED",
	OrderStatusAccepted:        "ACCEPTED",
	OrderStatusPendingUpdate:   "PENDING_UPDATE",
	OrderStatusPendingCancel:   "PENDING_CANCEL",
	OrderStatusTriggered:       "TRIGGERED",
	OrderStatusCanceled:        "CANCELED",
	OrderStatusExpired:         "EXPIRED",
	OrderStatusModifyRejected:  "MODIFY_REJECTED",
	OrderStatusCancelRejected:  "CANCEL_REJECTED",
	OrderStatusUpdated:         "UPDATED",
	OrderStatusPartiallyFilled: "PARTIALLY_FILLED",
	OrderStatusFilled:          "FILLED",
}

// String returns the status name.
func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// PositionStatus is the lifecycle state of a position.
type PositionStatus uint8

const (
	PositionStatusFlat PositionStatus = iota
	PositionStatusLong
	PositionStatusShort
	PositionStatusClosed
)

// String returns the position status name.
func (s PositionStatus) String() string {
	switch s {
	case PositionStatusLong:
		return "LONG"
	case PositionStatusShort:
		return "SHORT"
	case PositionStatusClosed:
		return "CLOSED"
	default:
		return "FLAT"
	}
}

// EventType categorizes events passing through the bus.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventQuoteTick
	EventTradeTick
	EventTime
	EventOrder
	EventPosition
	EventCommand
)
