package order

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"tradenode/internal/model"
)

var (
	ErrQuantityNotPositive = errors.New("order quantity must be positive")
	ErrPriceRequired       = errors.New("order type requires a price")
	ErrTriggerRequired     = errors.New("order type requires a trigger price")
	ErrExpireTimeRequired  = errors.New("GTD order requires an expire time")
	ErrGTDConflict         = errors.New("internal and venue GTD management are mutually exclusive")
	ErrMissingInstrument   = errors.New("order instrument is empty")
	ErrMissingOrderID      = errors.New("client order id is empty")
	ErrSideUnknown         = errors.New("order side is unknown")
)

// Config carries the submit-time parameters of an order.
type Config struct {
	ClientOrderID model.ClientOrderID
	InstrumentID  model.InstrumentID
	StrategyID    model.StrategyID
	Side          model.OrderSide
	Type          model.OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	TriggerPrice  decimal.Decimal
	TimeInForce   model.TimeInForce
	ExpireTimeNs  int64

	EmulationTrigger    model.TriggerType
	ExecAlgorithmID     string
	ExecAlgorithmParams map[string]string

	// ManageGTDExpiry asks the internal controller to cancel the order at
	// its expire time; VenueGTD delegates expiry to the venue. Both set is a
	// configuration error.
	ManageGTDExpiry bool
	VenueGTD        bool

	// ParentOrderID links execution-algorithm child orders to their parent.
	ParentOrderID model.ClientOrderID
}

// Validate reports the first configuration fault, if any.
func (c Config) Validate() error {
	if c.ClientOrderID == "" {
		return ErrMissingOrderID
	}
	if c.InstrumentID == 0 {
		return ErrMissingInstrument
	}
	if c.Side == model.OrderSideUnknown {
		return ErrSideUnknown
	}
	if c.Quantity.LessThanOrEqual(decimal.Zero) {
		return ErrQuantityNotPositive
	}
	switch c.Type {
	case model.OrderTypeLimit, model.OrderTypeStopLimit:
		if c.Price.LessThanOrEqual(decimal.Zero) {
			return ErrPriceRequired
		}
	}
	switch c.Type {
	case model.OrderTypeStopMarket, model.OrderTypeStopLimit:
		if c.TriggerPrice.LessThanOrEqual(decimal.Zero) {
			return ErrTriggerRequired
		}
	}
	if c.TimeInForce == model.TimeInForceGTD && c.ExpireTimeNs <= 0 {
		return ErrExpireTimeRequired
	}
	if c.ManageGTDExpiry && c.VenueGTD {
		return ErrGTDConflict
	}
	if c.ManageGTDExpiry && c.TimeInForce != model.TimeInForceGTD {
		return fmt.Errorf("manage GTD expiry requires GTD time in force, got %s", c.TimeInForce)
	}
	return nil
}

// Order is the engine-owned view of one order's lifecycle.
//
// The execution engine is the sole writer; strategies observe orders through
// the cache. Apply and the read helpers share an internal lock, so clock and
// bus goroutines may touch the same order concurrently. Direct field reads
// of the mutable fields are for single-threaded inspection; concurrent
// readers use Snapshot.
type Order struct {
	Config

	mu sync.Mutex

	Status       model.OrderStatus
	VenueOrderID model.VenueOrderID
	PositionID   model.PositionID
	FilledQty    decimal.Decimal
	AvgPx        decimal.Decimal
	TsInit       int64
	TsLast       int64

	events []Event
}

// New creates an order in INITIALIZED state. The config must already have
// passed Validate; malformed configs are denied by the engine instead.
func New(cfg Config, tsInit int64) *Order {
	return &Order{
		Config: cfg,
		Status: model.OrderStatusInitialized,
		TsInit: tsInit,
		TsLast: tsInit,
	}
}

// Snap is a point-in-time copy of an order's mutable state.
type Snap struct {
	Status       model.OrderStatus
	VenueOrderID model.VenueOrderID
	PositionID   model.PositionID
	FilledQty    decimal.Decimal
	AvgPx        decimal.Decimal
	TsLast       int64
}

// Snapshot returns a consistent copy of the mutable fields.
func (o *Order) Snapshot() Snap {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snap{
		Status:       o.Status,
		VenueOrderID: o.VenueOrderID,
		PositionID:   o.PositionID,
		FilledQty:    o.FilledQty,
		AvgPx:        o.AvgPx,
		TsLast:       o.TsLast,
	}
}

// LeavesQty returns the unfilled remainder.
func (o *Order) LeavesQty() decimal.Decimal {
	o.mu.Lock()
	defer o.mu.Unlock()
	leaves := o.Quantity.Sub(o.FilledQty)
	if leaves.IsNegative() {
		return decimal.Zero
	}
	return leaves
}

// IsClosed reports whether the order reached a terminal state.
func (o *Order) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.Status {
	case model.OrderStatusDenied,
		model.OrderStatusRejected,
		model.OrderStatusCanceled,
		model.OrderStatusExpired,
		model.OrderStatusFilled:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the order is working at a venue.
func (o *Order) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.Status {
	case model.OrderStatusAccepted,
		model.OrderStatusTriggered,
		model.OrderStatusPendingUpdate,
		model.OrderStatusPendingCancel,
		model.OrderStatusCancelRejected,
		model.OrderStatusModifyRejected,
		model.OrderStatusUpdated,
		model.OrderStatusPartiallyFilled:
		return true
	default:
		return false
	}
}

// IsEmulated reports whether the order is held by the emulator.
func (o *Order) IsEmulated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Status == model.OrderStatusEmulated
}

// Events returns a copy of the applied event log.
func (o *Order) Events() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Event, len(o.events))
	copy(out, o.events)
	return out
}

// LastEvent returns the most recently applied event.
func (o *Order) LastEvent() (Event, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.events) == 0 {
		return nil, false
	}
	return o.events[len(o.events)-1], true
}

// EventCount returns the number of applied events.
func (o *Order) EventCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}
