package order

import (
	"github.com/shopspring/decimal"

	"tradenode/internal/model"
)

// Event is the closed set of order lifecycle events.
type Event interface {
	model.Event
	OrderID() model.ClientOrderID
	orderEvent()
}

// Core is the shared part of every order event.
type Core struct {
	model.EventHeader
	ClientOrderID model.ClientOrderID
	InstrumentID  model.InstrumentID
	StrategyID    model.StrategyID
}

// Header returns the event header.
func (c Core) Header() model.EventHeader { return c.EventHeader }

// OrderID returns the client order ID.
func (c Core) OrderID() model.ClientOrderID { return c.ClientOrderID }

// Initialized marks order creation from a validated submit command.
type Initialized struct {
	Core
}

// Denied marks local pre-trade validation failure; the order never reaches a
// venue.
type Denied struct {
	Core
	Reason string
}

// Emulated marks an order held locally until its trigger condition is met.
type Emulated struct {
	Core
	Trigger model.TriggerType
}

// Released marks an emulated order re-entering the pipeline.
type Released struct {
	Core
	TriggerPrice decimal.Decimal
}

// Submitted marks the order forwarded to a venue sink.
type Submitted struct {
	Core
}

// Rejected is the venue declining an order.
type Rejected struct {
	Core
	Reason string
}

// Accepted is the venue acknowledging an order as working.
type Accepted struct {
	Core
	VenueOrderID model.VenueOrderID
}

// PendingUpdate marks a modify command in flight to the venue.
type PendingUpdate struct {
	Core
}

// PendingCancel marks a cancel command in flight to the venue.
type PendingCancel struct {
	Core
}

// Triggered marks a stop order's trigger condition reached at the venue.
type Triggered struct {
	Core
}

// Canceled is the terminal cancel confirmation.
type Canceled struct {
	Core
}

// Expired is the terminal venue-reported time-in-force expiry.
type Expired struct {
	Core
}

// ModifyRejected is the venue declining a modify while the order stays open.
type ModifyRejected struct {
	Core
	Reason string
}

// CancelRejected is the venue declining a cancel while the order stays open.
type CancelRejected struct {
	Core
	Reason string
}

// Updated is the venue confirming a modify.
type Updated struct {
	Core
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	TriggerPrice decimal.Decimal
}

// Filled is a partial or full fill.
type Filled struct {
	Core
	VenueOrderID model.VenueOrderID
	TradeID      model.TradeID
	PositionID   model.PositionID
	Side         model.OrderSide
	LastQty      decimal.Decimal
	LastPx       decimal.Decimal
}

func (Initialized) orderEvent()    {}
func (Denied) orderEvent()         {}
func (Emulated) orderEvent()       {}
func (Released) orderEvent()       {}
func (Submitted) orderEvent()      {}
func (Rejected) orderEvent()       {}
func (Accepted) orderEvent()       {}
func (PendingUpdate) orderEvent()  {}
func (PendingCancel) orderEvent()  {}
func (Triggered) orderEvent()      {}
func (Canceled) orderEvent()       {}
func (Expired) orderEvent()        {}
func (ModifyRejected) orderEvent() {}
func (CancelRejected) orderEvent() {}
func (Updated) orderEvent()        {}
func (Filled) orderEvent()         {}
