package position

import (
	"github.com/shopspring/decimal"

	"tradenode/internal/model"
)

// Event is the closed set of position lifecycle events.
type Event interface {
	model.Event
	PositionID() model.PositionID
	positionEvent()
}

// Core is the shared part of every position event.
type Core struct {
	model.EventHeader
	ID           model.PositionID
	InstrumentID model.InstrumentID
	StrategyID   model.StrategyID
	Quantity     decimal.Decimal
	AvgPxOpen    decimal.Decimal
	RealizedPnL  decimal.Decimal
}

// Header returns the event header.
func (c Core) Header() model.EventHeader { return c.EventHeader }

// PositionID returns the position identifier.
func (c Core) PositionID() model.PositionID { return c.ID }

// Opened marks a new flat-to-nonflat cycle.
type Opened struct {
	Core
}

// Changed marks a quantity change on an open position.
type Changed struct {
	Core
}

// Closed marks the cycle reaching zero net quantity.
type Closed struct {
	Core
	AvgPxClose decimal.Decimal
}

func (Opened) positionEvent()  {}
func (Changed) positionEvent() {}
func (Closed) positionEvent()  {}
