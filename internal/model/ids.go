package model

import (
	"fmt"

	"github.com/google/uuid"
)

// ClientOrderID identifies an order within this process.
type ClientOrderID string

// VenueOrderID identifies an order at the venue.
type VenueOrderID string

// PositionID identifies one flat-to-nonflat exposure cycle.
type PositionID string

// InstrumentID is the compact identifier for a tradable instrument.
type InstrumentID uint32

// VenueID is the compact identifier for a venue.
type VenueID uint16

// TradeID identifies a single fill at the venue.
type TradeID string

// StrategyID identifies the strategy that owns an order.
type StrategyID uint32

// NewPositionID mints a position identifier for an instrument cycle.
func NewPositionID(instrument InstrumentID) PositionID {
	return PositionID(fmt.Sprintf("P-%d-%s", instrument, uuid.NewString()[:8]))
}

// NewCorrelationID mints a request/response correlation identifier.
func NewCorrelationID() string {
	return uuid.NewString()
}
