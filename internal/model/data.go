package model

import "github.com/shopspring/decimal"

// QuoteTick is a top-of-book update for an instrument.
type QuoteTick struct {
	EventHeader
	InstrumentID InstrumentID
	BidPrice     decimal.Decimal
	AskPrice     decimal.Decimal
	BidSize      decimal.Decimal
	AskSize      decimal.Decimal
}

// Header returns the event header.
func (t QuoteTick) Header() EventHeader { return t.EventHeader }

// Mid returns the quote midpoint.
func (t QuoteTick) Mid() decimal.Decimal {
	two := decimal.NewFromInt(2)
	return t.BidPrice.Add(t.AskPrice).Div(two)
}

// TradeTick is a single executed trade on an instrument.
type TradeTick struct {
	EventHeader
	InstrumentID  InstrumentID
	Price         decimal.Decimal
	Size          decimal.Decimal
	AggressorSide OrderSide
	TradeID       TradeID
}

// Header returns the event header.
func (t TradeTick) Header() EventHeader { return t.EventHeader }
