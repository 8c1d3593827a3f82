package exec

import (
	"errors"

	"github.com/shopspring/decimal"

	"tradenode/internal/model"
	"tradenode/internal/order"
)

var ErrUnknownVenueOrder = errors.New("venue does not know the order")

// ReportKind categorizes inbound venue reports.
type ReportKind uint8

const (
	ReportUnknown ReportKind = iota
	ReportAccepted
	ReportRejected
	ReportCanceled
	ReportCancelRejected
	ReportUpdated
	ReportModifyRejected
	ReportExpired
	ReportTriggered
	ReportFill
)

// Report is the single inbound event shape venues publish. Backtest venue
// simulators and live adapters use the same topics and the same shape.
type Report struct {
	model.EventHeader
	Kind          ReportKind
	ClientOrderID model.ClientOrderID
	VenueOrderID  model.VenueOrderID
	Reason        string

	// fill fields
	TradeID model.TradeID
	Side    model.OrderSide
	LastQty decimal.Decimal
	LastPx  decimal.Decimal

	// update confirmation fields
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	TriggerPrice decimal.Decimal
}

// Header returns the event header.
func (r Report) Header() model.EventHeader { return r.EventHeader }

// ModifyRequest carries the changed fields of a modify command. Zero fields
// keep their current value.
type ModifyRequest struct {
	ClientOrderID model.ClientOrderID
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	TriggerPrice  decimal.Decimal
}

// VenueSink accepts outbound commands and reports back asynchronously by
// publishing Reports on the venue topics.
type VenueSink interface {
	SubmitOrder(o *order.Order) error
	ModifyOrder(req ModifyRequest) error
	CancelOrder(id model.ClientOrderID) error
}
