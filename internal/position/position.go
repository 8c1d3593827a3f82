package position

import (
	"errors"

	"github.com/shopspring/decimal"

	"tradenode/internal/model"
	"tradenode/internal/order"
)

var (
	ErrPositionClosed = errors.New("position is closed")
	ErrZeroFill       = errors.New("fill quantity must be positive")
)

// Position aggregates fills into one flat-to-nonflat exposure cycle.
//
// Quantity is signed: positive long, negative short. Average price only
// recomputes when the position increases in its current direction; decreases
// realize PnL against the unchanged average.
type Position struct {
	ID           model.PositionID
	InstrumentID model.InstrumentID
	StrategyID   model.StrategyID
	Status       model.PositionStatus
	Quantity     decimal.Decimal
	AvgPxOpen    decimal.Decimal
	AvgPxClose   decimal.Decimal
	RealizedPnL  decimal.Decimal
	TsOpened     int64
	TsClosed     int64
	TsLast       int64

	closedQty decimal.Decimal
}

// Open starts a position from its opening fill.
func Open(fill order.Filled) (*Position, error) {
	p := &Position{
		ID:           fill.PositionID,
		InstrumentID: fill.InstrumentID,
		StrategyID:   fill.StrategyID,
		TsOpened:     fill.Header().TsEvent,
	}
	if p.ID == "" {
		p.ID = model.NewPositionID(fill.InstrumentID)
	}
	if _, err := p.ApplyFill(fill); err != nil {
		return nil, err
	}
	return p, nil
}

// Surplus is the signed quantity left over when a fill flips the position
// through flat; the caller opens a fresh position with it.
type Surplus struct {
	Quantity decimal.Decimal
	Side     model.OrderSide
	Price    decimal.Decimal
}

// ApplyFill folds one fill into the position. A fill larger than the open
// quantity in the opposite direction closes this position and returns the
// surplus for a new one.
func (p *Position) ApplyFill(fill order.Filled) (*Surplus, error) {
	if p.Status == model.PositionStatusClosed {
		return nil, ErrPositionClosed
	}
	if !fill.LastQty.IsPositive() {
		return nil, ErrZeroFill
	}
	signed := fill.LastQty
	if fill.Side == model.OrderSideSell {
		signed = signed.Neg()
	}
	oldQty := p.Quantity
	newQty := oldQty.Add(signed)
	p.TsLast = fill.Header().TsEvent

	switch {
	case oldQty.IsZero():
		p.open(newQty, fill.LastPx)
		return nil, nil
	case oldQty.Sign() == signed.Sign():
		// increase: weighted average entry
		total := oldQty.Abs().Mul(p.AvgPxOpen).Add(fill.LastQty.Mul(fill.LastPx))
		p.AvgPxOpen = total.Div(newQty.Abs())
		p.Quantity = newQty
		return nil, nil
	case newQty.Sign() == oldQty.Sign() || newQty.IsZero():
		// decrease within the same direction
		p.realize(fill.LastQty, fill.LastPx, oldQty.Sign())
		p.Quantity = newQty
		if newQty.IsZero() {
			p.close(fill.Header().TsEvent)
		}
		return nil, nil
	default:
		// flip: close the whole exposure, hand back the remainder
		closing := oldQty.Abs()
		p.realize(closing, fill.LastPx, oldQty.Sign())
		p.Quantity = decimal.Zero
		p.close(fill.Header().TsEvent)
		surplusQty := newQty.Abs()
		side := model.OrderSideBuy
		if newQty.IsNegative() {
			side = model.OrderSideSell
		}
		return &Surplus{Quantity: surplusQty, Side: side, Price: fill.LastPx}, nil
	}
}

func (p *Position) open(qty, px decimal.Decimal) {
	p.Quantity = qty
	p.AvgPxOpen = px
	if qty.IsPositive() {
		p.Status = model.PositionStatusLong
	} else {
		p.Status = model.PositionStatusShort
	}
}

// realize books PnL for a closed quantity against the open average price.
func (p *Position) realize(qty, px decimal.Decimal, direction int) {
	diff := px.Sub(p.AvgPxOpen)
	if direction < 0 {
		diff = diff.Neg()
	}
	p.RealizedPnL = p.RealizedPnL.Add(diff.Mul(qty))

	total := p.closedQty.Mul(p.AvgPxClose).Add(qty.Mul(px))
	p.closedQty = p.closedQty.Add(qty)
	if p.closedQty.IsPositive() {
		p.AvgPxClose = total.Div(p.closedQty)
	}
}

func (p *Position) close(tsNs int64) {
	p.Status = model.PositionStatusClosed
	p.TsClosed = tsNs
}

// IsClosed reports whether the cycle has ended.
func (p *Position) IsClosed() bool {
	return p.Status == model.PositionStatusClosed
}

// Side returns the current direction.
func (p *Position) Side() model.PositionStatus {
	return p.Status
}

// UnrealizedPnL marks the open quantity to the given price.
func (p *Position) UnrealizedPnL(price decimal.Decimal) decimal.Decimal {
	if p.Quantity.IsZero() {
		return decimal.Zero
	}
	return price.Sub(p.AvgPxOpen).Mul(p.Quantity)
}
