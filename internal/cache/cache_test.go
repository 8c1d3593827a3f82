package cache

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tradenode/internal/model"
	"tradenode/internal/order"
	"tradenode/internal/position"
)

func newOrder(id model.ClientOrderID) *order.Order {
	return order.New(order.Config{
		ClientOrderID: id,
		InstrumentID:  1,
		Side:          model.OrderSideBuy,
		Type:          model.OrderTypeLimit,
		Quantity:      decimal.NewFromInt(1),
		Price:         decimal.NewFromInt(100),
		TimeInForce:   model.TimeInForceGTC,
	}, 1)
}

func newPosition(id model.PositionID, instrument model.InstrumentID) *position.Position {
	p, err := position.Open(order.Filled{
		Core: order.Core{
			EventHeader:  model.NewHeader(model.EventOrder, 1, 1, 1),
			InstrumentID: instrument,
		},
		PositionID: id,
		Side:       model.OrderSideBuy,
		LastQty:    decimal.NewFromInt(2),
		LastPx:     decimal.NewFromInt(100),
	})
	if err != nil {
		panic(err)
	}
	return p
}

func TestOrderLifecycleInCache(t *testing.T) {
	c := New()
	o := newOrder("O-1")
	if err := c.AddOrder(o); err != nil {
		t.Fatal(err)
	}
	if err := c.AddOrder(o); !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("got %v want %v", err, ErrDuplicateOrder)
	}
	if err := c.UpdateOrder(newOrder("O-2")); !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("got %v want %v", err, ErrUnknownOrder)
	}

	got, ok := c.Order("O-1")
	if !ok || got != o {
		t.Fatal("order lookup failed")
	}
	if len(c.OpenOrders()) != 1 {
		t.Fatalf("open orders: %d", len(c.OpenOrders()))
	}
	if c.OrderCount() != 1 {
		t.Fatalf("order count: %d", c.OrderCount())
	}
}

func TestOpenPositionIndex(t *testing.T) {
	c := New()
	p := newPosition("P-1", 1)
	if err := c.AddPosition(p); err != nil {
		t.Fatal(err)
	}
	if err := c.AddPosition(p); !errors.Is(err, ErrDuplicatePosition) {
		t.Fatalf("got %v want %v", err, ErrDuplicatePosition)
	}

	open, ok := c.OpenPosition(1)
	if !ok || open.ID != "P-1" {
		t.Fatal("open position lookup failed")
	}

	// closing the cycle clears the open index
	if _, err := p.ApplyFill(order.Filled{
		Core: order.Core{
			EventHeader:  model.NewHeader(model.EventOrder, 2, 2, 2),
			InstrumentID: 1,
		},
		Side:    model.OrderSideSell,
		LastQty: decimal.NewFromInt(2),
		LastPx:  decimal.NewFromInt(101),
	}); err != nil {
		t.Fatal(err)
	}
	if err := c.UpdatePosition(p); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.OpenPosition(1); ok {
		t.Fatal("closed position still indexed as open")
	}
	if _, ok := c.Position("P-1"); !ok {
		t.Fatal("closed position dropped from cache")
	}
}

func TestLastTicks(t *testing.T) {
	c := New()
	if _, ok := c.LastQuote(1); ok {
		t.Fatal("quote before any tick")
	}
	quote := model.QuoteTick{
		EventHeader:  model.NewHeader(model.EventQuoteTick, 1, 1, 1),
		InstrumentID: 1,
		BidPrice:     decimal.NewFromInt(99),
		AskPrice:     decimal.NewFromInt(101),
	}
	c.SetQuote(quote)
	got, ok := c.LastQuote(1)
	if !ok || !got.Mid().Equal(decimal.NewFromInt(100)) {
		t.Fatalf("last quote mismatch: %+v", got)
	}

	trade := model.TradeTick{
		EventHeader:  model.NewHeader(model.EventTradeTick, 2, 2, 2),
		InstrumentID: 1,
		Price:        decimal.NewFromInt(100),
		Size:         decimal.NewFromInt(1),
	}
	c.SetTrade(trade)
	if last, ok := c.LastTrade(1); !ok || !last.Price.Equal(trade.Price) {
		t.Fatalf("last trade mismatch: %+v", last)
	}
}
