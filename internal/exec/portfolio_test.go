package exec

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tradenode/internal/model"
	"tradenode/internal/order"
	"tradenode/internal/position"
	"tradenode/internal/risk"
)

func marketOrder(id model.ClientOrderID, side model.OrderSide, qty int64) order.Config {
	return order.Config{
		ClientOrderID: id,
		InstrumentID:  testInstrument,
		StrategyID:    1,
		Side:          side,
		Type:          model.OrderTypeMarket,
		Quantity:      decimal.NewFromInt(qty),
		TimeInForce:   model.TimeInForceIOC,
	}
}

func TestFlipOpensFreshCycle(t *testing.T) {
	s := newStack(t, risk.Config{}, SimVenueConfig{})
	s.feedTrade(t, 100, 5, time.Second)

	require.NoError(t, s.engine.Submit(marketOrder("O-long", model.OrderSideBuy, 10)))
	first, ok := s.cache.OpenPosition(testInstrument)
	require.True(t, ok)
	require.Equal(t, model.PositionStatusLong, first.Status)

	s.feedTrade(t, 120, 5, 2*time.Second)
	require.NoError(t, s.engine.Submit(marketOrder("O-flip", model.OrderSideSell, 15)))

	// the old cycle closed with the whole long realized
	require.True(t, first.IsClosed())
	require.True(t, first.RealizedPnL.Equal(decimal.NewFromInt(200)),
		"realized %s", first.RealizedPnL)

	// the surplus opened a short under a new identity
	second, ok := s.cache.OpenPosition(testInstrument)
	require.True(t, ok)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, model.PositionStatusShort, second.Status)
	require.True(t, second.Quantity.Equal(decimal.NewFromInt(-5)))
	require.True(t, second.RealizedPnL.IsZero())
}

func TestPositionEventsPublished(t *testing.T) {
	s := newStack(t, risk.Config{}, SimVenueConfig{})
	s.feedTrade(t, 100, 5, time.Second)

	var events []position.Event
	_, err := s.bus.Subscribe(model.TopicPositionsAll, func(_ string, event model.Event) {
		if pe, ok := event.(position.Event); ok {
			events = append(events, pe)
		}
	}, 0)
	require.NoError(t, err)

	require.NoError(t, s.engine.Submit(marketOrder("O-1", model.OrderSideBuy, 4)))
	require.NoError(t, s.engine.Submit(marketOrder("O-2", model.OrderSideBuy, 2)))
	require.NoError(t, s.engine.Submit(marketOrder("O-3", model.OrderSideSell, 6)))

	require.Len(t, events, 3)
	_, isOpened := events[0].(position.Opened)
	_, isChanged := events[1].(position.Changed)
	closed, isClosed := events[2].(position.Closed)
	require.True(t, isOpened && isChanged && isClosed)
	require.True(t, closed.Quantity.IsZero())
	require.True(t, closed.AvgPxClose.Equal(decimal.NewFromInt(100)))
}

func TestRealizedPnLMatchesCashFlow(t *testing.T) {
	s := newStack(t, risk.Config{}, SimVenueConfig{})

	s.feedTrade(t, 100, 5, time.Second)
	require.NoError(t, s.engine.Submit(marketOrder("O-1", model.OrderSideBuy, 10)))

	s.feedTrade(t, 106, 5, 2*time.Second)
	require.NoError(t, s.engine.Submit(marketOrder("O-2", model.OrderSideBuy, 5)))

	s.feedTrade(t, 110, 5, 3*time.Second)
	require.NoError(t, s.engine.Submit(marketOrder("O-3", model.OrderSideSell, 8)))

	s.feedTrade(t, 104, 5, 4*time.Second)
	require.NoError(t, s.engine.Submit(marketOrder("O-4", model.OrderSideSell, 7)))

	positions := s.cache.Positions()
	require.Len(t, positions, 1)
	p := positions[0]
	require.True(t, p.IsClosed())
	// proceeds (8*110 + 7*104) minus cost (10*100 + 5*106)
	require.True(t, p.RealizedPnL.Equal(decimal.NewFromInt(78)),
		"realized %s", p.RealizedPnL)
}
