package exec

import (
	"github.com/yanun0323/logs"

	"tradenode/internal/bus"
	"tradenode/internal/cache"
	"tradenode/internal/clock"
	"tradenode/internal/model"
	"tradenode/internal/order"
	"tradenode/internal/position"
)

// PortfolioEngine maintains position cycles from the fill stream. It is the
// cache's only position writer.
//
// Fills on algorithm parents are synthetic aggregates of their children's
// fills; the portfolio skips them so exposure is counted once.
type PortfolioEngine struct {
	bus   *bus.MessageBus
	clock clock.Clock
	cache *cache.Cache
}

// NewPortfolioEngine creates the portfolio engine.
func NewPortfolioEngine(messageBus *bus.MessageBus, clk clock.Clock, c *cache.Cache) *PortfolioEngine {
	return &PortfolioEngine{bus: messageBus, clock: clk, cache: c}
}

// Start subscribes to the order lifecycle stream. Priority above the default
// puts position bookkeeping before strategies see the same fill.
func (pe *PortfolioEngine) Start() error {
	_, err := pe.bus.Subscribe(model.TopicOrderEventsAll, pe.onOrderEvent, 10)
	return err
}

func (pe *PortfolioEngine) onOrderEvent(_ string, event model.Event) {
	fill, ok := event.(order.Filled)
	if !ok {
		return
	}
	if o, found := pe.cache.Order(fill.OrderID()); found && o.ExecAlgorithmID != "" {
		return
	}
	pe.applyFill(fill)
}

func (pe *PortfolioEngine) applyFill(fill order.Filled) {
	open, exists := pe.cache.OpenPosition(fill.InstrumentID)
	if !exists {
		pe.openPosition(fill)
		return
	}

	surplus, err := open.ApplyFill(fill)
	if err != nil {
		logs.Errorf("portfolio: fill %s on position %s: %v", fill.TradeID, open.ID, err)
		return
	}
	if err := pe.cache.UpdatePosition(open); err != nil {
		logs.Warnf("portfolio: cache update for position %s failed: %v", open.ID, err)
	}

	if open.IsClosed() {
		pe.publish(open, position.Closed{Core: pe.core(open), AvgPxClose: open.AvgPxClose})
	} else {
		pe.publish(open, position.Changed{Core: pe.core(open)})
	}

	// a flip closed the old cycle; the remainder opens a fresh one under a
	// new identity
	if surplus != nil {
		flipFill := fill
		flipFill.PositionID = model.NewPositionID(fill.InstrumentID)
		flipFill.Side = surplus.Side
		flipFill.LastQty = surplus.Quantity
		flipFill.LastPx = surplus.Price
		pe.openPosition(flipFill)
	}
}

func (pe *PortfolioEngine) openPosition(fill order.Filled) {
	p, err := position.Open(fill)
	if err != nil {
		logs.Errorf("portfolio: opening position from fill %s: %v", fill.TradeID, err)
		return
	}
	if err := pe.cache.AddPosition(p); err != nil {
		logs.Warnf("portfolio: cache add for position %s failed: %v", p.ID, err)
	}
	pe.publish(p, position.Opened{Core: pe.core(p)})
}

func (pe *PortfolioEngine) publish(p *position.Position, event position.Event) {
	pe.bus.Publish(model.TopicPositionEvents(p.ID), event)
}

func (pe *PortfolioEngine) core(p *position.Position) position.Core {
	now := pe.clock.TimestampNs()
	return position.Core{
		EventHeader:  model.NewHeader(model.EventPosition, pe.bus.NextSeq(), now, now),
		ID:           p.ID,
		InstrumentID: p.InstrumentID,
		StrategyID:   p.StrategyID,
		Quantity:     p.Quantity,
		AvgPxOpen:    p.AvgPxOpen,
		RealizedPnL:  p.RealizedPnL,
	}
}
