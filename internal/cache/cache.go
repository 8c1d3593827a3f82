package cache

import (
	"errors"
	"sync"

	"github.com/yanun0323/logs"

	"tradenode/internal/model"
	"tradenode/internal/order"
	"tradenode/internal/position"
)

var (
	ErrDuplicateOrder    = errors.New("order already cached")
	ErrUnknownOrder      = errors.New("order not found")
	ErrDuplicatePosition = errors.New("position already cached")
	ErrUnknownPosition   = errors.New("position not found")
)

// Cache is the single source of truth for order and position snapshots.
//
// The execution and portfolio engines are its sole writers; strategies and
// analytics only read. A configured Store mirrors every accepted state
// transition for persistence.
type Cache struct {
	mu sync.RWMutex

	orders       map[model.ClientOrderID]*order.Order
	positions    map[model.PositionID]*position.Position
	openPosition map[model.InstrumentID]model.PositionID

	lastQuote map[model.InstrumentID]model.QuoteTick
	lastTrade map[model.InstrumentID]model.TradeTick

	store *Store
}

// New creates an empty cache with no persistence attached.
func New() *Cache {
	return &Cache{
		orders:       make(map[model.ClientOrderID]*order.Order),
		positions:    make(map[model.PositionID]*position.Position),
		openPosition: make(map[model.InstrumentID]model.PositionID),
		lastQuote:    make(map[model.InstrumentID]model.QuoteTick),
		lastTrade:    make(map[model.InstrumentID]model.TradeTick),
	}
}

// WithStore attaches a persistence store.
func (c *Cache) WithStore(store *Store) *Cache {
	c.store = store
	return c
}

// AddOrder registers a newly created order.
func (c *Cache) AddOrder(o *order.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.orders[o.ClientOrderID]; ok {
		return ErrDuplicateOrder
	}
	c.orders[o.ClientOrderID] = o
	c.persistOrder(o)
	return nil
}

// UpdateOrder mirrors an accepted order transition into the store.
func (c *Cache) UpdateOrder(o *order.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.orders[o.ClientOrderID]; !ok {
		return ErrUnknownOrder
	}
	c.persistOrder(o)
	return nil
}

// Order returns the order for a client order ID.
func (c *Cache) Order(id model.ClientOrderID) (*order.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.orders[id]
	return o, ok
}

// OpenOrders returns orders not yet in a terminal state.
func (c *Cache) OpenOrders() []*order.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var open []*order.Order
	for _, o := range c.orders {
		if !o.IsClosed() {
			open = append(open, o)
		}
	}
	return open
}

// OrderCount returns the number of cached orders.
func (c *Cache) OrderCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.orders)
}

// AddPosition registers a newly opened position and indexes it as the open
// cycle for its instrument.
func (c *Cache) AddPosition(p *position.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.positions[p.ID]; ok {
		return ErrDuplicatePosition
	}
	c.positions[p.ID] = p
	c.openPosition[p.InstrumentID] = p.ID
	c.persistPosition(p)
	return nil
}

// UpdatePosition mirrors a position change; closing removes the open index.
func (c *Cache) UpdatePosition(p *position.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.positions[p.ID]; !ok {
		return ErrUnknownPosition
	}
	if p.IsClosed() && c.openPosition[p.InstrumentID] == p.ID {
		delete(c.openPosition, p.InstrumentID)
	}
	c.persistPosition(p)
	return nil
}

// Position returns a position by ID.
func (c *Cache) Position(id model.PositionID) (*position.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.positions[id]
	return p, ok
}

// OpenPosition returns the open cycle for an instrument, if any.
func (c *Cache) OpenPosition(instrument model.InstrumentID) (*position.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.openPosition[instrument]
	if !ok {
		return nil, false
	}
	p, ok := c.positions[id]
	return p, ok
}

// Positions returns every cached position.
func (c *Cache) Positions() []*position.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*position.Position, 0, len(c.positions))
	for _, p := range c.positions {
		out = append(out, p)
	}
	return out
}

// SetQuote stores the latest quote for an instrument.
func (c *Cache) SetQuote(quote model.QuoteTick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastQuote[quote.InstrumentID] = quote
}

// LastQuote returns the latest quote for an instrument.
func (c *Cache) LastQuote(instrument model.InstrumentID) (model.QuoteTick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quote, ok := c.lastQuote[instrument]
	return quote, ok
}

// SetTrade stores the latest trade for an instrument.
func (c *Cache) SetTrade(trade model.TradeTick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTrade[trade.InstrumentID] = trade
}

// LastTrade returns the latest trade for an instrument.
func (c *Cache) LastTrade(instrument model.InstrumentID) (model.TradeTick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	trade, ok := c.lastTrade[instrument]
	return trade, ok
}

func (c *Cache) persistOrder(o *order.Order) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveOrder(o); err != nil {
		logs.Warnf("cache: persist order %s failed: %v", o.ClientOrderID, err)
	}
}

func (c *Cache) persistPosition(p *position.Position) {
	if c.store == nil {
		return
	}
	if err := c.store.SavePosition(p); err != nil {
		logs.Warnf("cache: persist position %s failed: %v", p.ID, err)
	}
}
