package exec

import (
	"fmt"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"tradenode/internal/model"
	"tradenode/internal/order"
)

// GTDController cancels internally-managed GTD orders at their expire time.
// It arms one clock alert per order and guarantees the cancel is issued at
// most once: a terminal event before the expire time disarms the alert, and
// an alert that races a terminal event finds the order closed and does
// nothing. Arming happens on the first live lifecycle event, not only at
// acceptance, so an order that expires while still emulated or in flight to
// the venue is canceled on time too.
type GTDController struct {
	engine *Engine

	mu    sync.Mutex
	armed map[model.ClientOrderID]struct{}
	fired uint64
}

// NewGTDController creates the controller; Start attaches it to the bus.
func NewGTDController(engine *Engine) *GTDController {
	return &GTDController{
		engine: engine,
		armed:  make(map[model.ClientOrderID]struct{}),
	}
}

// Start subscribes the controller to the order lifecycle stream.
func (g *GTDController) Start() error {
	_, err := g.engine.bus.Subscribe(model.TopicOrderEventsAll, g.onOrderEvent, 0)
	return err
}

// Armed returns the number of orders with a pending expiry alert.
func (g *GTDController) Armed() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.armed)
}

// Fired returns the number of expiry cancels the controller has issued.
func (g *GTDController) Fired() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fired
}

func (g *GTDController) onOrderEvent(_ string, event model.Event) {
	oe, ok := event.(order.Event)
	if !ok {
		return
	}
	o, found := g.engine.cache.Order(oe.OrderID())
	if !found || !o.ManageGTDExpiry {
		return
	}

	switch event.(type) {
	case order.Emulated, order.Submitted, order.Accepted:
		g.arm(o)
	case order.Denied, order.Rejected, order.Canceled, order.Expired, order.Filled:
		if o.IsClosed() {
			g.disarm(o.ClientOrderID)
		}
	}
}

// arm schedules the expiry alert. Re-arming an already-armed order is a
// no-op; the alert from the first arm stands.
func (g *GTDController) arm(o *order.Order) {
	g.mu.Lock()
	if _, already := g.armed[o.ClientOrderID]; already {
		g.mu.Unlock()
		return
	}
	g.armed[o.ClientOrderID] = struct{}{}
	g.mu.Unlock()

	id := o.ClientOrderID
	at := time.Unix(0, o.ExpireTimeNs)
	err := g.engine.clock.SetAlert(g.alertName(id), at, func(model.TimeEvent) {
		g.cancelExpired(id)
	})
	if err != nil {
		logs.Errorf("gtd: arming order %s failed: %v", id, err)
		g.disarm(id)
	}
}

func (g *GTDController) disarm(id model.ClientOrderID) {
	g.mu.Lock()
	_, was := g.armed[id]
	delete(g.armed, id)
	g.mu.Unlock()
	if was {
		g.engine.clock.CancelAlert(g.alertName(id))
	}
}

// cancelExpired issues the internal cancel for an order whose alert fired.
func (g *GTDController) cancelExpired(id model.ClientOrderID) {
	g.mu.Lock()
	if _, still := g.armed[id]; !still {
		g.mu.Unlock()
		return
	}
	delete(g.armed, id)
	g.fired++
	g.mu.Unlock()

	o, found := g.engine.cache.Order(id)
	if !found || o.IsClosed() {
		return
	}
	if err := g.engine.Cancel(id); err != nil {
		logs.Warnf("gtd: canceling expired order %s failed: %v", id, err)
	}
}

func (g *GTDController) alertName(id model.ClientOrderID) string {
	return fmt.Sprintf("gtd-%s", id)
}
