package exec

import (
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"tradenode/internal/model"
	"tradenode/internal/order"
)

// Emulator holds trigger-bearing orders locally and releases them into the
// rest of the pipeline when their market condition is met. The venue never
// sees an order while it is held.
type Emulator struct {
	engine *Engine

	mu   sync.Mutex
	held map[model.ClientOrderID]*order.Order
}

func newEmulator(engine *Engine) *Emulator {
	return &Emulator{
		engine: engine,
		held:   make(map[model.ClientOrderID]*order.Order),
	}
}

// hold parks an already-EMULATED order until a tick satisfies its trigger.
func (em *Emulator) hold(o *order.Order) {
	em.mu.Lock()
	em.held[o.ClientOrderID] = o
	em.mu.Unlock()
	logs.Infof("emulator: holding order %s trigger=%s at %s",
		o.ClientOrderID, o.EmulationTrigger, em.triggerPrice(o))
}

// drop removes a held order without releasing it.
func (em *Emulator) drop(id model.ClientOrderID) {
	em.mu.Lock()
	delete(em.held, id)
	em.mu.Unlock()
}

// Held returns the number of orders currently parked.
func (em *Emulator) Held() int {
	em.mu.Lock()
	defer em.mu.Unlock()
	return len(em.held)
}

// OnQuote checks bid/ask-triggered holds against a quote.
func (em *Emulator) OnQuote(quote model.QuoteTick) {
	for _, o := range em.candidates(quote.InstrumentID, model.TriggerBidAsk) {
		ref := quote.AskPrice
		if o.Side == model.OrderSideSell {
			ref = quote.BidPrice
		}
		em.maybeRelease(o, ref)
	}
}

// OnTrade checks last-trade-triggered holds against a trade print.
func (em *Emulator) OnTrade(trade model.TradeTick) {
	for _, o := range em.candidates(trade.InstrumentID, model.TriggerLastTrade) {
		em.maybeRelease(o, trade.Price)
	}
}

// candidates snapshots held orders for an instrument whose trigger watches
// the given stream. TriggerDefault watches both streams.
func (em *Emulator) candidates(instrument model.InstrumentID, stream model.TriggerType) []*order.Order {
	em.mu.Lock()
	defer em.mu.Unlock()
	var out []*order.Order
	for _, o := range em.held {
		if o.InstrumentID != instrument {
			continue
		}
		if o.EmulationTrigger != stream && o.EmulationTrigger != model.TriggerDefault {
			continue
		}
		out = append(out, o)
	}
	return out
}

// maybeRelease applies the stop-style condition: a buy releases when the
// reference price rises to the trigger, a sell when it falls to it.
func (em *Emulator) maybeRelease(o *order.Order, ref decimal.Decimal) {
	trigger := em.triggerPrice(o)
	if !trigger.IsPositive() {
		return
	}
	hit := false
	if o.Side == model.OrderSideBuy {
		hit = ref.GreaterThanOrEqual(trigger)
	} else {
		hit = ref.LessThanOrEqual(trigger)
	}
	if !hit {
		return
	}

	em.mu.Lock()
	if _, still := em.held[o.ClientOrderID]; !still {
		em.mu.Unlock()
		return
	}
	delete(em.held, o.ClientOrderID)
	em.mu.Unlock()

	if err := em.engine.release(o, trigger); err != nil {
		logs.Warnf("emulator: release of order %s failed: %v", o.ClientOrderID, err)
	}
}

func (em *Emulator) triggerPrice(o *order.Order) decimal.Decimal {
	if o.TriggerPrice.IsPositive() {
		return o.TriggerPrice
	}
	return o.Price
}
