package exec

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"tradenode/internal/clock"
	"tradenode/internal/model"
	"tradenode/internal/order"
)

const (
	// AlgoTWAP is the registration ID of the time-weighted slicer.
	AlgoTWAP = "TWAP"

	twapDefaultSlices   = 4
	twapDefaultInterval = time.Second
)

// TWAP slices a parent order into equal child orders submitted on a timer.
// Child fills aggregate back into the parent, so the parent reaches FILLED
// exactly when its last child does.
//
// Parameters (all optional):
//
//	slices     number of child orders, default 4
//	intervalMs gap between children in milliseconds, default 1000
type TWAP struct {
	engine *Engine

	mu      sync.Mutex
	parents map[model.ClientOrderID]*twapState
}

type twapState struct {
	parent    *order.Order
	sliceQty  decimal.Decimal
	remaining int
	spawned   int
	children  map[model.ClientOrderID]struct{}
}

// NewTWAP creates an unbound TWAP algorithm.
func NewTWAP() *TWAP {
	return &TWAP{parents: make(map[model.ClientOrderID]*twapState)}
}

// ID returns the algorithm's registration ID.
func (t *TWAP) ID() string { return AlgoTWAP }

// Bind attaches the algorithm to its engine and starts watching child fills.
func (t *TWAP) Bind(engine *Engine) {
	t.engine = engine
	if _, err := engine.bus.Subscribe(model.TopicOrderEventsAll, t.onOrderEvent, 0); err != nil {
		logs.Errorf("twap: subscribe failed: %v", err)
	}
}

// Start begins slicing a parent order. The parent moves to SUBMITTED but
// never reaches a venue itself; only its children do.
func (t *TWAP) Start(parent *order.Order) error {
	slices, interval, err := t.params(parent.ExecAlgorithmParams)
	if err != nil {
		t.engine.applyAndPublish(parent, order.Denied{
			Core:   t.engine.core(parent),
			Reason: err.Error(),
		})
		return err
	}

	sliceQty := parent.Quantity.Div(decimal.NewFromInt(int64(slices)))
	if !sliceQty.IsPositive() {
		err := fmt.Errorf("twap: %d slices of %s leave nothing per child", slices, parent.Quantity)
		t.engine.applyAndPublish(parent, order.Denied{
			Core:   t.engine.core(parent),
			Reason: err.Error(),
		})
		return err
	}

	if err := t.engine.applyAndPublish(parent, order.Submitted{Core: t.engine.core(parent)}); err != nil {
		return err
	}

	t.mu.Lock()
	t.parents[parent.ClientOrderID] = &twapState{
		parent:    parent,
		sliceQty:  sliceQty,
		remaining: slices,
		children:  make(map[model.ClientOrderID]struct{}),
	}
	t.mu.Unlock()

	// first child goes out immediately, the rest ride the timer
	t.spawnChild(parent.ClientOrderID)
	if slices > 1 {
		return t.engine.clock.SetTimer(clock.TimerSpec{
			Name:     t.timerName(parent.ClientOrderID),
			Interval: interval,
			Repeat:   slices - 1,
		}, func(model.TimeEvent) {
			t.spawnChild(parent.ClientOrderID)
		})
	}
	return nil
}

// Cancel stops slicing a parent; already-working children are canceled
// through the engine.
func (t *TWAP) Cancel(parentID model.ClientOrderID) {
	t.mu.Lock()
	state, ok := t.parents[parentID]
	if ok {
		delete(t.parents, parentID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	t.engine.clock.CancelTimer(t.timerName(parentID))
	for childID := range state.children {
		if child, found := t.engine.cache.Order(childID); found && !child.IsClosed() {
			if err := t.engine.Cancel(childID); err != nil {
				logs.Warnf("twap: cancel child %s failed: %v", childID, err)
			}
		}
	}
}

func (t *TWAP) spawnChild(parentID model.ClientOrderID) {
	t.mu.Lock()
	state, ok := t.parents[parentID]
	if !ok || state.remaining == 0 || state.parent.IsClosed() {
		t.mu.Unlock()
		return
	}
	state.remaining--
	state.spawned++
	qty := state.sliceQty
	if state.remaining == 0 {
		// last child takes the rounding remainder
		already := state.sliceQty.Mul(decimal.NewFromInt(int64(state.spawned - 1)))
		qty = state.parent.Quantity.Sub(already)
	}
	childID := model.ClientOrderID(fmt.Sprintf("%s-C%d", parentID, state.spawned))
	state.children[childID] = struct{}{}
	parent := state.parent
	t.mu.Unlock()

	cfg := order.Config{
		ClientOrderID: childID,
		InstrumentID:  parent.InstrumentID,
		StrategyID:    parent.StrategyID,
		Side:          parent.Side,
		Type:          model.OrderTypeMarket,
		Quantity:      qty,
		TimeInForce:   model.TimeInForceIOC,
		ParentOrderID: parentID,
	}
	if parent.Type == model.OrderTypeLimit {
		cfg.Type = model.OrderTypeLimit
		cfg.Price = parent.Price
		cfg.TimeInForce = parent.TimeInForce
		cfg.ExpireTimeNs = parent.ExpireTimeNs
	}
	if err := t.engine.Submit(cfg); err != nil {
		logs.Warnf("twap: child %s submit failed: %v", childID, err)
	}
}

// onOrderEvent folds child fills into the parent.
func (t *TWAP) onOrderEvent(_ string, event model.Event) {
	fill, ok := event.(order.Filled)
	if !ok {
		return
	}
	child, found := t.engine.cache.Order(fill.OrderID())
	if !found || child.ParentOrderID == "" {
		return
	}

	t.mu.Lock()
	state, tracked := t.parents[child.ParentOrderID]
	if tracked {
		_, tracked = state.children[fill.OrderID()]
	}
	t.mu.Unlock()
	if !tracked {
		return
	}

	parentFill := order.Filled{
		Core:         t.engine.core(state.parent),
		VenueOrderID: fill.VenueOrderID,
		TradeID:      fill.TradeID,
		PositionID:   fill.PositionID,
		Side:         fill.Side,
		LastQty:      fill.LastQty,
		LastPx:       fill.LastPx,
	}
	if err := t.engine.applyAndPublish(state.parent, parentFill); err != nil {
		return
	}
	if state.parent.IsClosed() {
		t.mu.Lock()
		delete(t.parents, child.ParentOrderID)
		t.mu.Unlock()
		t.engine.clock.CancelTimer(t.timerName(child.ParentOrderID))
	}
}

func (t *TWAP) params(params map[string]string) (slices int, interval time.Duration, err error) {
	slices = twapDefaultSlices
	interval = twapDefaultInterval
	if raw, ok := params["slices"]; ok {
		n, perr := strconv.Atoi(raw)
		if perr != nil || n <= 0 {
			return 0, 0, fmt.Errorf("twap: bad slices %q", raw)
		}
		slices = n
	}
	if raw, ok := params["intervalMs"]; ok {
		ms, perr := strconv.Atoi(raw)
		if perr != nil || ms <= 0 {
			return 0, 0, fmt.Errorf("twap: bad intervalMs %q", raw)
		}
		interval = time.Duration(ms) * time.Millisecond
	}
	return slices, interval, nil
}

func (t *TWAP) timerName(parentID model.ClientOrderID) string {
	return fmt.Sprintf("twap-%s", parentID)
}
