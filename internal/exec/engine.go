package exec

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"tradenode/internal/bus"
	"tradenode/internal/cache"
	"tradenode/internal/clock"
	"tradenode/internal/model"
	"tradenode/internal/obs"
	"tradenode/internal/order"
	"tradenode/internal/risk"
)

var (
	ErrOrderClosed      = errors.New("order already in a terminal state")
	ErrUnknownAlgorithm = errors.New("execution algorithm not registered")
	ErrNoVenue          = errors.New("no venue sink configured")
)

// Algorithm slices a parent order into child orders it submits back through
// the engine. Bind is called once at registration.
type Algorithm interface {
	ID() string
	Bind(engine *Engine)
	Start(parent *order.Order) error
}

// Options selects the optional stages of the routing pipeline.
type Options struct {
	EnableEmulator bool
	Algorithms     []Algorithm
	Metrics        *obs.Metrics
}

// Engine owns the order lifecycle. Every submit flows through the same
// pipeline: emulator (when the order carries an emulation trigger), execution
// algorithm (when one is named), then the risk gate, then the venue sink.
// The risk gate is never bypassed.
type Engine struct {
	bus   *bus.MessageBus
	clock clock.Clock
	cache *cache.Cache
	gate  *risk.Gate
	venue VenueSink

	emulator   *Emulator
	algorithms map[string]Algorithm
	metrics    *obs.Metrics

	subs []bus.Subscription
}

// NewEngine wires the routing pipeline around a venue sink.
func NewEngine(messageBus *bus.MessageBus, clk clock.Clock, c *cache.Cache,
	gate *risk.Gate, venue VenueSink, opts Options) *Engine {

	e := &Engine{
		bus:        messageBus,
		clock:      clk,
		cache:      c,
		gate:       gate,
		venue:      venue,
		algorithms: make(map[string]Algorithm),
		metrics:    opts.Metrics,
	}
	if opts.EnableEmulator {
		e.emulator = newEmulator(e)
	}
	for _, algo := range opts.Algorithms {
		algo.Bind(e)
		e.algorithms[algo.ID()] = algo
	}
	return e
}

// Start subscribes the engine to venue reports and market data. Data ticks
// refresh the cache's last-tick view and feed the emulator's trigger watch.
func (e *Engine) Start() error {
	for _, reg := range []struct {
		pattern string
		handler bus.Handler
	}{
		{model.TopicVenueReportsAll, e.onReport},
		{model.TopicQuotesAll, e.onQuote},
		{model.TopicTradesAll, e.onTrade},
	} {
		sub, err := e.bus.Subscribe(reg.pattern, reg.handler, 0)
		if err != nil {
			return err
		}
		e.subs = append(e.subs, sub)
	}
	return nil
}

// Stop removes the engine's subscriptions.
func (e *Engine) Stop() {
	for _, sub := range e.subs {
		e.bus.Unsubscribe(sub)
	}
	e.subs = nil
}

func (e *Engine) onQuote(_ string, event model.Event) {
	quote, ok := event.(model.QuoteTick)
	if !ok {
		return
	}
	e.cache.SetQuote(quote)
	if e.emulator != nil {
		e.emulator.OnQuote(quote)
	}
}

func (e *Engine) onTrade(_ string, event model.Event) {
	trade, ok := event.(model.TradeTick)
	if !ok {
		return
	}
	e.cache.SetTrade(trade)
	if e.emulator != nil {
		e.emulator.OnTrade(trade)
	}
}

// Cache exposes the engine's snapshot cache.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// Clock exposes the engine's clock, shared with timers and algorithms.
func (e *Engine) Clock() clock.Clock { return e.clock }

// Submit validates a submit command and routes the resulting order through
// the pipeline. Invalid configs produce a DENIED order, not an error-free
// silence: the order is cached and its denial published like any other
// lifecycle event.
func (e *Engine) Submit(cfg order.Config) error {
	now := e.clock.TimestampNs()
	o := order.New(cfg, now)
	if err := e.cache.AddOrder(o); err != nil {
		return err
	}
	e.publishOrderEvent(o, order.Initialized{Core: e.core(o)})

	if err := cfg.Validate(); err != nil {
		e.applyAndPublish(o, order.Denied{Core: e.core(o), Reason: err.Error()})
		return err
	}

	if cfg.ExecAlgorithmID != "" {
		if _, ok := e.algorithms[cfg.ExecAlgorithmID]; !ok {
			err := fmt.Errorf("%s: %w", cfg.ExecAlgorithmID, ErrUnknownAlgorithm)
			e.applyAndPublish(o, order.Denied{Core: e.core(o), Reason: err.Error()})
			return err
		}
	}

	if cfg.EmulationTrigger != model.TriggerNone && e.emulator != nil {
		e.applyAndPublish(o, order.Emulated{Core: e.core(o), Trigger: cfg.EmulationTrigger})
		e.emulator.hold(o)
		return nil
	}

	if cfg.ExecAlgorithmID != "" {
		return e.algorithms[cfg.ExecAlgorithmID].Start(o)
	}

	return e.route(o)
}

// release re-enters a formerly emulated order into the pipeline: into its
// execution algorithm when one is named, straight to the risk gate
// otherwise. The risk gate runs at release time, not at the original submit.
func (e *Engine) release(o *order.Order, triggerPrice decimal.Decimal) error {
	if err := e.applyAndPublish(o, order.Released{Core: e.core(o), TriggerPrice: triggerPrice}); err != nil {
		return err
	}
	if o.ExecAlgorithmID != "" {
		if algo, ok := e.algorithms[o.ExecAlgorithmID]; ok {
			return algo.Start(o)
		}
	}
	return e.route(o)
}

// route runs the mandatory tail of the pipeline: risk gate, then venue.
func (e *Engine) route(o *order.Order) error {
	if e.venue == nil {
		e.applyAndPublish(o, order.Denied{Core: e.core(o), Reason: ErrNoVenue.Error()})
		return ErrNoVenue
	}

	decision := e.gate.Evaluate(o, e.stateView(o.InstrumentID))
	if !decision.Allowed {
		e.metrics.IncDenyReason(decision.Reason)
		reason := fmt.Sprintf("risk: %s", decision.Reason)
		e.applyAndPublish(o, order.Denied{Core: e.core(o), Reason: reason})
		return nil
	}

	if err := e.applyAndPublish(o, order.Submitted{Core: e.core(o)}); err != nil {
		return err
	}
	return e.venue.SubmitOrder(o)
}

// Modify sends a modify command for an open order. The order moves to
// PENDING_UPDATE until the venue confirms or rejects.
func (e *Engine) Modify(req ModifyRequest) error {
	o, ok := e.cache.Order(req.ClientOrderID)
	if !ok {
		return cache.ErrUnknownOrder
	}
	if o.IsClosed() {
		return fmt.Errorf("order %s: %w", o.ClientOrderID, ErrOrderClosed)
	}
	if err := e.applyAndPublish(o, order.PendingUpdate{Core: e.core(o)}); err != nil {
		return err
	}
	return e.venue.ModifyOrder(req)
}

// Cancel sends a cancel command. Emulated orders cancel locally without a
// venue round trip; the GTD controller uses the same path at expiry.
func (e *Engine) Cancel(id model.ClientOrderID) error {
	o, ok := e.cache.Order(id)
	if !ok {
		return cache.ErrUnknownOrder
	}
	if o.IsClosed() {
		return fmt.Errorf("order %s: %w", o.ClientOrderID, ErrOrderClosed)
	}

	if o.IsEmulated() {
		e.emulator.drop(o.ClientOrderID)
		return e.applyAndPublish(o, order.Canceled{Core: e.core(o)})
	}

	// algorithm parents never rest at a venue; stop the slicer and close
	// the parent locally, letting the slicer unwind its children
	if o.ExecAlgorithmID != "" {
		if algo, ok := e.algorithms[o.ExecAlgorithmID]; ok {
			if canceler, ok := algo.(interface{ Cancel(model.ClientOrderID) }); ok {
				canceler.Cancel(o.ClientOrderID)
			}
		}
		return e.applyAndPublish(o, order.Canceled{Core: e.core(o)})
	}

	if err := e.applyAndPublish(o, order.PendingCancel{Core: e.core(o)}); err != nil {
		return err
	}
	return e.venue.CancelOrder(id)
}

// onReport folds an inbound venue report into the order lifecycle.
func (e *Engine) onReport(_ string, event model.Event) {
	report, ok := event.(Report)
	if !ok {
		return
	}
	o, found := e.cache.Order(report.ClientOrderID)
	if !found {
		logs.Warnf("exec: report %d for unknown order %s", report.Kind, report.ClientOrderID)
		return
	}
	if o.IsClosed() {
		// late report after a local terminal transition; a late fill is
		// worth surfacing, the rest is noise
		if report.Kind == ReportFill {
			logs.Warnf("exec: late fill %s for closed order %s", report.TradeID, o.ClientOrderID)
		}
		return
	}

	switch report.Kind {
	case ReportAccepted:
		e.applyAndPublish(o, order.Accepted{Core: e.core(o), VenueOrderID: report.VenueOrderID})
	case ReportRejected:
		e.applyAndPublish(o, order.Rejected{Core: e.core(o), Reason: report.Reason})
	case ReportCanceled:
		e.applyAndPublish(o, order.Canceled{Core: e.core(o)})
	case ReportCancelRejected:
		e.applyAndPublish(o, order.CancelRejected{Core: e.core(o), Reason: report.Reason})
	case ReportUpdated:
		e.applyAndPublish(o, order.Updated{
			Core:         e.core(o),
			Quantity:     report.Quantity,
			Price:        report.Price,
			TriggerPrice: report.TriggerPrice,
		})
	case ReportModifyRejected:
		e.applyAndPublish(o, order.ModifyRejected{Core: e.core(o), Reason: report.Reason})
	case ReportExpired:
		e.applyAndPublish(o, order.Expired{Core: e.core(o)})
	case ReportTriggered:
		e.applyAndPublish(o, order.Triggered{Core: e.core(o)})
	case ReportFill:
		e.applyAndPublish(o, order.Filled{
			Core:         e.core(o),
			VenueOrderID: report.VenueOrderID,
			TradeID:      report.TradeID,
			PositionID:   e.positionIDForFill(o),
			Side:         report.Side,
			LastQty:      report.LastQty,
			LastPx:       report.LastPx,
		})
	default:
		logs.Warnf("exec: unhandled report kind %d for order %s", report.Kind, report.ClientOrderID)
	}
}

// positionIDForFill attaches the fill to the instrument's open position
// cycle, minting a fresh ID when the instrument is flat.
func (e *Engine) positionIDForFill(o *order.Order) model.PositionID {
	if id := o.Snapshot().PositionID; id != "" {
		return id
	}
	if p, ok := e.cache.OpenPosition(o.InstrumentID); ok {
		return p.ID
	}
	return model.NewPositionID(o.InstrumentID)
}

// stateView assembles the exposure snapshot the risk gate evaluates against.
func (e *Engine) stateView(instrument model.InstrumentID) risk.StateView {
	var view risk.StateView
	if p, ok := e.cache.OpenPosition(instrument); ok {
		view.Position = p.Quantity
	}
	if trade, ok := e.cache.LastTrade(instrument); ok {
		view.ReferencePrice = trade.Price
	} else if quote, ok := e.cache.LastQuote(instrument); ok {
		view.ReferencePrice = quote.Mid()
	}
	return view
}

// applyAndPublish runs an event through the order state machine, mirrors the
// snapshot, and publishes the event. A disallowed transition leaves the order
// untouched and publishes nothing.
func (e *Engine) applyAndPublish(o *order.Order, event order.Event) error {
	if err := o.Apply(event); err != nil {
		logs.Warnf("exec: %v", err)
		return err
	}
	if err := e.cache.UpdateOrder(o); err != nil {
		logs.Warnf("exec: cache update for order %s failed: %v", o.ClientOrderID, err)
	}
	if o.IsClosed() {
		e.metrics.ObserveOrderFlow(time.Duration(e.clock.TimestampNs() - o.TsInit))
	}
	e.bus.Publish(model.TopicOrderEvents(o.ClientOrderID), event)
	return nil
}

// publishOrderEvent publishes without touching the state machine, for events
// that describe the state the order is already in.
func (e *Engine) publishOrderEvent(o *order.Order, event order.Event) {
	e.bus.Publish(model.TopicOrderEvents(o.ClientOrderID), event)
}

func (e *Engine) core(o *order.Order) order.Core {
	now := e.clock.TimestampNs()
	return order.Core{
		EventHeader:   model.NewHeader(model.EventOrder, e.bus.NextSeq(), now, now),
		ClientOrderID: o.ClientOrderID,
		InstrumentID:  o.InstrumentID,
		StrategyID:    o.StrategyID,
	}
}
