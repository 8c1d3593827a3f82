package exec

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"tradenode/internal/bus"
	"tradenode/internal/clock"
	"tradenode/internal/model"
	"tradenode/internal/order"
)

// SimVenueConfig controls simulated venue behavior for backtests and tests.
type SimVenueConfig struct {
	Name           string
	RejectSubmits  bool
	RejectCancels  bool
	RejectModifies bool
}

// SimVenue is an in-process venue. It acknowledges commands and fills
// working orders against the market data it is fed, reporting through the
// same topics a live adapter would use.
type SimVenue struct {
	cfg   SimVenueConfig
	bus   *bus.MessageBus
	clock clock.Clock

	mu      sync.Mutex
	working map[model.ClientOrderID]*simOrder
	lastPx  map[model.InstrumentID]decimal.Decimal
	nextID  uint64
	trades  uint64
}

type simOrder struct {
	id           model.ClientOrderID
	venueID      model.VenueOrderID
	instrument   model.InstrumentID
	side         model.OrderSide
	orderType    model.OrderType
	price        decimal.Decimal
	triggerPrice decimal.Decimal
	leaves       decimal.Decimal
	expireNs     int64
	venueGTD     bool
	triggered    bool
}

// NewSimVenue creates a simulated venue publishing on the given bus.
func NewSimVenue(cfg SimVenueConfig, messageBus *bus.MessageBus, clk clock.Clock) *SimVenue {
	if cfg.Name == "" {
		cfg.Name = "SIM"
	}
	return &SimVenue{
		cfg:     cfg,
		bus:     messageBus,
		clock:   clk,
		working: make(map[model.ClientOrderID]*simOrder),
		lastPx:  make(map[model.InstrumentID]decimal.Decimal),
	}
}

// Start subscribes the venue to the market data stream it matches against.
// A negative priority puts venue matching after engine bookkeeping on every
// tick.
func (v *SimVenue) Start() error {
	if _, err := v.bus.Subscribe(model.TopicQuotesAll, func(_ string, event model.Event) {
		if quote, ok := event.(model.QuoteTick); ok {
			v.OnQuote(quote)
		}
	}, -1); err != nil {
		return err
	}
	_, err := v.bus.Subscribe(model.TopicTradesAll, func(_ string, event model.Event) {
		if trade, ok := event.(model.TradeTick); ok {
			v.OnTrade(trade)
		}
	}, -1)
	return err
}

// SubmitOrder acknowledges or rejects a submit command.
func (v *SimVenue) SubmitOrder(o *order.Order) error {
	if v.cfg.RejectSubmits {
		v.publish(Report{
			Kind:          ReportRejected,
			ClientOrderID: o.ClientOrderID,
			Reason:        "venue rejects all submits",
		})
		return nil
	}
	v.mu.Lock()
	v.nextID++
	so := &simOrder{
		id:           o.ClientOrderID,
		venueID:      model.VenueOrderID(fmt.Sprintf("%s-%d", v.cfg.Name, v.nextID)),
		instrument:   o.InstrumentID,
		side:         o.Side,
		orderType:    o.Type,
		price:        o.Price,
		triggerPrice: o.TriggerPrice,
		leaves:       o.LeavesQty(),
		expireNs:     o.ExpireTimeNs,
		venueGTD:     o.VenueGTD,
		triggered:    o.Type == model.OrderTypeMarket || o.Type == model.OrderTypeLimit,
	}
	v.working[so.id] = so
	last, hasLast := v.lastPx[so.instrument]
	v.mu.Unlock()

	v.publish(Report{
		Kind:          ReportAccepted,
		ClientOrderID: so.id,
		VenueOrderID:  so.venueID,
	})
	if so.orderType == model.OrderTypeMarket && hasLast {
		v.fill(so, so.leaves, last)
	}

	// IOC and FOK never rest: whatever did not fill immediately is gone.
	if o.TimeInForce == model.TimeInForceIOC || o.TimeInForce == model.TimeInForceFOK {
		v.mu.Lock()
		_, resting := v.working[so.id]
		if resting {
			delete(v.working, so.id)
		}
		v.mu.Unlock()
		if resting {
			v.publish(Report{
				Kind:          ReportCanceled,
				ClientOrderID: so.id,
				VenueOrderID:  so.venueID,
			})
		}
	}
	return nil
}

// ModifyOrder confirms or rejects a modify command. Modifying an order the
// venue does not know reports a rejection and returns ErrUnknownVenueOrder.
func (v *SimVenue) ModifyOrder(req ModifyRequest) error {
	v.mu.Lock()
	so, ok := v.working[req.ClientOrderID]
	if !ok || v.cfg.RejectModifies {
		v.mu.Unlock()
		reason := ErrUnknownVenueOrder.Error()
		if v.cfg.RejectModifies {
			reason = "venue rejects all modifies"
		}
		v.publish(Report{
			Kind:          ReportModifyRejected,
			ClientOrderID: req.ClientOrderID,
			Reason:        reason,
		})
		if !ok {
			return ErrUnknownVenueOrder
		}
		return nil
	}
	if req.Quantity.IsPositive() {
		so.leaves = req.Quantity
	}
	if req.Price.IsPositive() {
		so.price = req.Price
	}
	if req.TriggerPrice.IsPositive() {
		so.triggerPrice = req.TriggerPrice
	}
	report := Report{
		Kind:          ReportUpdated,
		ClientOrderID: so.id,
		VenueOrderID:  so.venueID,
		Quantity:      req.Quantity,
		Price:         req.Price,
		TriggerPrice:  req.TriggerPrice,
	}
	v.mu.Unlock()
	v.publish(report)
	return nil
}

// CancelOrder confirms or rejects a cancel command. Canceling an order the
// venue does not know reports a rejection and returns ErrUnknownVenueOrder.
func (v *SimVenue) CancelOrder(id model.ClientOrderID) error {
	v.mu.Lock()
	so, ok := v.working[id]
	if !ok || v.cfg.RejectCancels {
		v.mu.Unlock()
		reason := ErrUnknownVenueOrder.Error()
		if v.cfg.RejectCancels {
			reason = "venue rejects all cancels"
		}
		v.publish(Report{
			Kind:          ReportCancelRejected,
			ClientOrderID: id,
			Reason:        reason,
		})
		if !ok {
			return ErrUnknownVenueOrder
		}
		return nil
	}
	delete(v.working, id)
	venueID := so.venueID
	v.mu.Unlock()
	v.publish(Report{
		Kind:          ReportCanceled,
		ClientOrderID: id,
		VenueOrderID:  venueID,
	})
	return nil
}

// OnQuote feeds a quote to the matching loop.
func (v *SimVenue) OnQuote(quote model.QuoteTick) {
	v.mu.Lock()
	v.lastPx[quote.InstrumentID] = quote.Mid()
	v.mu.Unlock()
	v.matchQuote(quote)
}

// OnTrade feeds a trade to the matching loop. The trade size caps the fill,
// so small prints produce partial fills.
func (v *SimVenue) OnTrade(trade model.TradeTick) {
	v.mu.Lock()
	v.lastPx[trade.InstrumentID] = trade.Price
	v.mu.Unlock()
	v.matchTrade(trade)
}

func (v *SimVenue) matchQuote(quote model.QuoteTick) {
	for _, so := range v.candidates(quote.InstrumentID, quote.Header().TsEvent) {
		v.tryTrigger(so, quote.BidPrice, quote.AskPrice)
		if !so.triggered {
			continue
		}
		switch so.orderType {
		case model.OrderTypeMarket, model.OrderTypeStopMarket:
			px := quote.AskPrice
			if so.side == model.OrderSideSell {
				px = quote.BidPrice
			}
			v.fill(so, so.leaves, px)
		case model.OrderTypeLimit, model.OrderTypeStopLimit:
			if crossed(so.side, so.price, quote.BidPrice, quote.AskPrice) {
				v.fill(so, so.leaves, so.price)
			}
		}
	}
}

func (v *SimVenue) matchTrade(trade model.TradeTick) {
	for _, so := range v.candidates(trade.InstrumentID, trade.Header().TsEvent) {
		v.tryTrigger(so, trade.Price, trade.Price)
		if !so.triggered {
			continue
		}
		fillable := so.orderType == model.OrderTypeMarket || so.orderType == model.OrderTypeStopMarket
		if !fillable {
			fillable = limitMarketable(so.side, so.price, trade.Price)
		}
		if !fillable {
			continue
		}
		qty := so.leaves
		if trade.Size.IsPositive() && trade.Size.LessThan(qty) {
			qty = trade.Size
		}
		px := trade.Price
		if so.orderType == model.OrderTypeLimit || so.orderType == model.OrderTypeStopLimit {
			px = so.price
		}
		v.fill(so, qty, px)
	}
}

// candidates snapshots working orders for an instrument, expiring
// venue-managed GTD orders first.
func (v *SimVenue) candidates(instrument model.InstrumentID, tsNs int64) []*simOrder {
	v.mu.Lock()
	var out []*simOrder
	var expired []*simOrder
	for _, so := range v.working {
		if so.instrument != instrument {
			continue
		}
		if so.venueGTD && so.expireNs > 0 && tsNs >= so.expireNs {
			delete(v.working, so.id)
			expired = append(expired, so)
			continue
		}
		out = append(out, so)
	}
	v.mu.Unlock()
	for _, so := range expired {
		v.publish(Report{
			Kind:          ReportExpired,
			ClientOrderID: so.id,
			VenueOrderID:  so.venueID,
		})
	}
	return out
}

func (v *SimVenue) tryTrigger(so *simOrder, bid, ask decimal.Decimal) {
	if so.triggered || !so.triggerPrice.IsPositive() {
		return
	}
	hit := false
	if so.side == model.OrderSideBuy {
		hit = ask.GreaterThanOrEqual(so.triggerPrice)
	} else {
		hit = bid.LessThanOrEqual(so.triggerPrice)
	}
	if hit {
		so.triggered = true
		v.publish(Report{
			Kind:          ReportTriggered,
			ClientOrderID: so.id,
			VenueOrderID:  so.venueID,
		})
	}
}

func (v *SimVenue) fill(so *simOrder, qty, px decimal.Decimal) {
	if !qty.IsPositive() {
		return
	}
	v.mu.Lock()
	if qty.GreaterThan(so.leaves) {
		qty = so.leaves
	}
	so.leaves = so.leaves.Sub(qty)
	if so.leaves.IsZero() {
		delete(v.working, so.id)
	}
	v.trades++
	tradeID := model.TradeID(fmt.Sprintf("%s-T%d", v.cfg.Name, v.trades))
	v.mu.Unlock()

	v.publish(Report{
		Kind:          ReportFill,
		ClientOrderID: so.id,
		VenueOrderID:  so.venueID,
		TradeID:       tradeID,
		Side:          so.side,
		LastQty:       qty,
		LastPx:        px,
	})
}

func (v *SimVenue) publish(report Report) {
	now := v.clock.TimestampNs()
	report.EventHeader = model.NewHeader(model.EventOrder, v.bus.NextSeq(), now, now)
	v.bus.Publish(model.TopicVenueReports(report.ClientOrderID), report)
}

func crossed(side model.OrderSide, limit, bid, ask decimal.Decimal) bool {
	if side == model.OrderSideBuy {
		return ask.LessThanOrEqual(limit)
	}
	return bid.GreaterThanOrEqual(limit)
}

func limitMarketable(side model.OrderSide, limit, px decimal.Decimal) bool {
	if side == model.OrderSideBuy {
		return px.LessThanOrEqual(limit)
	}
	return px.GreaterThanOrEqual(limit)
}
