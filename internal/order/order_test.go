package order

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"tradenode/internal/model"
)

func validConfig() Config {
	return Config{
		ClientOrderID: "O-1",
		InstrumentID:  1,
		StrategyID:    7,
		Side:          model.OrderSideBuy,
		Type:          model.OrderTypeLimit,
		Quantity:      decimal.NewFromInt(10),
		Price:         decimal.NewFromInt(100),
		TimeInForce:   model.TimeInForceGTC,
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing id", func(c *Config) { c.ClientOrderID = "" }, ErrMissingOrderID},
		{"missing instrument", func(c *Config) { c.InstrumentID = 0 }, ErrMissingInstrument},
		{"unknown side", func(c *Config) { c.Side = model.OrderSideUnknown }, ErrSideUnknown},
		{"zero qty", func(c *Config) { c.Quantity = decimal.Zero }, ErrQuantityNotPositive},
		{"limit without price", func(c *Config) { c.Price = decimal.Zero }, ErrPriceRequired},
		{"stop without trigger", func(c *Config) {
			c.Type = model.OrderTypeStopMarket
			c.TriggerPrice = decimal.Zero
		}, ErrTriggerRequired},
		{"gtd without expiry", func(c *Config) { c.TimeInForce = model.TimeInForceGTD }, ErrExpireTimeRequired},
		{"both gtd managers", func(c *Config) {
			c.TimeInForce = model.TimeInForceGTD
			c.ExpireTimeNs = 1
			c.ManageGTDExpiry = true
			c.VenueGTD = true
		}, ErrGTDConflict},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
}

func TestManageGTDRequiresGTD(t *testing.T) {
	cfg := validConfig()
	cfg.ManageGTDExpiry = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("ManageGTDExpiry without GTD accepted")
	}
}

func core(o *Order, ts int64) Core {
	return Core{
		EventHeader:   model.NewHeader(model.EventOrder, 1, ts, ts),
		ClientOrderID: o.ClientOrderID,
		InstrumentID:  o.InstrumentID,
		StrategyID:    o.StrategyID,
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	o := New(validConfig(), 100)
	if o.Status != model.OrderStatusInitialized {
		t.Fatalf("initial status: %s", o.Status)
	}

	steps := []struct {
		event Event
		want  model.OrderStatus
	}{
		{Submitted{Core: core(o, 101)}, model.OrderStatusSubmitted},
		{Accepted{Core: core(o, 102), VenueOrderID: "V-9"}, model.OrderStatusAccepted},
		{Filled{Core: core(o, 103), Side: model.OrderSideBuy,
			LastQty: decimal.NewFromInt(4), LastPx: decimal.NewFromInt(100),
			TradeID: "T1"}, model.OrderStatusPartiallyFilled},
		{Filled{Core: core(o, 104), Side: model.OrderSideBuy,
			LastQty: decimal.NewFromInt(6), LastPx: decimal.NewFromInt(102),
			TradeID: "T2"}, model.OrderStatusFilled},
	}
	for _, step := range steps {
		if err := o.Apply(step.event); err != nil {
			t.Fatalf("apply %T: %v", step.event, err)
		}
		if o.Status != step.want {
			t.Fatalf("after %T: got %s want %s", step.event, o.Status, step.want)
		}
	}

	if o.VenueOrderID != "V-9" {
		t.Fatalf("venue order id: %s", o.VenueOrderID)
	}
	if !o.FilledQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("filled qty: %s", o.FilledQty)
	}
	// 4@100 + 6@102 -> 101.2
	if !o.AvgPx.Equal(decimal.NewFromFloat(101.2)) {
		t.Fatalf("avg px: %s", o.AvgPx)
	}
	if !o.IsClosed() || !o.LeavesQty().IsZero() {
		t.Fatalf("terminal state not closed: %+v", o.Status)
	}
	if o.EventCount() != 4 {
		t.Fatalf("event count: %d", o.EventCount())
	}
}

func TestInvalidTransitionLeavesOrderUntouched(t *testing.T) {
	o := New(validConfig(), 100)
	before := o.Status
	err := o.Apply(Accepted{Core: core(o, 101), VenueOrderID: "V-1"})
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("got %v want %v", err, ErrInvalidStateTransition)
	}
	if o.Status != before {
		t.Fatalf("status mutated on rejected transition: %s", o.Status)
	}
	if o.VenueOrderID != "" {
		t.Fatal("venue order id assigned on rejected transition")
	}
	if o.EventCount() != 0 {
		t.Fatal("event appended on rejected transition")
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	terminals := []model.OrderStatus{
		model.OrderStatusDenied,
		model.OrderStatusRejected,
		model.OrderStatusCanceled,
		model.OrderStatusExpired,
		model.OrderStatusFilled,
	}
	all := []model.OrderStatus{
		model.OrderStatusInitialized, model.OrderStatusDenied,
		model.OrderStatusEmulated, model.OrderStatusReleased,
		model.OrderStatusSubmitted, model.OrderStatusRejected,
		model.OrderStatusAccepted, model.OrderStatusPendingUpdate,
		model.OrderStatusPendingCancel, model.OrderStatusTriggered,
		model.OrderStatusCanceled, model.OrderStatusExpired,
		model.OrderStatusModifyRejected, model.OrderStatusCancelRejected,
		model.OrderStatusUpdated, model.OrderStatusPartiallyFilled,
		model.OrderStatusFilled,
	}
	for _, from := range terminals {
		for _, to := range all {
			if CanTransition(from, to) {
				t.Fatalf("terminal %s has exit to %s", from, to)
			}
		}
	}
}

func TestEmulatedLifecycle(t *testing.T) {
	cfg := validConfig()
	cfg.EmulationTrigger = model.TriggerLastTrade
	cfg.TriggerPrice = decimal.NewFromInt(105)
	o := New(cfg, 100)

	if err := o.Apply(Emulated{Core: core(o, 101), Trigger: cfg.EmulationTrigger}); err != nil {
		t.Fatal(err)
	}
	if !o.IsEmulated() {
		t.Fatalf("status: %s", o.Status)
	}
	if err := o.Apply(Released{Core: core(o, 102), TriggerPrice: cfg.TriggerPrice}); err != nil {
		t.Fatal(err)
	}
	if err := o.Apply(Submitted{Core: core(o, 103)}); err != nil {
		t.Fatal(err)
	}
	if o.Status != model.OrderStatusSubmitted {
		t.Fatalf("status: %s", o.Status)
	}
}

func TestFillCapsAtQuantity(t *testing.T) {
	o := New(validConfig(), 100)
	_ = o.Apply(Submitted{Core: core(o, 101)})
	_ = o.Apply(Accepted{Core: core(o, 102), VenueOrderID: "V-1"})
	err := o.Apply(Filled{Core: core(o, 103), Side: model.OrderSideBuy,
		LastQty: decimal.NewFromInt(15), LastPx: decimal.NewFromInt(100), TradeID: "T1"})
	if err != nil {
		t.Fatal(err)
	}
	if !o.FilledQty.Equal(o.Quantity) {
		t.Fatalf("filled qty overflow: %s", o.FilledQty)
	}
	if o.Status != model.OrderStatusFilled {
		t.Fatalf("status: %s", o.Status)
	}
}

func TestZeroQtyFillRejected(t *testing.T) {
	o := New(validConfig(), 100)
	_ = o.Apply(Submitted{Core: core(o, 101)})
	err := o.Apply(Filled{Core: core(o, 102), Side: model.OrderSideBuy,
		LastQty: decimal.Zero, LastPx: decimal.NewFromInt(100)})
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("got %v want %v", err, ErrInvalidStateTransition)
	}
}

func TestUpdatedAdjustsFields(t *testing.T) {
	o := New(validConfig(), 100)
	_ = o.Apply(Submitted{Core: core(o, 101)})
	_ = o.Apply(Accepted{Core: core(o, 102), VenueOrderID: "V-1"})
	_ = o.Apply(PendingUpdate{Core: core(o, 103)})
	err := o.Apply(Updated{Core: core(o, 104),
		Quantity: decimal.NewFromInt(8), Price: decimal.NewFromInt(99)})
	if err != nil {
		t.Fatal(err)
	}
	if !o.Quantity.Equal(decimal.NewFromInt(8)) || !o.Price.Equal(decimal.NewFromInt(99)) {
		t.Fatalf("update not applied: qty=%s px=%s", o.Quantity, o.Price)
	}
	if o.Status != model.OrderStatusUpdated {
		t.Fatalf("status: %s", o.Status)
	}
}

func TestConcurrentApplyAndReads(t *testing.T) {
	o := New(validConfig(), 100)
	if err := o.Apply(Submitted{Core: core(o, 101)}); err != nil {
		t.Fatal(err)
	}
	if err := o.Apply(Accepted{Core: core(o, 102), VenueOrderID: "V-1"}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			o.IsClosed()
			o.IsOpen()
			o.LeavesQty()
			o.Snapshot()
			o.EventCount()
		}
	}()

	for i := 0; i < 10; i++ {
		err := o.Apply(Filled{Core: core(o, int64(103+i)), Side: model.OrderSideBuy,
			LastQty: decimal.NewFromInt(1), LastPx: decimal.NewFromInt(100),
			TradeID: model.TradeID(fmt.Sprintf("T%d", i+1))})
		if err != nil {
			t.Fatal(err)
		}
	}
	<-done

	if !o.IsClosed() {
		t.Fatalf("status after fills: %s", o.Status)
	}
	snap := o.Snapshot()
	if snap.Status != model.OrderStatusFilled {
		t.Fatalf("snapshot status: %s", snap.Status)
	}
	if !snap.FilledQty.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("snapshot filled qty: %s", snap.FilledQty)
	}
}
