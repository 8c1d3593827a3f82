package bus

import (
	"testing"
	"time"

	"tradenode/internal/model"
)

type testEvent struct {
	model.EventHeader
	tag string
}

func (e testEvent) Header() model.EventHeader { return e.EventHeader }

func TestSubscribeValidation(t *testing.T) {
	b := New()
	if _, err := b.Subscribe("", func(string, model.Event) {}, 0); err != ErrEmptyPattern {
		t.Fatalf("empty pattern: got %v want %v", err, ErrEmptyPattern)
	}
	if _, err := b.Subscribe("a.b", nil, 0); err != ErrNilHandler {
		t.Fatalf("nil handler: got %v want %v", err, ErrNilHandler)
	}
}

func TestPublishDeliveryOrder(t *testing.T) {
	b := New()
	var got []string
	sub := func(tag string, priority int) {
		if _, err := b.Subscribe("events.order.>", func(string, model.Event) {
			got = append(got, tag)
		}, priority); err != nil {
			t.Fatalf("subscribe %s: %v", tag, err)
		}
	}
	sub("low-first", 0)
	sub("high", 10)
	sub("low-second", 0)

	b.Publish("events.order.abc", testEvent{})

	want := []string{"high", "low-first", "low-second"}
	if len(got) != len(want) {
		t.Fatalf("deliveries: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order: got %v want %v", got, want)
		}
	}
}

func TestNestedPublishDrainsInOrder(t *testing.T) {
	b := New()
	var got []string

	if _, err := b.Subscribe("a.>", func(_ string, event model.Event) {
		e := event.(testEvent)
		got = append(got, "a:"+e.tag)
		if e.tag == "first" {
			// derived events from inside a handler queue behind the
			// current fanout
			b.Publish("b.x", testEvent{tag: "derived-1"})
			b.Publish("b.x", testEvent{tag: "derived-2"})
		}
	}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Subscribe("a.>", func(_ string, event model.Event) {
		got = append(got, "a2:"+event.(testEvent).tag)
	}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Subscribe("b.>", func(_ string, event model.Event) {
		got = append(got, "b:"+event.(testEvent).tag)
	}, 0); err != nil {
		t.Fatal(err)
	}

	b.Publish("a.x", testEvent{tag: "first"})

	want := []string{"a:first", "a2:first", "b:derived-1", "b:derived-2"}
	if len(got) != len(want) {
		t.Fatalf("sequence: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence: got %v want %v", got, want)
		}
	}
}

func TestHandlerPanicIsolated(t *testing.T) {
	b := New()
	delivered := false
	if _, err := b.Subscribe("x", func(string, model.Event) {
		panic("boom")
	}, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Subscribe("x", func(string, model.Event) {
		delivered = true
	}, 0); err != nil {
		t.Fatal(err)
	}

	b.Publish("x", testEvent{})

	if !delivered {
		t.Fatal("panic in one handler blocked delivery to the next")
	}
	if b.HandlerErrors() != 1 {
		t.Fatalf("handler errors: got %d want 1", b.HandlerErrors())
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	count := 0
	sub, err := b.Subscribe("x", func(string, model.Event) { count++ }, 0)
	if err != nil {
		t.Fatal(err)
	}
	b.Publish("x", testEvent{})
	b.Unsubscribe(sub)
	b.Publish("x", testEvent{})
	if count != 1 {
		t.Fatalf("deliveries after unsubscribe: got %d want 1", count)
	}
	if b.SubscriptionCount() != 0 {
		t.Fatalf("subscriptions: got %d want 0", b.SubscriptionCount())
	}
}

func TestNextSeqMonotonic(t *testing.T) {
	b := New()
	prev := b.NextSeq()
	for i := 0; i < 100; i++ {
		next := b.NextSeq()
		if next <= prev {
			t.Fatalf("seq not increasing: %d then %d", prev, next)
		}
		prev = next
	}
}

type recordingSink struct {
	dispatches int
	failures   int
}

func (s *recordingSink) ObserveDispatch(time.Duration) { s.dispatches++ }
func (s *recordingSink) IncHandlerError()              { s.failures++ }

func TestMetricsSinkObservesDispatchAndFailures(t *testing.T) {
	b := New()
	sink := &recordingSink{}
	b.SetMetrics(sink)

	if _, err := b.Subscribe("a.b", func(string, model.Event) { panic("boom") }, 0); err != nil {
		t.Fatal(err)
	}
	b.Publish("a.b", testEvent{})
	b.Publish("a.b", testEvent{})

	if sink.dispatches != 2 {
		t.Fatalf("dispatch samples: got %d want 2", sink.dispatches)
	}
	if sink.failures != 2 {
		t.Fatalf("handler failures: got %d want 2", sink.failures)
	}
	if b.HandlerErrors() != 2 {
		t.Fatalf("bus handler errors: got %d want 2", b.HandlerErrors())
	}
}
