package clock

import (
	"errors"
	"testing"
	"time"

	"tradenode/internal/model"
)

var epoch = time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)

func TestVirtualAlertFiresOnAdvance(t *testing.T) {
	c := NewVirtualClock(epoch)
	var fired []model.TimeEvent
	at := epoch.Add(5 * time.Second)
	if err := c.SetAlert("once", at, func(e model.TimeEvent) {
		fired = append(fired, e)
	}); err != nil {
		t.Fatal(err)
	}

	if err := c.AdvanceTo(epoch.Add(4 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if len(fired) != 0 {
		t.Fatal("alert fired before its time")
	}

	if err := c.AdvanceTo(epoch.Add(6 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if len(fired) != 1 {
		t.Fatalf("fires: got %d want 1", len(fired))
	}
	if fired[0].Name != "once" || fired[0].IsTimer {
		t.Fatalf("event mismatch: %+v", fired[0])
	}
	if fired[0].TsEvent != at.UnixNano() {
		t.Fatalf("fire ts: got %d want %d", fired[0].TsEvent, at.UnixNano())
	}
}

func TestVirtualTimerRepeats(t *testing.T) {
	c := NewVirtualClock(epoch)
	var fires []int64
	err := c.SetTimer(TimerSpec{
		Name:     "every-sec",
		Interval: time.Second,
		Repeat:   3,
	}, func(e model.TimeEvent) {
		fires = append(fires, e.TsEvent)
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.AdvanceTo(epoch.Add(10 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if len(fires) != 3 {
		t.Fatalf("fires: got %d want 3", len(fires))
	}
	for i, ts := range fires {
		want := epoch.Add(time.Duration(i+1) * time.Second).UnixNano()
		if ts != want {
			t.Fatalf("fire %d: got %d want %d", i, ts, want)
		}
	}
	if names := c.TimerNames(); len(names) != 0 {
		t.Fatalf("exhausted timer still pending: %v", names)
	}
}

func TestVirtualFiresInScheduledOrder(t *testing.T) {
	c := NewVirtualClock(epoch)
	var order []string
	_ = c.SetAlert("later", epoch.Add(3*time.Second), func(model.TimeEvent) {
		order = append(order, "later")
	})
	_ = c.SetAlert("sooner", epoch.Add(1*time.Second), func(model.TimeEvent) {
		order = append(order, "sooner")
	})

	if err := c.AdvanceTo(epoch.Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "sooner" || order[1] != "later" {
		t.Fatalf("fire order: %v", order)
	}
}

func TestVirtualTieBreakByRegistration(t *testing.T) {
	c := NewVirtualClock(epoch)
	at := epoch.Add(time.Second)
	var order []string
	_ = c.SetAlert("first", at, func(model.TimeEvent) { order = append(order, "first") })
	_ = c.SetAlert("second", at, func(model.TimeEvent) { order = append(order, "second") })

	if err := c.AdvanceTo(at); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("tie-break order: %v", order)
	}
}

func TestVirtualHandlerSchedulesEarlier(t *testing.T) {
	c := NewVirtualClock(epoch)
	var order []string
	_ = c.SetAlert("outer", epoch.Add(2*time.Second), func(model.TimeEvent) {
		order = append(order, "outer")
		// due before the remaining advance target; must fire in this pass
		_ = c.SetAlert("inner", epoch.Add(3*time.Second), func(model.TimeEvent) {
			order = append(order, "inner")
		})
	})
	_ = c.SetAlert("tail", epoch.Add(4*time.Second), func(model.TimeEvent) {
		order = append(order, "tail")
	})

	if err := c.AdvanceTo(epoch.Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	want := []string{"outer", "inner", "tail"}
	if len(order) != len(want) {
		t.Fatalf("fire order: got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fire order: got %v want %v", order, want)
		}
	}
}

func TestVirtualCancelSemantics(t *testing.T) {
	c := NewVirtualClock(epoch)
	fired := 0
	_ = c.SetAlert("a", epoch.Add(time.Second), func(model.TimeEvent) { fired++ })

	c.CancelAlert("a")
	if err := c.AdvanceTo(epoch.Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if fired != 0 {
		t.Fatal("canceled alert fired")
	}

	// canceling after fire (or a name that never existed) is a no-op
	c.CancelAlert("a")
	c.CancelTimer("never-was")
}

func TestVirtualReplaceOnReregister(t *testing.T) {
	c := NewVirtualClock(epoch)
	var got []string
	_ = c.SetAlert("x", epoch.Add(time.Second), func(model.TimeEvent) { got = append(got, "old") })
	_ = c.SetAlert("x", epoch.Add(2*time.Second), func(model.TimeEvent) { got = append(got, "new") })

	if err := c.AdvanceTo(epoch.Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "new" {
		t.Fatalf("re-register: got %v want [new]", got)
	}
}

func TestVirtualTimeBackward(t *testing.T) {
	c := NewVirtualClock(epoch)
	if err := c.AdvanceTo(epoch.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := c.AdvanceTo(epoch); !errors.Is(err, ErrTimeBackward) {
		t.Fatalf("got %v want %v", err, ErrTimeBackward)
	}
}

func TestVirtualTimerStopNs(t *testing.T) {
	c := NewVirtualClock(epoch)
	fires := 0
	err := c.SetTimer(TimerSpec{
		Name:     "bounded",
		Interval: time.Second,
		StopNs:   epoch.Add(2500 * time.Millisecond).UnixNano(),
	}, func(model.TimeEvent) { fires++ })
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AdvanceTo(epoch.Add(10 * time.Second)); err != nil {
		t.Fatal(err)
	}
	if fires != 2 {
		t.Fatalf("fires: got %d want 2", fires)
	}
}

func TestTimerSpecValidate(t *testing.T) {
	if err := (TimerSpec{Interval: time.Second}).Validate(); err != ErrEmptyTimerName {
		t.Fatalf("got %v want %v", err, ErrEmptyTimerName)
	}
	if err := (TimerSpec{Name: "x"}).Validate(); err != ErrInvalidInterval {
		t.Fatalf("got %v want %v", err, ErrInvalidInterval)
	}
	if err := (TimerSpec{Name: "x", Interval: time.Second}).Validate(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
}

func TestVirtualNextAlertNs(t *testing.T) {
	epoch := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	c := NewVirtualClock(epoch)

	if got := c.NextAlertNs(); got != 0 {
		t.Fatalf("idle clock: got %d want 0", got)
	}
	late := epoch.Add(time.Minute)
	early := epoch.Add(10 * time.Second)
	if err := c.SetAlert("late", late, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.SetAlert("early", early, nil); err != nil {
		t.Fatal(err)
	}
	if got := c.NextAlertNs(); got != early.UnixNano() {
		t.Fatalf("got %d want %d", got, early.UnixNano())
	}
	if err := c.AdvanceTo(early); err != nil {
		t.Fatal(err)
	}
	if got := c.NextAlertNs(); got != late.UnixNano() {
		t.Fatalf("after first fire: got %d want %d", got, late.UnixNano())
	}
}

type captureEmitter struct {
	seq    uint64
	topics []string
	events []model.TimeEvent
}

func (e *captureEmitter) NextSeq() uint64 {
	e.seq++
	return e.seq
}

func (e *captureEmitter) Publish(topic string, event model.Event) {
	e.topics = append(e.topics, topic)
	e.events = append(e.events, event.(model.TimeEvent))
}

func TestVirtualEmitterSequencesFires(t *testing.T) {
	c := NewVirtualClock(epoch)
	emitter := &captureEmitter{}
	c.SetEmitter(emitter)

	var handled model.TimeEvent
	if err := c.SetAlert("mark", epoch.Add(time.Second), func(e model.TimeEvent) {
		handled = e
	}); err != nil {
		t.Fatal(err)
	}
	if err := c.AdvanceTo(epoch.Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}

	if len(emitter.topics) != 1 || emitter.topics[0] != "events.time.mark" {
		t.Fatalf("published topics: %v", emitter.topics)
	}
	if emitter.events[0].Seq == 0 {
		t.Fatal("fired event carries no sequence number")
	}
	if handled.Seq != emitter.events[0].Seq {
		t.Fatalf("handler saw seq %d, published seq %d", handled.Seq, emitter.events[0].Seq)
	}
}

func TestVirtualTimerFiresCarryIncreasingSeq(t *testing.T) {
	c := NewVirtualClock(epoch)
	emitter := &captureEmitter{}
	c.SetEmitter(emitter)

	err := c.SetTimer(TimerSpec{Name: "beat", Interval: time.Second, Repeat: 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AdvanceTo(epoch.Add(10 * time.Second)); err != nil {
		t.Fatal(err)
	}

	if len(emitter.events) != 3 {
		t.Fatalf("fires: got %d want 3", len(emitter.events))
	}
	for i := 1; i < len(emitter.events); i++ {
		if emitter.events[i].Seq <= emitter.events[i-1].Seq {
			t.Fatalf("seq not increasing: %d then %d",
				emitter.events[i-1].Seq, emitter.events[i].Seq)
		}
	}
}
