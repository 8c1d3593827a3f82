package clock

import (
	"sort"
	"time"

	"tradenode/internal/model"
)

// VirtualClock is advanced externally and fires schedules synchronously.
//
// It is single-threaded by contract: the replay driver is the only caller.
type VirtualClock struct {
	nowNs     int64
	schedules map[string]*schedule
	order     uint64
	emitter   Emitter
}

type schedule struct {
	name      string
	isTimer   bool
	nextNs    int64
	interval  int64
	stopNs    int64
	remaining int
	unbounded bool
	handler   Handler
	order     uint64
}

// NewVirtualClock creates a virtual clock at the given start time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{
		nowNs:     start.UnixNano(),
		schedules: make(map[string]*schedule),
	}
}

// SetEmitter routes fired time events through a sequence source and topic
// publisher, so they carry bus sequence numbers and reach time subscribers.
func (c *VirtualClock) SetEmitter(emitter Emitter) {
	c.emitter = emitter
}

// Now returns the current virtual time.
func (c *VirtualClock) Now() time.Time {
	return time.Unix(0, c.nowNs).UTC()
}

// TimestampNs returns the current virtual time in nanoseconds.
func (c *VirtualClock) TimestampNs() int64 {
	return c.nowNs
}

// SetAlert schedules a one-shot time event at the given time.
func (c *VirtualClock) SetAlert(name string, at time.Time, handler Handler) error {
	if name == "" {
		return ErrEmptyTimerName
	}
	c.order++
	c.schedules[name] = &schedule{
		name:    name,
		nextNs:  at.UnixNano(),
		handler: handler,
		order:   c.order,
	}
	return nil
}

// SetTimer schedules a recurring time event.
func (c *VirtualClock) SetTimer(spec TimerSpec, handler Handler) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	first := spec.StartNs
	if first <= 0 {
		first = c.nowNs + int64(spec.Interval)
	}
	c.order++
	c.schedules[spec.Name] = &schedule{
		name:      spec.Name,
		isTimer:   true,
		nextNs:    first,
		interval:  int64(spec.Interval),
		stopNs:    spec.StopNs,
		remaining: spec.Repeat,
		unbounded: spec.Repeat == RepeatUnbounded,
		handler:   handler,
		order:     c.order,
	}
	return nil
}

// CancelAlert removes a pending alert, silently if already fired.
func (c *VirtualClock) CancelAlert(name string) {
	delete(c.schedules, name)
}

// CancelTimer removes a pending timer, silently if already exhausted.
func (c *VirtualClock) CancelTimer(name string) {
	delete(c.schedules, name)
}

// CancelAll removes every pending schedule.
func (c *VirtualClock) CancelAll() {
	c.schedules = make(map[string]*schedule)
}

// TimerNames returns the names of pending schedules.
func (c *VirtualClock) TimerNames() []string {
	names := make([]string, 0, len(c.schedules))
	for name := range c.schedules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetTime advances the clock, firing every schedule due at or before t.
//
// Due schedules fire in ascending scheduled-time order before SetTime
// returns. Moving time backward fails with ErrTimeBackward.
func (c *VirtualClock) SetTime(t time.Time) error {
	return c.AdvanceToNs(t.UnixNano())
}

// AdvanceTo is an alias of SetTime.
func (c *VirtualClock) AdvanceTo(t time.Time) error {
	return c.AdvanceToNs(t.UnixNano())
}

// NextAlertNs returns the earliest pending fire time, zero when idle.
func (c *VirtualClock) NextAlertNs() int64 {
	var next int64
	for _, s := range c.schedules {
		if next == 0 || s.nextNs < next {
			next = s.nextNs
		}
	}
	return next
}

// AdvanceToNs advances the clock to a nanosecond timestamp.
func (c *VirtualClock) AdvanceToNs(ns int64) error {
	if ns < c.nowNs {
		return ErrTimeBackward
	}
	// One schedule at a time: a handler may register a new schedule that is
	// due earlier than the remaining ones.
	for {
		s := c.earliestDue(ns)
		if s == nil {
			break
		}
		c.fire(s)
	}
	c.nowNs = ns
	return nil
}

// earliestDue returns the live schedule with the smallest nextNs <= ns.
// Ties break by registration order so replay stays deterministic.
func (c *VirtualClock) earliestDue(ns int64) *schedule {
	var earliest *schedule
	for _, s := range c.schedules {
		if s.nextNs > ns {
			continue
		}
		if earliest == nil ||
			s.nextNs < earliest.nextNs ||
			(s.nextNs == earliest.nextNs && s.order < earliest.order) {
			earliest = s
		}
	}
	return earliest
}

func (c *VirtualClock) fire(s *schedule) {
	if s.nextNs > c.nowNs {
		c.nowNs = s.nextNs
	}
	var seq uint64
	if c.emitter != nil {
		seq = c.emitter.NextSeq()
	}
	event := model.TimeEvent{
		EventHeader: model.NewHeader(model.EventTime, seq, s.nextNs, s.nextNs),
		Name:        s.name,
		IsTimer:     s.isTimer,
	}

	rearmed := false
	if s.isTimer {
		next := s.nextNs + s.interval
		expired := false
		if !s.unbounded {
			s.remaining--
			if s.remaining <= 0 {
				expired = true
			}
		}
		if s.stopNs > 0 && next > s.stopNs {
			expired = true
		}
		if !expired {
			s.nextNs = next
			rearmed = true
		}
	}
	if !rearmed {
		delete(c.schedules, s.name)
	}

	if c.emitter != nil {
		c.emitter.Publish(model.TopicTime(s.name), event)
	}
	if s.handler != nil {
		s.handler(event)
	}
}
