package clock

import (
	"sort"
	"sync"
	"time"

	"tradenode/internal/model"
)

// LiveClock is backed by wall time; schedules fire on background goroutines.
type LiveClock struct {
	mu        sync.Mutex
	schedules map[string]*liveSchedule
	emitter   Emitter
}

type liveSchedule struct {
	name    string
	isTimer bool
	nextNs  int64
	stop    chan struct{}
	once    sync.Once
}

func (s *liveSchedule) cancel() {
	s.once.Do(func() { close(s.stop) })
}

// NewLiveClock creates a wall-clock backed clock.
func NewLiveClock() *LiveClock {
	return &LiveClock{schedules: make(map[string]*liveSchedule)}
}

// SetEmitter routes fired time events through a sequence source and topic
// publisher. Call it before scheduling.
func (c *LiveClock) SetEmitter(emitter Emitter) {
	c.mu.Lock()
	c.emitter = emitter
	c.mu.Unlock()
}

// emit stamps a time event with the next bus sequence and publishes it.
func (c *LiveClock) emit(name string, isTimer bool, dueNs int64) model.TimeEvent {
	c.mu.Lock()
	emitter := c.emitter
	c.mu.Unlock()
	var seq uint64
	if emitter != nil {
		seq = emitter.NextSeq()
	}
	event := model.TimeEvent{
		EventHeader: model.NewHeader(model.EventTime, seq, dueNs, c.TimestampNs()),
		Name:        name,
		IsTimer:     isTimer,
	}
	if emitter != nil {
		emitter.Publish(model.TopicTime(name), event)
	}
	return event
}

// Now returns the current wall time.
func (c *LiveClock) Now() time.Time {
	return time.Now().UTC()
}

// TimestampNs returns the current wall time in nanoseconds.
func (c *LiveClock) TimestampNs() int64 {
	return time.Now().UTC().UnixNano()
}

// SetAlert schedules a one-shot time event at the given time.
func (c *LiveClock) SetAlert(name string, at time.Time, handler Handler) error {
	if name == "" {
		return ErrEmptyTimerName
	}
	s := c.register(name, false, at.UnixNano())
	go func() {
		delay := time.Until(at)
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-s.stop:
			return
		case <-timer.C:
		}
		c.remove(name, s)
		event := c.emit(name, false, at.UnixNano())
		if handler != nil {
			handler(event)
		}
	}()
	return nil
}

// SetTimer schedules a recurring time event.
func (c *LiveClock) SetTimer(spec TimerSpec, handler Handler) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	first := spec.StartNs
	if first <= 0 {
		first = c.TimestampNs() + int64(spec.Interval)
	}
	s := c.register(spec.Name, true, first)
	go c.runTimer(s, spec, first, handler)
	return nil
}

func (c *LiveClock) runTimer(s *liveSchedule, spec TimerSpec, next int64, handler Handler) {
	fired := 0
	for {
		delay := time.Duration(next - c.TimestampNs())
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		event := c.emit(spec.Name, true, next)
		if handler != nil {
			handler(event)
		}
		fired++
		next += int64(spec.Interval)
		c.mu.Lock()
		s.nextNs = next
		c.mu.Unlock()
		if spec.Repeat != RepeatUnbounded && fired >= spec.Repeat {
			break
		}
		if spec.StopNs > 0 && next > spec.StopNs {
			break
		}
	}
	c.remove(spec.Name, s)
}

// CancelAlert stops a pending alert, silently if already fired.
func (c *LiveClock) CancelAlert(name string) {
	c.cancelByName(name)
}

// CancelTimer stops a pending timer, silently if already exhausted.
func (c *LiveClock) CancelTimer(name string) {
	c.cancelByName(name)
}

// CancelAll stops every pending schedule.
func (c *LiveClock) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, s := range c.schedules {
		s.cancel()
		delete(c.schedules, name)
	}
}

// NextAlertNs returns the earliest pending fire time, zero when idle.
func (c *LiveClock) NextAlertNs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var next int64
	for _, s := range c.schedules {
		if next == 0 || s.nextNs < next {
			next = s.nextNs
		}
	}
	return next
}

// TimerNames returns the names of pending schedules.
func (c *LiveClock) TimerNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.schedules))
	for name := range c.schedules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// register replaces any schedule with the same name.
func (c *LiveClock) register(name string, isTimer bool, nextNs int64) *liveSchedule {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prior, ok := c.schedules[name]; ok {
		prior.cancel()
	}
	s := &liveSchedule{name: name, isTimer: isTimer, nextNs: nextNs, stop: make(chan struct{})}
	c.schedules[name] = s
	return s
}

// remove deletes the schedule only if it is still the registered one.
func (c *LiveClock) remove(name string, s *liveSchedule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.schedules[name]; ok && current == s {
		delete(c.schedules, name)
	}
}

func (c *LiveClock) cancelByName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.schedules[name]; ok {
		s.cancel()
		delete(c.schedules, name)
	}
}
