package clock

import (
	"errors"
	"time"

	"tradenode/internal/model"
)

var (
	ErrTimeBackward    = errors.New("virtual clock cannot move backward")
	ErrEmptyTimerName  = errors.New("timer name is empty")
	ErrInvalidInterval = errors.New("timer interval must be > 0")
	ErrNotVirtual      = errors.New("set time requires a virtual clock")
)

// RepeatUnbounded makes a timer fire until canceled or stopped.
const RepeatUnbounded = 0

// Handler receives fired time events.
type Handler func(model.TimeEvent)

// Emitter sequences fired time events and publishes them on the time topics.
// bus.MessageBus satisfies it; a clock with no emitter only runs handlers.
type Emitter interface {
	NextSeq() uint64
	Publish(topic string, event model.Event)
}

// TimerSpec describes a recurring timer schedule.
//
// StartNs zero means "first fire after one interval from now". StopNs zero
// means no stop time. Repeat zero means unbounded.
type TimerSpec struct {
	Name     string
	Interval time.Duration
	StartNs  int64
	StopNs   int64
	Repeat   int
}

// Validate checks the spec is usable.
func (s TimerSpec) Validate() error {
	if s.Name == "" {
		return ErrEmptyTimerName
	}
	if s.Interval <= 0 {
		return ErrInvalidInterval
	}
	if s.Repeat < 0 {
		return ErrInvalidInterval
	}
	return nil
}

// Clock produces timestamps and schedules alerts and timers.
//
// Registering an alert or timer under an existing name replaces the prior
// schedule. Canceling a name that never existed or already fired is a no-op.
type Clock interface {
	Now() time.Time
	TimestampNs() int64
	SetAlert(name string, at time.Time, handler Handler) error
	SetTimer(spec TimerSpec, handler Handler) error
	CancelAlert(name string)
	CancelTimer(name string)
	CancelAll()
	TimerNames() []string
	NextAlertNs() int64
	SetEmitter(emitter Emitter)
}
