package replay

import (
	"context"
	"errors"
	"sort"

	"tradenode/internal/bus"
	"tradenode/internal/clock"
	"tradenode/internal/model"
)

var (
	ErrNilSource = errors.New("replay source is nil")
	ErrNilClock  = errors.New("replay clock is nil")
)

// TimedEvent pairs a recorded event with the topic it was published on.
type TimedEvent struct {
	Topic string
	Event model.Event
}

// Source yields the recorded events to replay.
type Source interface {
	Events() ([]TimedEvent, error)
}

// SliceSource replays an in-memory event slice.
type SliceSource []TimedEvent

// Events returns the slice unmodified.
func (s SliceSource) Events() ([]TimedEvent, error) { return s, nil }

// Driver replays a recorded stream deterministically: events are ordered by
// (TsEvent, TsInit, Seq), the virtual clock is advanced to each event's
// timestamp so that due timers and alerts fire first, then the event is
// published. Two runs over the same input produce the same delivery sequence.
type Driver struct {
	bus    *bus.MessageBus
	clock  *clock.VirtualClock
	source Source

	replayed uint64
}

// NewDriver wires a replay driver to a bus and a clock, which must be
// virtual: replay cannot steer wall time. Fired schedules are sequenced and
// published through the driver's bus.
func NewDriver(messageBus *bus.MessageBus, clk clock.Clock, source Source) (*Driver, error) {
	if clk == nil {
		return nil, ErrNilClock
	}
	virtual, ok := clk.(*clock.VirtualClock)
	if !ok {
		return nil, clock.ErrNotVirtual
	}
	if source == nil {
		return nil, ErrNilSource
	}
	if messageBus != nil {
		virtual.SetEmitter(messageBus)
	}
	return &Driver{bus: messageBus, clock: virtual, source: source}, nil
}

// Run replays every event from the source in deterministic order.
func (d *Driver) Run(ctx context.Context) error {
	events, err := d.source.Events()
	if err != nil {
		return err
	}
	sorted := make([]TimedEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return model.CompareHeaders(sorted[i].Event.Header(), sorted[j].Event.Header()) < 0
	})

	for _, te := range sorted {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ts := te.Event.Header().TsEvent
		if ts > d.clock.TimestampNs() {
			if err := d.clock.AdvanceToNs(ts); err != nil {
				return err
			}
		}
		d.bus.Publish(te.Topic, te.Event)
		d.replayed++
	}
	return nil
}

// Drain advances the clock past the last event to flush trailing timers.
func (d *Driver) Drain(untilNs int64) error {
	if untilNs <= d.clock.TimestampNs() {
		return nil
	}
	return d.clock.AdvanceToNs(untilNs)
}

// Replayed returns the number of events published so far.
func (d *Driver) Replayed() uint64 { return d.replayed }
