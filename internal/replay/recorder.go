package replay

import (
	"sync"

	"tradenode/internal/bus"
	"tradenode/internal/model"
)

// Recorder captures every event crossing a bus so the stream can be replayed
// later. It subscribes at maximal priority, so events are recorded in the
// exact order they were delivered.
type Recorder struct {
	mu       sync.Mutex
	recorded []TimedEvent
	sub      bus.Subscription
	bus      *bus.MessageBus
}

// NewRecorder attaches a recorder to a bus.
func NewRecorder(messageBus *bus.MessageBus) (*Recorder, error) {
	r := &Recorder{bus: messageBus}
	sub, err := messageBus.Subscribe(">", r.capture, int(^uint(0)>>1))
	if err != nil {
		return nil, err
	}
	r.sub = sub
	return r, nil
}

func (r *Recorder) capture(topic string, event model.Event) {
	r.mu.Lock()
	r.recorded = append(r.recorded, TimedEvent{Topic: topic, Event: event})
	r.mu.Unlock()
}

// Stop detaches the recorder from the bus.
func (r *Recorder) Stop() {
	r.bus.Unsubscribe(r.sub)
}

// Events returns a copy of the captured stream; Recorder is a Source.
func (r *Recorder) Events() ([]TimedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TimedEvent, len(r.recorded))
	copy(out, r.recorded)
	return out, nil
}

// Len returns the number of captured events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recorded)
}
