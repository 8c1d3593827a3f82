package bus

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"tradenode/internal/model"
)

var (
	ErrEmptyPattern = errors.New("subscription pattern is empty")
	ErrNilHandler   = errors.New("subscription handler is nil")
)

// Handler receives events delivered by the bus.
type Handler func(topic string, event model.Event)

// Subscription identifies a registered handler for later removal.
type Subscription uint64

// MetricsSink receives bus-level measurements; obs.Metrics satisfies it.
type MetricsSink interface {
	ObserveDispatch(d time.Duration)
	IncHandlerError()
}

type subscriber struct {
	id       Subscription
	pattern  []string
	raw      string
	handler  Handler
	priority int
}

type queuedEvent struct {
	topic string
	event model.Event
}

// MessageBus delivers events synchronously to matching subscribers.
//
// Delivery order is priority descending, then registration order. A handler
// failure is isolated: it is logged and counted but never interrupts
// delivery to the remaining subscribers. Nested publishes issued from inside
// a handler are queued and drained by the outermost Publish call, so one
// publish-and-fanout is a single unit with respect to other publishers.
type MessageBus struct {
	mu          sync.Mutex
	subs        []*subscriber
	nextSub     Subscription
	queue       []queuedEvent
	dispatching bool
	metrics     MetricsSink

	seq           atomic.Uint64
	published     atomic.Uint64
	handlerErrors atomic.Uint64
}

// New creates an empty message bus.
func New() *MessageBus {
	return &MessageBus{}
}

// NextSeq returns the next publish sequence number.
func (b *MessageBus) NextSeq() uint64 {
	return b.seq.Add(1)
}

// SetMetrics attaches a sink for dispatch latency and handler failures.
func (b *MessageBus) SetMetrics(sink MetricsSink) {
	b.mu.Lock()
	b.metrics = sink
	b.mu.Unlock()
}

// Subscribe registers a handler for a topic pattern.
func (b *MessageBus) Subscribe(pattern string, handler Handler, priority int) (Subscription, error) {
	if pattern == "" {
		return 0, ErrEmptyPattern
	}
	if handler == nil {
		return 0, ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	sub := &subscriber{
		id:       b.nextSub,
		pattern:  strings.Split(pattern, "."),
		raw:      pattern,
		handler:  handler,
		priority: priority,
	}
	b.subs = append(b.subs, sub)
	return sub.id, nil
}

// Unsubscribe removes a subscription; unknown IDs are a no-op.
func (b *MessageBus) Unsubscribe(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to every subscriber matching the topic.
func (b *MessageBus) Publish(topic string, event model.Event) {
	b.mu.Lock()
	b.queue = append(b.queue, queuedEvent{topic: topic, event: event})
	if b.dispatching {
		// the active drainer picks this up; units never interleave
		b.mu.Unlock()
		return
	}
	b.dispatching = true
	sink := b.metrics
	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		matched := b.matchedSubscribers(next.topic)
		b.mu.Unlock()

		start := time.Now()
		b.published.Add(1)
		for _, sub := range matched {
			b.deliver(sub, next.topic, next.event, sink)
		}
		if sink != nil {
			sink.ObserveDispatch(time.Since(start))
		}

		b.mu.Lock()
	}
	b.dispatching = false
	b.mu.Unlock()
}

// matchedSubscribers returns matching subscribers in delivery order.
// Caller must hold b.mu.
func (b *MessageBus) matchedSubscribers(topic string) []*subscriber {
	segments := strings.Split(topic, ".")
	var matched []*subscriber
	for _, sub := range b.subs {
		if matchSegments(sub.pattern, segments) {
			matched = append(matched, sub)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].priority > matched[j].priority
	})
	return matched
}

func (b *MessageBus) deliver(sub *subscriber, topic string, event model.Event, sink MetricsSink) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerErrors.Add(1)
			if sink != nil {
				sink.IncHandlerError()
			}
			logs.Errorf("bus: handler for %q failed on topic %s: %v", sub.raw, topic, r)
		}
	}()
	sub.handler(topic, event)
}

// Published returns the number of completed publish units.
func (b *MessageBus) Published() uint64 {
	return b.published.Load()
}

// HandlerErrors returns the number of isolated handler failures.
func (b *MessageBus) HandlerErrors() uint64 {
	return b.handlerErrors.Load()
}

// SubscriptionCount returns the number of active subscriptions.
func (b *MessageBus) SubscriptionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
