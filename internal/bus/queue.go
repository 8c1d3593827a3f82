package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"tradenode/internal/model"
)

var (
	ErrQueueFull   = errors.New("ingress queue full")
	ErrQueueClosed = errors.New("ingress queue closed")
)

// Inbound pairs a topic with an event handed off by a live adapter.
type Inbound struct {
	Topic string
	Event model.Event
}

// IngressQueue is a bounded, non-blocking handoff from adapter goroutines to
// the node's dispatch loop. Backtests bypass it: the replay driver publishes
// directly.
type IngressQueue struct {
	ch     chan Inbound
	closed uint32
}

// NewIngressQueue allocates a queue with the given capacity.
func NewIngressQueue(capacity int) *IngressQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &IngressQueue{ch: make(chan Inbound, capacity)}
}

// TryPublish enqueues an inbound event without blocking.
func (q *IngressQueue) TryPublish(in Inbound) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- in:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *IngressQueue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run forwards inbound events onto the bus until the context is done or the
// queue is closed.
func (q *IngressQueue) Run(ctx context.Context, target *MessageBus) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-q.ch:
			if !ok {
				return
			}
			target.Publish(in.Topic, in.Event)
		}
	}
}
