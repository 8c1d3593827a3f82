package obs

import (
	"tradenode/internal/bus"
	"tradenode/internal/model"
)

// Observer feeds bus traffic into a metrics container.
type Observer struct {
	metrics *Metrics
	bus     *bus.MessageBus
	sub     bus.Subscription
}

// Attach subscribes an observer to every topic on the bus and registers the
// metrics container as the bus's measurement sink.
func Attach(messageBus *bus.MessageBus, metrics *Metrics) (*Observer, error) {
	o := &Observer{metrics: metrics, bus: messageBus}
	sub, err := messageBus.Subscribe(">", func(_ string, event model.Event) {
		metrics.ObserveEvent(event.Header())
	}, 0)
	if err != nil {
		return nil, err
	}
	messageBus.SetMetrics(metrics)
	o.sub = sub
	return o, nil
}

// Detach removes the observer's subscription.
func (o *Observer) Detach() {
	o.bus.Unsubscribe(o.sub)
}
