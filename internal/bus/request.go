package bus

import (
	"errors"
	"time"

	"tradenode/internal/model"
)

var ErrNoResponse = errors.New("no responder answered the request")

const (
	responseTopicPrefix = "resp."

	// liveResponseWait bounds the wait when another goroutine is draining
	// the bus and will deliver our reply. In backtest mode the reply always
	// arrives before Publish returns and the wait is never taken.
	liveResponseWait = 250 * time.Millisecond
)

// RequestEnvelope wraps a point-to-point query published on the bus.
type RequestEnvelope struct {
	model.EventHeader
	CorrelationID string
	ReplyTopic    string
	Payload       model.Event
}

// Header returns the event header.
func (e RequestEnvelope) Header() model.EventHeader { return e.EventHeader }

// ResponseEnvelope carries a responder's answer back to the requester.
type ResponseEnvelope struct {
	model.EventHeader
	CorrelationID string
	Payload       model.Event
}

// Header returns the event header.
func (e ResponseEnvelope) Header() model.EventHeader { return e.EventHeader }

// Responder answers a request payload with a response payload.
type Responder func(request model.Event) model.Event

// Request publishes a query and returns the synchronously produced response.
//
// The responder must answer from within its handler (the usual case for
// cache/last-quote style queries); otherwise ErrNoResponse is returned.
func (b *MessageBus) Request(topic string, payload model.Event) (model.Event, error) {
	correlationID := model.NewCorrelationID()
	replyTopic := responseTopicPrefix + correlationID

	done := make(chan model.Event, 1)
	sub, err := b.Subscribe(replyTopic, func(_ string, event model.Event) {
		if resp, ok := event.(ResponseEnvelope); ok && resp.CorrelationID == correlationID {
			select {
			case done <- resp.Payload:
			default:
			}
		}
	}, 0)
	if err != nil {
		return nil, err
	}
	defer b.Unsubscribe(sub)

	var header model.EventHeader
	if payload != nil {
		header = payload.Header()
	}
	header.Type = model.EventCommand
	header.Seq = b.NextSeq()
	b.Publish(topic, RequestEnvelope{
		EventHeader:   header,
		CorrelationID: correlationID,
		ReplyTopic:    replyTopic,
		Payload:       payload,
	})

	select {
	case response := <-done:
		return response, nil
	default:
	}
	select {
	case response := <-done:
		return response, nil
	case <-time.After(liveResponseWait):
		return nil, ErrNoResponse
	}
}

// RegisterResponder subscribes a responder on a request topic.
func (b *MessageBus) RegisterResponder(topic string, responder Responder, priority int) (Subscription, error) {
	if responder == nil {
		return 0, ErrNilHandler
	}
	return b.Subscribe(topic, func(_ string, event model.Event) {
		req, ok := event.(RequestEnvelope)
		if !ok {
			return
		}
		answer := responder(req.Payload)
		header := req.EventHeader
		header.Seq = b.NextSeq()
		b.Publish(req.ReplyTopic, ResponseEnvelope{
			EventHeader:   header,
			CorrelationID: req.CorrelationID,
			Payload:       answer,
		})
	}, priority)
}
