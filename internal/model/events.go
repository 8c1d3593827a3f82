package model

// EventHeader is the common metadata attached to every event.
//
// TsEvent is when the real-world occurrence happened, TsInit is when this
// process instantiated the event. Ordering decisions use TsEvent first,
// TsInit as tie-break, then Seq as the final tie-break.
type EventHeader struct {
	Type    EventType
	Seq     uint64
	TsEvent int64
	TsInit  int64
}

// NewHeader builds a header for an event type.
func NewHeader(eventType EventType, seq uint64, tsEvent, tsInit int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Seq:     seq,
		TsEvent: tsEvent,
		TsInit:  tsInit,
	}
}

// Event is implemented by every concrete event in the system.
type Event interface {
	Header() EventHeader
}

// CompareHeaders orders two headers by (TsEvent, TsInit, Seq).
func CompareHeaders(a, b EventHeader) int {
	if a.TsEvent != b.TsEvent {
		if a.TsEvent < b.TsEvent {
			return -1
		}
		return 1
	}
	if a.TsInit != b.TsInit {
		if a.TsInit < b.TsInit {
			return -1
		}
		return 1
	}
	if a.Seq != b.Seq {
		if a.Seq < b.Seq {
			return -1
		}
		return 1
	}
	return 0
}

// TimeEvent is emitted when a clock alert or timer fires.
type TimeEvent struct {
	EventHeader
	Name    string
	IsTimer bool
}

// Header returns the event header.
func (e TimeEvent) Header() EventHeader { return e.EventHeader }
