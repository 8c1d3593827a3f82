package obs

import (
	"sync/atomic"
	"time"

	"tradenode/internal/model"
	"tradenode/internal/risk"
)

const (
	maxEventType  = int(model.EventCommand)
	maxDenyReason = int(risk.ReasonPriceBand)
)

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	eventCounts      [maxEventType + 1]uint64
	denyReasonCounts [maxDenyReason + 1]uint64
	timerFires       uint64
	handlerErrors    uint64

	dispatchLatency  LatencyStats
	orderFlowLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts      map[model.EventType]uint64
	DenyReasonCounts map[risk.Reason]uint64
	TimerFires       uint64
	HandlerErrors    uint64
	DispatchLatency  LatencySnapshot
	OrderFlowLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts a delivered event by type.
func (m *Metrics) ObserveEvent(header model.EventHeader) {
	if m == nil {
		return
	}
	idx := int(header.Type)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
	if header.Type == model.EventTime {
		atomic.AddUint64(&m.timerFires, 1)
	}
}

// IncDenyReason counts a risk gate denial by reason.
func (m *Metrics) IncDenyReason(reason risk.Reason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.denyReasonCounts) {
		atomic.AddUint64(&m.denyReasonCounts[idx], 1)
	}
}

// IncHandlerError counts an isolated subscriber failure.
func (m *Metrics) IncHandlerError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.handlerErrors, 1)
}

// ObserveDispatch measures one publish-and-fanout unit.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(d)
}

// ObserveOrderFlow measures submit-to-terminal order latency.
func (m *Metrics) ObserveOrderFlow(d time.Duration) {
	if m == nil {
		return
	}
	m.orderFlowLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[model.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[model.EventType(i)] = v
		}
	}
	denyCounts := make(map[risk.Reason]uint64)
	for i := range m.denyReasonCounts {
		if v := atomic.LoadUint64(&m.denyReasonCounts[i]); v > 0 {
			denyCounts[risk.Reason(i)] = v
		}
	}
	return Snapshot{
		EventCounts:      eventCounts,
		DenyReasonCounts: denyCounts,
		TimerFires:       atomic.LoadUint64(&m.timerFires),
		HandlerErrors:    atomic.LoadUint64(&m.handlerErrors),
		DispatchLatency:  m.dispatchLatency.Snapshot(),
		OrderFlowLatency: m.orderFlowLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
