package model

import "fmt"

// Topic layout shared by adapters, engines and strategies. Adapters publish
// on the same topics in backtest and live mode; the symmetry is what lets a
// venue simulator stand in for a live adapter.
const (
	TopicQuotesAll       = "data.quotes.>"
	TopicTradesAll       = "data.trades.>"
	TopicTimeAll         = "events.time.>"
	TopicOrderEventsAll  = "events.order.>"
	TopicPositionsAll    = "events.position.>"
	TopicVenueReportsAll = "venue.reports.>"
)

// TopicQuotes is the quote stream for one instrument.
func TopicQuotes(instrument InstrumentID) string {
	return fmt.Sprintf("data.quotes.%d", instrument)
}

// TopicTrades is the trade stream for one instrument.
func TopicTrades(instrument InstrumentID) string {
	return fmt.Sprintf("data.trades.%d", instrument)
}

// TopicTime is the stream for one named alert or timer.
func TopicTime(name string) string {
	return fmt.Sprintf("events.time.%s", name)
}

// TopicOrderEvents is the lifecycle stream for one order.
func TopicOrderEvents(id ClientOrderID) string {
	return fmt.Sprintf("events.order.%s", id)
}

// TopicPositionEvents is the lifecycle stream for one position.
func TopicPositionEvents(id PositionID) string {
	return fmt.Sprintf("events.position.%s", id)
}

// TopicVenueReports is the inbound report stream for one order.
func TopicVenueReports(id ClientOrderID) string {
	return fmt.Sprintf("venue.reports.%s", id)
}
