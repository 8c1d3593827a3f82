package model

import "testing"

func TestCompareHeaders(t *testing.T) {
	base := NewHeader(EventOrder, 5, 1000, 1000)

	cases := []struct {
		name string
		a, b EventHeader
		want int
	}{
		{"equal", base, base, 0},
		{"tsEvent wins", NewHeader(EventOrder, 9, 999, 2000), base, -1},
		{"tsEvent wins reversed", NewHeader(EventOrder, 1, 1001, 0), base, 1},
		{"tsInit breaks tie", NewHeader(EventOrder, 9, 1000, 999), base, -1},
		{"seq breaks final tie", NewHeader(EventOrder, 4, 1000, 1000), base, -1},
		{"type is ignored", NewHeader(EventTradeTick, 5, 1000, 1000), base, 0},
	}
	for _, c := range cases {
		if got := CompareHeaders(c.a, c.b); got != c.want {
			t.Errorf("%s: got %d want %d", c.name, got, c.want)
		}
	}
}

func TestInstrumentTopics(t *testing.T) {
	if got := TopicTrades(7); got != "data.trades.7" {
		t.Fatalf("trades topic: got %q", got)
	}
	if got := TopicQuotes(7); got != "data.quotes.7" {
		t.Fatalf("quotes topic: got %q", got)
	}
	if got := TopicOrderEvents("O-1"); got != "events.order.O-1" {
		t.Fatalf("order topic: got %q", got)
	}
	if got := TopicVenueReports("O-1"); got != "venue.reports.O-1" {
		t.Fatalf("report topic: got %q", got)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	venueID, err := reg.AddVenue("SIM")
	if err != nil {
		t.Fatal(err)
	}

	// re-adding a venue returns the existing ID
	again, err := reg.AddVenue("SIM")
	if err != nil {
		t.Fatal(err)
	}
	if again != venueID {
		t.Fatalf("venue re-add: got %d want %d", again, venueID)
	}

	instID, err := reg.AddInstrument("BTC-USD", venueID, Precision{Price: 2, Size: 6})
	if err != nil {
		t.Fatal(err)
	}
	inst, ok := reg.Instrument(instID)
	if !ok || inst.Symbol != "BTC-USD" || inst.VenueID != venueID {
		t.Fatalf("instrument: got %+v", inst)
	}
	if id, ok := reg.InstrumentIDBySymbol("BTC-USD"); !ok || id != instID {
		t.Fatalf("symbol lookup: got %d, %v", id, ok)
	}
	if reg.InstrumentCount() != 1 {
		t.Fatalf("count: got %d", reg.InstrumentCount())
	}

	if _, err := reg.AddInstrument("ETH-USD", VenueID(99), Precision{}); err == nil {
		t.Fatal("expected error for unknown venue")
	}
	if _, err := reg.AddVenue(""); err == nil {
		t.Fatal("expected error for empty venue name")
	}
	if _, ok := reg.Instrument(0); ok {
		t.Fatal("zero instrument ID should not resolve")
	}
}
