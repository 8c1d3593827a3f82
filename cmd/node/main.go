package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tradenode/internal/bus"
	"tradenode/internal/cache"
	"tradenode/internal/clock"
	"tradenode/internal/exec"
	"tradenode/internal/model"
	"tradenode/internal/obs"
	"tradenode/internal/ops"
	"tradenode/internal/order"
	"tradenode/internal/replay"
	"tradenode/internal/risk"
)

type emptyLogger struct{}

func (emptyLogger) Infof(string, ...interface{})  {}
func (emptyLogger) Debugf(string, ...interface{}) {}
func (emptyLogger) Errorf(string, ...interface{}) {}

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	mode := flag.String("mode", "backtest", "Run mode: backtest or live")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disabled)")
	runFor := flag.Duration("run-for", 0, "Live run duration (0=until signal)")
	flag.Parse()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "tradenode",
			ServerAddress:   *pyroscopeAddr,
			Tags: map[string]string{
				"mode": *mode,
			},
			Logger: emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	switch *mode {
	case "backtest":
		if err := runBacktest(loaded); err != nil {
			log.Fatalf("backtest failed: %v", err)
		}
	case "live":
		if err := runLive(loaded, *runFor); err != nil {
			log.Fatalf("live run failed: %v", err)
		}
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path != "" {
		return ops.Load(path)
	}
	registry := model.NewRegistry()
	venueID, err := registry.AddVenue("SIM")
	if err != nil {
		return ops.Loaded{}, err
	}
	if _, err := registry.AddInstrument("BTC-USD", venueID, model.Precision{Price: 2, Size: 6}); err != nil {
		return ops.Loaded{}, err
	}
	return ops.Loaded{
		Registry: registry,
		Risk: risk.Config{
			MaxOrderQty:      decimal.NewFromInt(100),
			MaxOrderNotional: decimal.NewFromInt(10_000_000),
		},
		Features: ops.FeatureFlags{EnableEmulator: true, EnableTWAP: true, EnableMetrics: true},
	}, nil
}

type node struct {
	bus       *bus.MessageBus
	cache     *cache.Cache
	engine    *exec.Engine
	portfolio *exec.PortfolioEngine
	gtd       *exec.GTDController
	venue     *exec.SimVenue
	metrics   *obs.Metrics
}

// buildNode assembles the full pipeline on one bus and clock.
func buildNode(loaded ops.Loaded, clk clock.Clock) (*node, error) {
	messageBus := bus.New()
	clk.SetEmitter(messageBus)
	snapshots := cache.New()
	if loaded.Store != nil {
		store, err := cache.NewStore(*loaded.Store)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		snapshots.WithStore(store)
	}

	venue := exec.NewSimVenue(exec.SimVenueConfig{}, messageBus, clk)

	opts := exec.Options{EnableEmulator: loaded.Features.EnableEmulator}
	if loaded.Features.EnableTWAP {
		opts.Algorithms = append(opts.Algorithms, exec.NewTWAP())
	}
	var metrics *obs.Metrics
	if loaded.Features.EnableMetrics {
		metrics = obs.NewMetrics()
		opts.Metrics = metrics
		if _, err := obs.Attach(messageBus, metrics); err != nil {
			return nil, err
		}
	}

	engine := exec.NewEngine(messageBus, clk, snapshots, risk.NewGate(loaded.Risk), venue, opts)
	portfolio := exec.NewPortfolioEngine(messageBus, clk, snapshots)
	gtd := exec.NewGTDController(engine)

	for _, start := range []func() error{engine.Start, portfolio.Start, gtd.Start, venue.Start} {
		if err := start(); err != nil {
			return nil, err
		}
	}
	return &node{
		bus:       messageBus,
		cache:     snapshots,
		engine:    engine,
		portfolio: portfolio,
		gtd:       gtd,
		venue:     venue,
		metrics:   metrics,
	}, nil
}

// runBacktest replays a synthetic session through the virtual clock and
// prints the resulting portfolio.
func runBacktest(loaded ops.Loaded) error {
	start := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)
	virtual := clock.NewVirtualClock(start)
	n, err := buildNode(loaded, virtual)
	if err != nil {
		return err
	}

	instrument, ok := loaded.Registry.InstrumentIDBySymbol("BTC-USD")
	if !ok {
		inst, found := loaded.Registry.Instrument(1)
		if !found {
			return fmt.Errorf("registry has no instruments")
		}
		instrument = inst.ID
	}

	driver, err := replay.NewDriver(n.bus, virtual, demoSession(instrument, start))
	if err != nil {
		return err
	}

	// a resting limit buy and an emulated stop buy, both working before the
	// session starts
	if err := n.engine.Submit(order.Config{
		ClientOrderID: "demo-limit-1",
		InstrumentID:  instrument,
		StrategyID:    1,
		Side:          model.OrderSideBuy,
		Type:          model.OrderTypeLimit,
		Quantity:      decimal.NewFromInt(2),
		Price:         decimal.NewFromInt(99),
		TimeInForce:   model.TimeInForceGTC,
	}); err != nil {
		return err
	}
	if err := n.engine.Submit(order.Config{
		ClientOrderID:    "demo-stop-1",
		InstrumentID:     instrument,
		StrategyID:       1,
		Side:             model.OrderSideBuy,
		Type:             model.OrderTypeMarket,
		Quantity:         decimal.NewFromInt(1),
		TriggerPrice:     decimal.NewFromInt(104),
		EmulationTrigger: model.TriggerLastTrade,
		TimeInForce:      model.TimeInForceGTC,
	}); err != nil {
		return err
	}

	if err := driver.Run(context.Background()); err != nil {
		return err
	}
	if err := driver.Drain(start.Add(time.Hour).UnixNano()); err != nil {
		return err
	}

	log.Printf("replayed %d events", driver.Replayed())
	for _, o := range []model.ClientOrderID{"demo-limit-1", "demo-stop-1"} {
		if ord, found := n.cache.Order(o); found {
			log.Printf("order %s: status=%s filled=%s avgPx=%s",
				o, ord.Status, ord.FilledQty, ord.AvgPx)
		}
	}
	for _, p := range n.cache.Positions() {
		log.Printf("position %s: status=%s qty=%s avgOpen=%s realized=%s",
			p.ID, p.Status, p.Quantity, p.AvgPxOpen, p.RealizedPnL)
	}
	if n.metrics != nil {
		snap := n.metrics.Snapshot()
		log.Printf("events=%v denies=%v timerFires=%d",
			snap.EventCounts, snap.DenyReasonCounts, snap.TimerFires)
	}
	return nil
}

// demoSession fabricates a short price path: a dip through 99 fills the
// resting limit, the run-up through 104 releases the stop.
func demoSession(instrument model.InstrumentID, start time.Time) replay.SliceSource {
	prices := []int64{101, 100, 99, 100, 102, 104, 105, 103}
	var events []replay.TimedEvent
	for i, px := range prices {
		ts := start.Add(time.Duration(i+1) * time.Second).UnixNano()
		price := decimal.NewFromInt(px)
		half := decimal.NewFromFloat(0.5)
		events = append(events, replay.TimedEvent{
			Topic: model.TopicQuotes(instrument),
			Event: model.QuoteTick{
				EventHeader:  model.NewHeader(model.EventQuoteTick, uint64(i*2+1), ts, ts),
				InstrumentID: instrument,
				BidPrice:     price.Sub(half),
				AskPrice:     price.Add(half),
				BidSize:      decimal.NewFromInt(10),
				AskSize:      decimal.NewFromInt(10),
			},
		})
		events = append(events, replay.TimedEvent{
			Topic: model.TopicTrades(instrument),
			Event: model.TradeTick{
				EventHeader:   model.NewHeader(model.EventTradeTick, uint64(i*2+2), ts+1, ts+1),
				InstrumentID:  instrument,
				Price:         price,
				Size:          decimal.NewFromInt(5),
				AggressorSide: model.OrderSideBuy,
				TradeID:       model.TradeID(fmt.Sprintf("demo-%d", i+1)),
			},
		})
	}
	return replay.SliceSource(events)
}

// runLive drives the same pipeline from a wall clock and an ingress queue.
func runLive(loaded ops.Loaded, runFor time.Duration) error {
	live := clock.NewLiveClock()
	n, err := buildNode(loaded, live)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if runFor > 0 {
		ctx, cancel = context.WithTimeout(ctx, runFor)
		defer cancel()
	}

	queue := bus.NewIngressQueue(4096)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		queue.Run(ctx, n.bus)
		return nil
	})
	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sig)
		select {
		case <-ctx.Done():
		case s := <-sig:
			log.Printf("signal %v, shutting down", s)
			queue.Close()
			cancel()
		}
		return nil
	})

	log.Printf("live node up, %d instruments", loaded.Registry.InstrumentCount())
	err = group.Wait()
	n.engine.Stop()
	live.CancelAll()
	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return err
	}
	return nil
}
