package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"papertrade/internal/config"
	"papertrade/internal/desk"
	"papertrade/internal/feed"
	"papertrade/internal/model"
	"papertrade/internal/observability"
	"papertrade/internal/persistence"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := observability.NewLogger("main")
		boot.Fatal().Err(err).Msg("load config")
	}

	log := observability.NewLoggerWithLevel("main", observability.ParseLevel(cfg.Logging.Level))
	log.Info().Msg("papertrade starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = observability.NewMetrics(reg)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics server listening")
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	store := buildStore(cfg, log)
	defer store.Close()

	var journal *persistence.Journal
	if cfg.Persistence.JournalPath != "" {
		journal, err = persistence.OpenJournal(cfg.Persistence.JournalPath,
			observability.NewLoggerWithLevel("journal", observability.ParseLevel(cfg.Logging.Level)))
		if err != nil {
			log.Fatal().Err(err).Msg("open journal")
		}
		defer journal.Close()
	}

	d := desk.New(desk.Options{
		InitialBalances:  cfg.Desk.InitialBalances,
		FillConfig:       cfg.Fill,
		FeeConfig:        cfg.Fee,
		Latency:          cfg.Latency.Model(),
		RiskConfig:       cfg.Risk,
		EventLogCapacity: cfg.Desk.EventLogCapacity,
		Store:            store,
		Journal:          journal,
		Logger:           observability.NewLoggerWithLevel("desk", observability.ParseLevel(cfg.Logging.Level)),
		Metrics:          metrics,
	})

	spec := demoSpec()
	marketFeed := feed.NewStaticFeed()
	if err := d.RegisterInstrument(spec, marketFeed); err != nil {
		log.Fatal().Err(err).Msg("register instrument")
	}

	if err := d.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("restore state")
	}

	// Synthetic random-walk market data so the desk runs standalone; a real
	// deployment replaces this with an exchange market-data connection.
	walk := newBookWalk(spec, 65_000, cfg.Fill.Seed)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	log.Info().Str("instrument", spec.ID.Key()).Msg("desk running")
	for {
		select {
		case <-sigChan:
			log.Info().Msg("shutting down")
			now := time.Now()
			d.CancelAll("", "", now)
			d.Tick(ctx, now)
			return
		case now := <-ticker.C:
			marketFeed.SetBook(walk.next(now))
			d.Tick(ctx, now)
		}
	}
}

func buildStore(cfg *config.Config, log zerolog.Logger) persistence.StateStore {
	fileLog := observability.NewLoggerWithLevel("persistence", observability.ParseLevel(cfg.Logging.Level))
	fileStore := persistence.NewFileStore(cfg.Persistence.SnapshotPath, cfg.Persistence.SaveInterval, fileLog)
	if !cfg.Persistence.UseRedis {
		return fileStore
	}

	redisStore, err := persistence.NewRedisStore(cfg.Redis, cfg.Persistence.SaveInterval, fileLog)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	return persistence.NewDualStore(redisStore, fileStore, fileLog)
}

func demoSpec() *model.InstrumentSpec {
	return &model.InstrumentSpec{
		ID: model.InstrumentID{
			Venue: "paper",
			Base:  "BTC",
			Quote: "USDT",
			Type:  model.InstrumentPerp,
		},
		PriceIncrement:     0.1,
		SizeIncrement:      0.001,
		PricePrecision:     1,
		SizePrecision:      3,
		MinQuantity:        0.001,
		MaxQuantity:        100,
		MinNotional:        10,
		MakerFeeRate:       0.0002,
		TakerFeeRate:       0.0005,
		MarginInitRate:     1.0,
		MarginMaintRate:    0.005,
		MaxLeverage:        10,
		FundingIntervalSec: 8 * 3600,
	}
}

// bookWalk generates a seeded random-walk order book around a drifting mid.
type bookWalk struct {
	spec *model.InstrumentSpec
	mid  float64
	rng  *rand.Rand
}

func newBookWalk(spec *model.InstrumentSpec, start float64, seed int64) *bookWalk {
	return &bookWalk{spec: spec, mid: start, rng: rand.New(rand.NewSource(seed))}
}

func (w *bookWalk) next(now time.Time) *model.OrderBookSnapshot {
	w.mid *= 1 + (w.rng.Float64()-0.5)*0.001
	tick := w.spec.PriceIncrement

	book := &model.OrderBookSnapshot{CapturedAt: now}
	for i := 1; i <= 5; i++ {
		size := 0.5 + w.rng.Float64()*2
		book.Bids = append(book.Bids, model.PriceLevel{
			Price: w.mid - tick*float64(i),
			Size:  size,
		})
		book.Asks = append(book.Asks, model.PriceLevel{
			Price: w.mid + tick*float64(i),
			Size:  size,
		})
	}
	return book
}
