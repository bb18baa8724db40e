package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/signalbot/config"
	"github.com/alejandrodnm/signalbot/internal/adapters/catalog"
	"github.com/alejandrodnm/signalbot/internal/adapters/events"
	"github.com/alejandrodnm/signalbot/internal/adapters/notify"
	"github.com/alejandrodnm/signalbot/internal/adapters/pricefeed"
	"github.com/alejandrodnm/signalbot/internal/adapters/storage"
	"github.com/alejandrodnm/signalbot/internal/application/engine"
	"github.com/alejandrodnm/signalbot/internal/application/mapper"
	appsignal "github.com/alejandrodnm/signalbot/internal/application/signal"
	"github.com/alejandrodnm/signalbot/internal/application/strategy"
	"github.com/alejandrodnm/signalbot/internal/domain"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one trading cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print trade closes and portfolio as tables")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("signalbot starting",
		"config", *configPath,
		"interval", cfg.CycleInterval(),
		"strategy", cfg.Trader.Strategy,
		"once", *once,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	pf, err := restorePortfolio(store, cfg)
	if err != nil {
		slog.Error("failed to restore portfolio", "err", err)
		os.Exit(1)
	}

	source, err := events.NewJSONLSource(cfg.Feeds.EventsPath)
	if err != nil {
		slog.Error("failed to open event feed", "err", err, "path", cfg.Feeds.EventsPath)
		os.Exit(1)
	}
	defer source.Close()

	markets, err := catalog.NewYAMLProvider(cfg.Feeds.CatalogPath, cfg.CatalogTTL())
	if err != nil {
		slog.Error("failed to load market catalog", "err", err, "path", cfg.Feeds.CatalogPath)
		os.Exit(1)
	}

	strat, err := strategy.New(cfg.Trader.Strategy)
	if err != nil {
		slog.Error("invalid strategy", "err", err, "strategy", cfg.Trader.Strategy)
		os.Exit(1)
	}

	prices := pricefeed.NewProvider(
		pricefeed.NewClient(cfg.Feeds.GammaBase),
		pricefeed.ProviderConfig{
			Workers:      cfg.Feeds.PriceWorkers,
			BatchTimeout: time.Duration(cfg.Feeds.PriceTimeoutSecs) * time.Second,
			CacheTTL:     time.Duration(cfg.Feeds.PriceCacheTTLSecs) * time.Second,
		},
	)

	notifier := notify.NewConsole(*table)

	e := engine.New(
		source,
		prices,
		markets,
		notifier,
		store,
		mapper.New(mapper.Config{
			FuzzyThreshold: cfg.Signals.FuzzyMatchThreshold,
			MinRelevance:   cfg.Signals.MinRelevance,
			MaxMatches:     cfg.Signals.MaxMatches,
		}),
		appsignal.New(appsignal.Config{
			MinConfidence:      cfg.Signals.MinConfidence,
			MaxExpectedMove:    cfg.Signals.MaxExpectedMove,
			DirectionThreshold: cfg.Signals.DirectionThreshold,
			MinLiquidity:       cfg.Signals.MinLiquidity,
		}),
		strat,
		engine.NewDecider(engine.DecisionConfig{
			MinConfidence:     cfg.Signals.DecisionConfidence,
			MinExpectedReturn: cfg.Signals.MinExpectedReturn,
		}),
		engine.NewExitMonitor(engine.ExitConfig{
			TakeProfitPct: cfg.Exits.TakeProfitPct,
			StopLossPct:   cfg.Exits.StopLossPct,
			MaxHold:       cfg.MaxHold(),
		}),
		pf,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, e, notifier, cfg.CycleInterval(), *once); err != nil {
		slog.Error("trader exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("signalbot stopped cleanly")
}

// run ejecuta ciclos hasta que el contexto se cancele (o uno solo con once).
func run(ctx context.Context, e *engine.Engine, notifier *notify.Console, interval time.Duration, once bool) error {
	cycle := func() {
		result, err := e.RunOnce(ctx)
		if err != nil {
			slog.Error("trader: cycle failed", "err", err)
			return
		}
		slog.Info("trader: cycle complete",
			"events", result.EventsProcessed,
			"rejected", result.EventsRejected,
			"matches", result.MatchesFound,
			"signals", result.SignalsGenerated,
			"decisions", result.Decisions,
			"opened", result.PositionsOpened,
			"closed", len(result.PositionsClosed),
			"prices_missing", result.PricesMissing,
			"elapsed", result.Elapsed,
		)
		notifier.PortfolioSummary(e.Portfolio().Summarize(nil))
	}

	cycle()
	if once {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cycle()
		}
	}
}

// restorePortfolio retoma el último snapshot persistido, o arranca uno nuevo
// con el balance inicial configurado si es la primera ejecución.
func restorePortfolio(store *storage.SQLiteStorage, cfg *config.Config) (*domain.Portfolio, error) {
	snap, ok, err := store.LoadPortfolio(context.Background())
	if err != nil {
		return nil, err
	}
	limits := domain.Limits{
		MaxOpenPositions: cfg.Portfolio.MaxOpenPositions,
		MaxPositionPct:   cfg.Portfolio.MaxPositionPct,
	}
	if !ok {
		slog.Info("trader: starting fresh portfolio", "balance", cfg.Portfolio.InitialBalance)
		return domain.NewPortfolio(cfg.Portfolio.InitialBalance, limits, time.Now()), nil
	}

	pf, err := domain.Restore(snap)
	if err != nil {
		return nil, err
	}
	slog.Info("trader: portfolio restored",
		"balance", snap.Balance,
		"open_positions", len(snap.Positions),
		"trades", len(snap.History),
	)
	return pf, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
