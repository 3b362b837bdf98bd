package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"marketpulse/internal/cache"
	"marketpulse/internal/classifier"
	"marketpulse/internal/config"
	"marketpulse/internal/domain"
	"marketpulse/internal/engine"
	"marketpulse/internal/observability"
	"marketpulse/internal/provider"
	"marketpulse/internal/scheduler"
	"marketpulse/internal/storage"
	chstore "marketpulse/internal/storage/clickhouse"
	"marketpulse/internal/storage/memory"
	"marketpulse/internal/storage/migrations"
	pgstore "marketpulse/internal/storage/postgres"
	"marketpulse/internal/valuation"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (empty uses defaults)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for the whale store")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the snapshot store")
	useMemory := flag.Bool("use-memory", false, "Force in-memory storage even when DSNs are set")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config; empty keeps config)")

	flag.Parse()

	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lshortfile)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	metrics := observability.NewMetrics("marketpulse")

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, metrics, cfg, *postgresDSN, *clickhouseDSN, *useMemory)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadAndValidate(path)
}

func run(ctx context.Context, logger *log.Logger, metrics *observability.Metrics, cfg *config.Config, postgresDSN, clickhouseDSN string, useMemory bool) error {
	// Stores default to memory; DSN flags swap in the durable backends.
	var whaleStore storage.WhaleStore = memory.NewWhaleStore()
	var snapshotStore storage.SnapshotStore = memory.NewSnapshotStore()
	portfolioStore := memory.NewPortfolioStore()
	holdingStore := memory.NewHoldingStore()
	insightStore := memory.NewInsightStore()
	signalStore := memory.NewSignalStore()

	if !useMemory && postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}
		whaleStore = pgstore.NewWhaleStore(pool)
		logger.Println("Whale store: postgres")
	}

	if !useMemory && clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		defer conn.Close()

		snapshotStore = chstore.NewSnapshotStore(conn)
		logger.Println("Snapshot store: clickhouse")
	}

	cacheOpts := []cache.Option{cache.WithMetrics(metrics)}
	if sweep := cfg.Cache.SweepInterval.Std(); sweep > 0 {
		cacheOpts = append(cacheOpts, cache.WithSweepInterval(sweep))
	}
	dataCache := cache.New(cacheOpts...)
	defer dataCache.Close()

	health := provider.NewHealthTracker(cfg.Providers.Breaker.FailureThreshold, cfg.Providers.Breaker.Cooldown.Std())

	resolver := provider.NewResolver(provider.ResolverOptions{
		Cache:   dataCache,
		Health:  health,
		Logger:  logger,
		Metrics: metrics,
		TTLs: map[provider.Category]time.Duration{
			provider.CategoryPrice:    cfg.Cache.PriceTTL.Std(),
			provider.CategoryBalances: cfg.Cache.BalanceTTL.Std(),
			provider.CategoryEvents:   cfg.Cache.EventTTL.Std(),
			provider.CategoryInsights: cfg.Cache.FeedTTL.Std(),
			provider.CategorySignals:  cfg.Cache.FeedTTL.Std(),
		},
	})

	closeAdapters, err := registerAdapters(ctx, resolver, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAdapters()

	rules, err := buildRules(cfg.Networks)
	if err != nil {
		return fmt.Errorf("build classification rules: %w", err)
	}

	whaleClassifier := classifier.New(classifier.Options{
		Resolver: resolver,
		Whales:   whaleStore,
		Rules:    rules,
		Logger:   logger,
		Metrics:  metrics,
	})

	aggregator := valuation.New(valuation.Options{
		Resolver:  resolver,
		Holdings:  holdingStore,
		Snapshots: snapshotStore,
		Logger:    logger,
		Metrics:   metrics,
	})

	sched := scheduler.New(scheduler.Options{
		Logger:  logger,
		Metrics: metrics,
	})

	eng, err := engine.New(engine.Options{
		Portfolios: portfolioStore,
		Holdings:   holdingStore,
		Whales:     whaleStore,
		Snapshots:  snapshotStore,
		Insights:   insightStore,
		Signals:    signalStore,
		Resolver:   resolver,
		Classifier: whaleClassifier,
		Valuation:  aggregator,
		Scheduler:  sched,
		Jobs:       cfg.Jobs,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	logger.Println("Engine started")

	<-ctx.Done()

	if err := eng.Stop(); err != nil {
		return fmt.Errorf("stop engine: %w", err)
	}
	return ctx.Err()
}

// registerAdapters builds the provider chains from config and installs the
// simulated generator as the terminal fallback of every category. The
// returned cleanup releases any streaming connections.
func registerAdapters(ctx context.Context, resolver *provider.Resolver, cfg *config.Config, logger *log.Logger) (func(), error) {
	cleanup := func() {}

	for _, ep := range cfg.Providers.Quotes {
		resolver.Register(provider.CategoryPrice, provider.NewQuoteHTTP(ep.Name, ep.Priority, ep.URL, ep.APIKey))
	}

	if stream := cfg.Providers.QuoteStream; stream.Enabled {
		feed, err := provider.NewWSQuoteFeed(ctx, stream.Name, stream.Priority, stream.URL, nil, logger)
		if err != nil {
			// A dead stream endpoint never blocks startup; REST quotes cover it.
			logger.Printf("Quote stream %s unavailable: %v", stream.Name, err)
		} else {
			resolver.Register(provider.CategoryPrice, feed)
			cleanup = func() {
				if err := feed.Close(); err != nil {
					logger.Printf("Close quote stream: %v", err)
				}
			}
		}
	}

	for _, ep := range cfg.Providers.Explorers {
		network := domain.Network(ep.Network)
		if !network.IsValid() {
			return cleanup, fmt.Errorf("explorer %s: unknown network %q", ep.Name, ep.Network)
		}
		adapter := provider.NewExplorerHTTP(ep.Name, ep.Priority, ep.URL, ep.APIKey, network)
		resolver.RegisterNetwork(provider.CategoryEvents, network, adapter)
		resolver.RegisterNetwork(provider.CategoryBalances, network, adapter)
	}

	for _, ep := range cfg.Providers.Staking {
		resolver.RegisterNetwork(provider.CategoryEvents, domain.NetworkTao,
			provider.NewStakeHTTP(ep.Name, ep.Priority, ep.URL, ep.APIKey))
	}

	sim := provider.NewSimulated(cfg.Providers.SimSeed)
	for _, cat := range []provider.Category{
		provider.CategoryPrice,
		provider.CategoryBalances,
		provider.CategoryEvents,
		provider.CategoryInsights,
		provider.CategorySignals,
	} {
		resolver.SetTerminal(cat, sim)
	}

	return cleanup, nil
}

// buildRules converts per-network config into classification rules.
func buildRules(networks map[string]config.NetworkConfig) (map[domain.Network]classifier.NetworkRule, error) {
	rules := make(map[domain.Network]classifier.NetworkRule, len(networks))
	for name, nc := range networks {
		network := domain.Network(name)
		if !network.IsValid() {
			return nil, fmt.Errorf("unknown network %q", name)
		}

		transfer, err := decimal.NewFromString(nc.TransferThresholdUSD)
		if err != nil {
			return nil, fmt.Errorf("network %s: parse transfer threshold: %w", name, err)
		}
		stake, err := decimal.NewFromString(nc.StakeThresholdUSD)
		if err != nil {
			return nil, fmt.Errorf("network %s: parse stake threshold: %w", name, err)
		}

		excluded := make(map[string]struct{}, len(nc.ExcludedTokens))
		for _, token := range nc.ExcludedTokens {
			excluded[token] = struct{}{}
		}
		venues := make(map[string]struct{}, len(nc.VenueAddresses))
		for _, addr := range nc.VenueAddresses {
			venues[addr] = struct{}{}
		}

		rules[network] = classifier.NetworkRule{
			TransferThreshold: transfer,
			StakeThreshold:    stake,
			ExcludedTokens:    excluded,
			VenueAddresses:    venues,
		}
	}
	return rules, nil
}
