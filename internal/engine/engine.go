// Package engine wires the scheduler, provider chains, classifier and
// valuation aggregator into one background market-data engine, and exposes
// the read operations consumed by the UI layer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/classifier"
	"marketpulse/internal/config"
	"marketpulse/internal/domain"
	"marketpulse/internal/observability"
	"marketpulse/internal/provider"
	"marketpulse/internal/scheduler"
	"marketpulse/internal/storage"
	"marketpulse/internal/valuation"
)

// Job names registered with the scheduler.
const (
	JobWhaleScan         = "whale-scan"
	JobPriceRefresh      = "price-refresh"
	JobPortfolioSnapshot = "portfolio-snapshot"
	JobInsightRefresh    = "insight-refresh"
)

// Engine owns the background jobs and the stores they feed.
type Engine struct {
	portfolios storage.PortfolioStore
	holdings   storage.HoldingStore
	whales     storage.WhaleStore
	snapshots  storage.SnapshotStore
	insights   storage.InsightStore
	signals    storage.SignalStore

	resolver   *provider.Resolver
	classifier *classifier.Classifier
	valuation  *valuation.Aggregator
	sched      *scheduler.Scheduler

	jobs    config.JobsConfig
	logger  *log.Logger
	metrics *observability.Metrics

	// clock is overridable for tests.
	clock func() time.Time
}

// Options contains the collaborators for creating an Engine.
type Options struct {
	Portfolios storage.PortfolioStore
	Holdings   storage.HoldingStore
	Whales     storage.WhaleStore
	Snapshots  storage.SnapshotStore
	Insights   storage.InsightStore
	Signals    storage.SignalStore

	Resolver   *provider.Resolver
	Classifier *classifier.Classifier
	Valuation  *valuation.Aggregator
	Scheduler  *scheduler.Scheduler

	Jobs    config.JobsConfig
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// New creates an Engine and registers its jobs with the scheduler.
// Registration fails fast on a misconfigured interval.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	e := &Engine{
		portfolios: opts.Portfolios,
		holdings:   opts.Holdings,
		whales:     opts.Whales,
		snapshots:  opts.Snapshots,
		insights:   opts.Insights,
		signals:    opts.Signals,
		resolver:   opts.Resolver,
		classifier: opts.Classifier,
		valuation:  opts.Valuation,
		sched:      opts.Scheduler,
		jobs:       opts.Jobs,
		logger:     logger,
		metrics:    opts.Metrics,
		clock:      time.Now,
	}

	for _, j := range []scheduler.Job{
		{Name: JobWhaleScan, Interval: e.jobs.WhaleScan.Std(), Handler: e.scanWhales},
		{Name: JobPriceRefresh, Interval: e.jobs.PriceRefresh.Std(), Handler: e.refreshPrices},
		{Name: JobPortfolioSnapshot, Interval: e.jobs.PortfolioSnapshot.Std(), Handler: e.snapshotPortfolios},
		{Name: JobInsightRefresh, Interval: e.jobs.InsightRefresh.Std(), Handler: e.refreshFeeds},
	} {
		if err := e.sched.Register(j); err != nil {
			return nil, fmt.Errorf("register job %s: %w", j.Name, err)
		}
	}

	return e, nil
}

// Start begins running the background jobs.
func (e *Engine) Start(ctx context.Context) error {
	return e.sched.Start(ctx)
}

// Stop gracefully shuts down the background jobs.
func (e *Engine) Stop() error {
	return e.sched.Stop()
}

// RegisterPortfolio creates an empty portfolio for a user and returns its id.
func (e *Engine) RegisterPortfolio(ctx context.Context, userID string) (string, error) {
	p := &domain.Portfolio{
		ID:        uuid.NewString(),
		UserID:    userID,
		Addresses: make(map[domain.Network]string),
		CreatedAt: e.clock().UnixMilli(),
	}
	if err := e.portfolios.Create(ctx, p); err != nil {
		return "", fmt.Errorf("create portfolio: %w", err)
	}
	return p.ID, nil
}

// SetWalletAddresses replaces the portfolio's wallet addresses and
// triggers an on-demand holdings refresh for the changed networks.
func (e *Engine) SetWalletAddresses(ctx context.Context, portfolioID string, addrs map[domain.Network]string) error {
	for network := range addrs {
		if !network.IsValid() {
			return fmt.Errorf("%w: unknown network %s", storage.ErrInvalidInput, network)
		}
	}
	if err := e.portfolios.UpdateAddresses(ctx, portfolioID, addrs); err != nil {
		return err
	}
	return e.refreshHoldings(ctx, portfolioID, addrs)
}

// GetWalletAddresses returns the wallet addresses tracked for a portfolio.
func (e *Engine) GetWalletAddresses(ctx context.Context, portfolioID string) (map[domain.Network]string, error) {
	p, err := e.portfolios.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	return p.Addresses, nil
}

// GetPortfolioSnapshot returns the portfolio's current snapshot. The last
// appended snapshot is served when present; otherwise one is computed.
func (e *Engine) GetPortfolioSnapshot(ctx context.Context, portfolioID string) (*domain.PortfolioSnapshot, error) {
	latest, err := e.snapshots.Latest(ctx, portfolioID, 1)
	if err != nil {
		return nil, err
	}
	if len(latest) > 0 {
		return latest[0], nil
	}

	snap, err := e.valuation.Snapshot(ctx, portfolioID)
	if err != nil {
		// A concurrent reader or the snapshot job may have appended first;
		// the store rejects the out-of-order duplicate, so serve theirs.
		if errors.Is(err, storage.ErrInvalidInput) {
			if latest, lerr := e.snapshots.Latest(ctx, portfolioID, 1); lerr == nil && len(latest) > 0 {
				return latest[0], nil
			}
		}
		return nil, err
	}
	return snap, nil
}

// GetPortfolioHistory returns up to limit snapshots, most recent first.
func (e *Engine) GetPortfolioHistory(ctx context.Context, portfolioID string, limit int) ([]*domain.PortfolioSnapshot, error) {
	return e.snapshots.Latest(ctx, portfolioID, limit)
}

// GetWhaleTransactions returns up to limit admitted whale transactions,
// most recent first.
func (e *Engine) GetWhaleTransactions(ctx context.Context, limit int) ([]*domain.WhaleTransaction, error) {
	return e.whales.Latest(ctx, limit)
}

// GetMarketInsights returns up to limit insights, most recent first.
func (e *Engine) GetMarketInsights(ctx context.Context, limit int) ([]*domain.MarketInsight, error) {
	return e.insights.Latest(ctx, limit)
}

// GetTradeSignals returns up to limit trade signals, most recent first.
func (e *Engine) GetTradeSignals(ctx context.Context, limit int) ([]*domain.TradeSignal, error) {
	return e.signals.Latest(ctx, limit)
}
