// Package valuation folds per-holding prices into portfolio snapshots
// and maintains the append-only value history.
package valuation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"marketpulse/internal/domain"
	"marketpulse/internal/observability"
	"marketpulse/internal/provider"
	"marketpulse/internal/storage"
)

// ErrMalformedHolding reports a holding excluded from aggregation because
// its data is inconsistent (negative amount). It signals an upstream
// data-integrity bug and is surfaced, never swallowed.
var ErrMalformedHolding = errors.New("malformed holding")

// DefaultConcurrency bounds parallel price lookups per refresh.
const DefaultConcurrency = 4

// PriceResolver resolves price quotes. Satisfied by *provider.Resolver.
type PriceResolver interface {
	Resolve(ctx context.Context, req provider.Request) provider.Result
}

// Aggregator recomputes holding prices and produces portfolio snapshots.
// It is the only component that mutates holdings.
type Aggregator struct {
	resolver    PriceResolver
	holdings    storage.HoldingStore
	snapshots   storage.SnapshotStore
	logger      *log.Logger
	metrics     *observability.Metrics
	concurrency int

	// clock is overridable for tests.
	clock func() time.Time
}

// Options contains configuration for creating an Aggregator.
type Options struct {
	Resolver    PriceResolver
	Holdings    storage.HoldingStore
	Snapshots   storage.SnapshotStore
	Logger      *log.Logger
	Metrics     *observability.Metrics
	Concurrency int // parallel price lookups; 0 uses DefaultConcurrency
}

// New creates an Aggregator.
func New(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Aggregator{
		resolver:    opts.Resolver,
		holdings:    opts.Holdings,
		snapshots:   opts.Snapshots,
		logger:      logger,
		metrics:     opts.Metrics,
		concurrency: concurrency,
		clock:       time.Now,
	}
}

// RefreshPrices re-resolves the current price of every holding in the
// portfolio and recomputes PnL. Malformed holdings are excluded and
// reported in the returned error; the refresh itself continues, so one
// bad holding never blocks the rest.
func (a *Aggregator) RefreshPrices(ctx context.Context, portfolioID string) ([]*domain.Holding, error) {
	holdings, err := a.holdings.GetByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}

	var (
		mu        sync.Mutex
		refreshed []*domain.Holding
		malformed []error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, h := range holdings {
		g.Go(func() error {
			if h.Amount.IsNegative() {
				a.metrics.ObserveHoldingExcluded()
				mu.Lock()
				malformed = append(malformed, fmt.Errorf("%w: %s/%s amount %s", ErrMalformedHolding, h.Network, h.Symbol, h.Amount))
				mu.Unlock()
				return nil
			}

			price, ok := a.resolvePrice(ctx, h.Network, h.Symbol)
			if !ok {
				// A missing price leaves the previous one in place.
				a.logger.Printf("price unavailable for %s/%s, keeping last value", h.Network, h.Symbol)
				mu.Lock()
				refreshed = append(refreshed, h)
				mu.Unlock()
				return nil
			}

			h.CurrentPrice = price
			h.Recompute()
			h.UpdatedAt = a.clock().UnixMilli()
			if err := a.holdings.Upsert(ctx, h); err != nil {
				return fmt.Errorf("store holding %s/%s: %w", h.Network, h.Symbol, err)
			}

			mu.Lock()
			refreshed = append(refreshed, h)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refreshed, errors.Join(malformed...)
}

// Snapshot sums holdings into an immutable portfolio snapshot, computes
// the PnL windows, and appends the snapshot to the history series.
// TotalValue always equals the sum of PerNetworkValue.
func (a *Aggregator) Snapshot(ctx context.Context, portfolioID string) (*domain.PortfolioSnapshot, error) {
	holdings, err := a.holdings.GetByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}

	perNetwork := make(map[domain.Network]decimal.Decimal)
	total := decimal.Zero
	pnlAll := decimal.Zero

	for _, h := range holdings {
		if h.Amount.IsNegative() {
			// Excluded from the total rather than corrupting it.
			a.metrics.ObserveHoldingExcluded()
			a.logger.Printf("excluding malformed holding %s/%s from snapshot: amount %s", h.Network, h.Symbol, h.Amount)
			continue
		}
		value := h.Value()
		perNetwork[h.Network] = perNetwork[h.Network].Add(value)
		total = total.Add(value)
		pnlAll = pnlAll.Add(h.PnL)
	}

	now := a.clock()
	snap := &domain.PortfolioSnapshot{
		PortfolioID:     portfolioID,
		TotalValue:      total,
		PerNetworkValue: perNetwork,
		PnLAll:          pnlAll,
		Timestamp:       now.UnixMilli(),
	}
	a.fillWindows(ctx, snap, now)

	if err := a.snapshots.Append(ctx, snap); err != nil {
		return nil, fmt.Errorf("append snapshot: %w", err)
	}

	totalF, _ := total.Float64()
	a.metrics.ObserveSnapshot(portfolioID, totalF, float64(now.Unix()))
	return snap.Clone(), nil
}

// resolvePrice fetches the USD price for one symbol through the chain.
func (a *Aggregator) resolvePrice(ctx context.Context, network domain.Network, symbol string) (decimal.Decimal, bool) {
	res := a.resolver.Resolve(ctx, provider.Request{
		Category: provider.CategoryPrice,
		Network:  network,
		Symbol:   symbol,
	})
	quote, ok := res.Payload.(domain.PriceQuote)
	if !res.OK || !ok {
		return decimal.Zero, false
	}
	return quote.PriceUSD, true
}
