package engine

import (
	"context"
	"errors"
	"fmt"

	"marketpulse/internal/domain"
	"marketpulse/internal/provider"
	"marketpulse/internal/storage"
)

// eventScanLimit bounds how many chain events one scan pass pulls per network.
const eventScanLimit = 50

// scanWhales pulls recent chain events for every network, runs them through
// the classifier and persists admitted whale transactions. Duplicate hashes
// are silently skipped so repeated scans over the same window are idempotent.
func (e *Engine) scanWhales(ctx context.Context) error {
	var errs []error
	for _, network := range domain.Networks() {
		res := e.resolver.Resolve(ctx, provider.Request{
			Category: provider.CategoryEvents,
			Network:  network,
			Limit:    eventScanLimit,
		})
		if !res.OK {
			errs = append(errs, fmt.Errorf("events %s: %w", network, res.Err))
			continue
		}
		list, ok := res.Payload.(domain.EventList)
		if !ok {
			errs = append(errs, fmt.Errorf("events %s: unexpected payload %T", network, res.Payload))
			continue
		}
		for _, ev := range list.Events {
			if res.Degraded {
				ev.Synthetic = true
			}
			if err := e.admitEvent(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) admitEvent(ctx context.Context, ev domain.RawEvent) error {
	tx, _, err := e.classifier.Classify(ctx, ev)
	if err != nil {
		return fmt.Errorf("classify %s: %w", ev.TxHash, err)
	}
	if tx == nil {
		// Rejects are a normal outcome; the classifier already counted them.
		return nil
	}
	if err := e.whales.Insert(ctx, tx); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return fmt.Errorf("insert whale %s: %w", tx.TxHash, err)
	}
	return nil
}

// refreshPrices re-resolves prices for every holding of every portfolio.
func (e *Engine) refreshPrices(ctx context.Context) error {
	portfolios, err := e.portfolios.List(ctx)
	if err != nil {
		return fmt.Errorf("list portfolios: %w", err)
	}
	for _, p := range portfolios {
		if _, err := e.valuation.RefreshPrices(ctx, p.ID); err != nil {
			// Malformed holdings are excluded from valuation, not fatal.
			e.logger.Printf("price refresh portfolio=%s: %v", p.ID, err)
		}
	}
	return nil
}

// snapshotPortfolios appends one valuation snapshot per portfolio.
func (e *Engine) snapshotPortfolios(ctx context.Context) error {
	portfolios, err := e.portfolios.List(ctx)
	if err != nil {
		return fmt.Errorf("list portfolios: %w", err)
	}
	var errs []error
	for _, p := range portfolios {
		if _, err := e.valuation.Snapshot(ctx, p.ID); err != nil {
			errs = append(errs, fmt.Errorf("snapshot portfolio=%s: %w", p.ID, err))
		}
	}
	return errors.Join(errs...)
}

// refreshFeeds pulls the market-insight and trade-signal feeds and appends
// anything not yet stored.
func (e *Engine) refreshFeeds(ctx context.Context) error {
	var errs []error

	res := e.resolver.Resolve(ctx, provider.Request{Category: provider.CategoryInsights})
	switch {
	case !res.OK:
		errs = append(errs, fmt.Errorf("insights: %w", res.Err))
	default:
		list, ok := res.Payload.(domain.InsightList)
		if !ok {
			errs = append(errs, fmt.Errorf("insights: unexpected payload %T", res.Payload))
			break
		}
		for i := range list.Insights {
			in := list.Insights[i]
			if res.Degraded {
				in.Synthetic = true
			}
			if err := e.insights.Insert(ctx, &in); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				errs = append(errs, fmt.Errorf("insert insight %s: %w", in.ID, err))
			}
		}
	}

	res = e.resolver.Resolve(ctx, provider.Request{Category: provider.CategorySignals})
	switch {
	case !res.OK:
		errs = append(errs, fmt.Errorf("signals: %w", res.Err))
	default:
		list, ok := res.Payload.(domain.SignalList)
		if !ok {
			errs = append(errs, fmt.Errorf("signals: unexpected payload %T", res.Payload))
			break
		}
		for i := range list.Signals {
			sig := list.Signals[i]
			if res.Degraded {
				sig.Synthetic = true
			}
			if err := e.signals.Insert(ctx, &sig); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
				errs = append(errs, fmt.Errorf("insert signal %s: %w", sig.ID, err))
			}
		}
	}

	return errors.Join(errs...)
}

// refreshHoldings resolves on-chain balances for the given addresses and
// reconciles them into the portfolio's holdings.
func (e *Engine) refreshHoldings(ctx context.Context, portfolioID string, addrs map[domain.Network]string) error {
	var errs []error
	for network, addr := range addrs {
		if addr == "" {
			continue
		}
		res := e.resolver.Resolve(ctx, provider.Request{
			Category: provider.CategoryBalances,
			Network:  network,
			Address:  addr,
		})
		if !res.OK {
			errs = append(errs, fmt.Errorf("balances %s: %w", network, res.Err))
			continue
		}
		balances, ok := res.Payload.(domain.BalanceList)
		if !ok {
			errs = append(errs, fmt.Errorf("balances %s: unexpected payload %T", network, res.Payload))
			continue
		}
		if err := e.valuation.SyncHoldings(ctx, portfolioID, balances); err != nil {
			errs = append(errs, fmt.Errorf("sync holdings %s: %w", network, err))
		}
	}
	return errors.Join(errs...)
}
