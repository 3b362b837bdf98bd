package valuation

import (
	"context"
	"fmt"

	"marketpulse/internal/domain"
)

// SyncHoldings reconciles the portfolio's holdings on one network with a
// balance list freshly fetched from a chain explorer. New symbols get
// their entry price pinned to the current resolved price; existing
// holdings keep their entry price and only update the amount.
// Holdings are only ever written here and in RefreshPrices.
func (a *Aggregator) SyncHoldings(ctx context.Context, portfolioID string, balances domain.BalanceList) error {
	existing, err := a.holdings.GetByPortfolio(ctx, portfolioID)
	if err != nil {
		return fmt.Errorf("load holdings: %w", err)
	}

	bySymbol := make(map[string]*domain.Holding)
	for _, h := range existing {
		if h.Network == balances.Network {
			bySymbol[h.Symbol] = h
		}
	}

	now := a.clock().UnixMilli()
	for _, b := range balances.Balances {
		if b.Amount.IsNegative() {
			a.metrics.ObserveHoldingExcluded()
			a.logger.Printf("ignoring negative balance %s on %s", b.Symbol, balances.Network)
			continue
		}

		h, ok := bySymbol[b.Symbol]
		if !ok {
			price, priced := a.resolvePrice(ctx, balances.Network, b.Symbol)
			if !priced {
				a.logger.Printf("skipping new holding %s/%s: no price", balances.Network, b.Symbol)
				continue
			}
			h = &domain.Holding{
				PortfolioID:  portfolioID,
				Symbol:       b.Symbol,
				Network:      balances.Network,
				EntryPrice:   price,
				CurrentPrice: price,
			}
		}

		h.Amount = b.Amount
		h.Recompute()
		h.UpdatedAt = now
		if err := a.holdings.Upsert(ctx, h); err != nil {
			return fmt.Errorf("store holding %s/%s: %w", balances.Network, b.Symbol, err)
		}
	}

	return nil
}
