package valuation

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// fillWindows computes the PnL window figures on snap.
//
// The measured path compares the current total against the historical
// snapshot closest to (and not newer than) the window start. When the
// history has no point old enough for a window, the figure is projected
// deterministically from the measured 24h PnL (7d = 24h*7, 30d = 24h*30,
// YTD = 24h * days elapsed this year) and the snapshot is flagged
// Approximated: projections are placeholders, not measurements.
func (a *Aggregator) fillWindows(ctx context.Context, snap *domain.PortfolioSnapshot, now time.Time) {
	dayMs := int64(24 * time.Hour / time.Millisecond)
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	daysThisYear := int64(now.Sub(yearStart)/(24*time.Hour)) + 1

	pnl24, ok24 := a.windowPnL(ctx, snap, now.UnixMilli()-dayMs)
	snap.PnL24h = pnl24
	if !ok24 {
		snap.Approximated = true
	}

	if pnl, ok := a.windowPnL(ctx, snap, now.UnixMilli()-7*dayMs); ok {
		snap.PnL7d = pnl
	} else {
		snap.PnL7d = pnl24.Mul(decimal.NewFromInt(7))
		snap.Approximated = true
	}

	if pnl, ok := a.windowPnL(ctx, snap, now.UnixMilli()-30*dayMs); ok {
		snap.PnL30d = pnl
	} else {
		snap.PnL30d = pnl24.Mul(decimal.NewFromInt(30))
		snap.Approximated = true
	}

	if pnl, ok := a.windowPnL(ctx, snap, yearStart.UnixMilli()); ok {
		snap.PnLYTD = pnl
	} else {
		snap.PnLYTD = pnl24.Mul(decimal.NewFromInt(daysThisYear))
		snap.Approximated = true
	}
}

// windowPnL measures total-value change against the newest snapshot at or
// before ts. ok is false when the series has no point that old.
func (a *Aggregator) windowPnL(ctx context.Context, snap *domain.PortfolioSnapshot, ts int64) (decimal.Decimal, bool) {
	ref, err := a.snapshots.At(ctx, snap.PortfolioID, ts)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			a.logger.Printf("history lookup failed for %s: %v", snap.PortfolioID, err)
		}
		return decimal.Zero, false
	}
	return snap.TotalValue.Sub(ref.TotalValue), true
}
