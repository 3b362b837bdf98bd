package storage

import (
	"context"

	"marketpulse/internal/domain"
)

// PortfolioStore provides access to registered portfolios.
type PortfolioStore interface {
	// Create adds a new portfolio. Returns ErrDuplicateKey if the id exists.
	Create(ctx context.Context, p *domain.Portfolio) error

	// GetByID retrieves a portfolio by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Portfolio, error)

	// List retrieves all portfolios ordered by creation time ASC.
	List(ctx context.Context) ([]*domain.Portfolio, error)

	// UpdateAddresses replaces the wallet address map of a portfolio.
	// Returns ErrNotFound if the portfolio does not exist.
	UpdateAddresses(ctx context.Context, id string, addrs map[domain.Network]string) error
}

// HoldingStore provides access to per-portfolio holdings.
// Holdings are mutated only by the valuation aggregator.
type HoldingStore interface {
	// Upsert inserts or replaces the holding keyed by (portfolio, network, symbol).
	Upsert(ctx context.Context, h *domain.Holding) error

	// GetByPortfolio retrieves all holdings for a portfolio,
	// ordered by network then symbol ASC.
	GetByPortfolio(ctx context.Context, portfolioID string) ([]*domain.Holding, error)
}

// WhaleStore provides access to admitted whale transactions.
type WhaleStore interface {
	// Insert adds a new transaction. Returns ErrDuplicateKey if tx_hash exists.
	Insert(ctx context.Context, tx *domain.WhaleTransaction) error

	// Exists reports whether tx_hash has already been admitted.
	Exists(ctx context.Context, txHash string) (bool, error)

	// Latest retrieves up to limit transactions, most recent first.
	Latest(ctx context.Context, limit int) ([]*domain.WhaleTransaction, error)
}

// SnapshotStore provides access to the append-only portfolio value history.
type SnapshotStore interface {
	// Append adds a snapshot to the portfolio's history series.
	Append(ctx context.Context, s *domain.PortfolioSnapshot) error

	// Latest retrieves up to n snapshots, most recent first,
	// without scanning the full series.
	Latest(ctx context.Context, portfolioID string, n int) ([]*domain.PortfolioSnapshot, error)

	// At retrieves the newest snapshot with Timestamp <= ts.
	// Returns ErrNotFound when the series has no point that old.
	At(ctx context.Context, portfolioID string, ts int64) (*domain.PortfolioSnapshot, error)
}

// InsightStore provides access to the append-only market-insight feed.
type InsightStore interface {
	// Insert adds a new insight. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, in *domain.MarketInsight) error

	// Latest retrieves up to limit insights, most recent first.
	Latest(ctx context.Context, limit int) ([]*domain.MarketInsight, error)
}

// SignalStore provides access to the append-only trade-signal feed.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, sig *domain.TradeSignal) error

	// Latest retrieves up to limit signals, most recent first.
	Latest(ctx context.Context, limit int) ([]*domain.TradeSignal, error)
}
