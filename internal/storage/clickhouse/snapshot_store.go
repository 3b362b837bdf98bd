package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Values are stored as decimal strings to keep full precision.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Append adds a snapshot to the portfolio's history series.
// Returns ErrInvalidInput when the timestamp is not newer than the series head.
func (s *SnapshotStore) Append(ctx context.Context, snap *domain.PortfolioSnapshot) error {
	head, err := s.headTimestamp(ctx, snap.PortfolioID)
	if err != nil {
		return fmt.Errorf("check series head: %w", err)
	}
	if head >= snap.Timestamp {
		return fmt.Errorf("%w: snapshot timestamp %d not after series head %d",
			storage.ErrInvalidInput, snap.Timestamp, head)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO portfolio_snapshots (
			portfolio_id, timestamp_ms, total_value, per_network_value,
			pnl_24h, pnl_7d, pnl_30d, pnl_ytd, pnl_all, approximated
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	perNetwork := make(map[string]string, len(snap.PerNetworkValue))
	for network, value := range snap.PerNetworkValue {
		perNetwork[string(network)] = value.String()
	}

	err = batch.Append(
		snap.PortfolioID,
		uint64(snap.Timestamp),
		snap.TotalValue.String(),
		perNetwork,
		snap.PnL24h.String(),
		snap.PnL7d.String(),
		snap.PnL30d.String(),
		snap.PnLYTD.String(),
		snap.PnLAll.String(),
		snap.Approximated,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// Latest retrieves up to n snapshots, most recent first.
func (s *SnapshotStore) Latest(ctx context.Context, portfolioID string, n int) ([]*domain.PortfolioSnapshot, error) {
	query := `
		SELECT portfolio_id, timestamp_ms, total_value, per_network_value,
		       pnl_24h, pnl_7d, pnl_30d, pnl_ytd, pnl_all, approximated
		FROM portfolio_snapshots
		WHERE portfolio_id = ?
		ORDER BY timestamp_ms DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, portfolioID, uint64(n))
	if err != nil {
		return nil, fmt.Errorf("query latest snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// At retrieves the newest snapshot with timestamp <= ts.
// Returns ErrNotFound when the series has no point that old.
func (s *SnapshotStore) At(ctx context.Context, portfolioID string, ts int64) (*domain.PortfolioSnapshot, error) {
	query := `
		SELECT portfolio_id, timestamp_ms, total_value, per_network_value,
		       pnl_24h, pnl_7d, pnl_30d, pnl_ytd, pnl_all, approximated
		FROM portfolio_snapshots
		WHERE portfolio_id = ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, portfolioID, uint64(ts))
	if err != nil {
		return nil, fmt.Errorf("query snapshot at: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}
	return snaps[0], nil
}

// headTimestamp returns the newest timestamp of the portfolio's series,
// or 0 when the series is empty.
func (s *SnapshotStore) headTimestamp(ctx context.Context, portfolioID string) (int64, error) {
	query := `
		SELECT max(timestamp_ms) FROM portfolio_snapshots
		WHERE portfolio_id = ?
	`

	var head uint64
	if err := s.conn.QueryRow(ctx, query, portfolioID).Scan(&head); err != nil {
		return 0, err
	}
	return int64(head), nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanSnapshots scans multiple rows into a slice of PortfolioSnapshot.
func scanSnapshots(rows chRows) ([]*domain.PortfolioSnapshot, error) {
	var snaps []*domain.PortfolioSnapshot

	for rows.Next() {
		var (
			snap        domain.PortfolioSnapshot
			timestampMs uint64
			totalValue  string
			perNetwork  map[string]string
			pnl24h      string
			pnl7d       string
			pnl30d      string
			pnlYTD      string
			pnlAll      string
		)

		err := rows.Scan(
			&snap.PortfolioID, &timestampMs, &totalValue, &perNetwork,
			&pnl24h, &pnl7d, &pnl30d, &pnlYTD, &pnlAll, &snap.Approximated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		snap.Timestamp = int64(timestampMs)
		if snap.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
			return nil, fmt.Errorf("parse total_value %q: %w", totalValue, err)
		}
		if snap.PnL24h, err = decimal.NewFromString(pnl24h); err != nil {
			return nil, fmt.Errorf("parse pnl_24h %q: %w", pnl24h, err)
		}
		if snap.PnL7d, err = decimal.NewFromString(pnl7d); err != nil {
			return nil, fmt.Errorf("parse pnl_7d %q: %w", pnl7d, err)
		}
		if snap.PnL30d, err = decimal.NewFromString(pnl30d); err != nil {
			return nil, fmt.Errorf("parse pnl_30d %q: %w", pnl30d, err)
		}
		if snap.PnLYTD, err = decimal.NewFromString(pnlYTD); err != nil {
			return nil, fmt.Errorf("parse pnl_ytd %q: %w", pnlYTD, err)
		}
		if snap.PnLAll, err = decimal.NewFromString(pnlAll); err != nil {
			return nil, fmt.Errorf("parse pnl_all %q: %w", pnlAll, err)
		}

		snap.PerNetworkValue = make(map[domain.Network]decimal.Decimal, len(perNetwork))
		for network, value := range perNetwork {
			v, err := decimal.NewFromString(value)
			if err != nil {
				return nil, fmt.Errorf("parse per_network_value[%s] %q: %w", network, value, err)
			}
			snap.PerNetworkValue[domain.Network(network)] = v
		}

		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snaps, nil
}
