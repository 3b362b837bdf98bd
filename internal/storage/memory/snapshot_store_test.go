package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

func testSnapshot(portfolioID string, ts int64, total string) *domain.PortfolioSnapshot {
	return &domain.PortfolioSnapshot{
		PortfolioID:     portfolioID,
		TotalValue:      decimal.RequireFromString(total),
		PerNetworkValue: map[domain.Network]decimal.Decimal{},
		Timestamp:       ts,
	}
}

func TestSnapshotStore_AppendAndLatest(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	for _, ts := range []int64{1000, 2000, 3000} {
		if err := store.Append(ctx, testSnapshot("p1", ts, "100")); err != nil {
			t.Fatalf("Append %d failed: %v", ts, err)
		}
	}

	latest, err := store.Latest(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(latest))
	}
	if latest[0].Timestamp != 3000 || latest[1].Timestamp != 2000 {
		t.Errorf("Order mismatch: %d %d", latest[0].Timestamp, latest[1].Timestamp)
	}
}

func TestSnapshotStore_AppendOutOfOrder(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Append(ctx, testSnapshot("p1", 2000, "100")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := store.Append(ctx, testSnapshot("p1", 1000, "100")); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for older timestamp, got %v", err)
	}
	if err := store.Append(ctx, testSnapshot("p1", 2000, "100")); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for equal timestamp, got %v", err)
	}

	// Per-portfolio series are independent.
	if err := store.Append(ctx, testSnapshot("p2", 1000, "100")); err != nil {
		t.Errorf("Other portfolio append failed: %v", err)
	}
}

func TestSnapshotStore_At(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	for _, ts := range []int64{1000, 2000, 3000} {
		if err := store.Append(ctx, testSnapshot("p1", ts, "100")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	snap, err := store.At(ctx, "p1", 2500)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if snap.Timestamp != 2000 {
		t.Errorf("Expected nearest older point 2000, got %d", snap.Timestamp)
	}

	snap, err = store.At(ctx, "p1", 3000)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if snap.Timestamp != 3000 {
		t.Errorf("Exact timestamp should match, got %d", snap.Timestamp)
	}

	if _, err := store.At(ctx, "p1", 999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound before series start, got %v", err)
	}
	if _, err := store.At(ctx, "unknown", 2000); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown portfolio, got %v", err)
	}
}

func TestSnapshotStore_CloneIsolation(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	snap := testSnapshot("p1", 1000, "100")
	snap.PerNetworkValue[domain.NetworkBase] = decimal.RequireFromString("100")
	if err := store.Append(ctx, snap); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Mutating the caller's map after Append must not reach the store.
	snap.PerNetworkValue[domain.NetworkBase] = decimal.RequireFromString("999")

	stored, _ := store.Latest(ctx, "p1", 1)
	if !stored[0].PerNetworkValue[domain.NetworkBase].Equal(decimal.RequireFromString("100")) {
		t.Error("Store shares per-network map with caller")
	}
}
