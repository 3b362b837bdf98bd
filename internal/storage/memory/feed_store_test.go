package memory

import (
	"context"
	"errors"
	"testing"

	"marketpulse/internal/domain"
	"marketpulse/internal/storage"
)

func TestInsightStore_InsertAndLatest(t *testing.T) {
	store := NewInsightStore()
	ctx := context.Background()

	for i, id := range []string{"i1", "i2", "i3"} {
		in := &domain.MarketInsight{
			ID:        id,
			Title:     "title " + id,
			Sentiment: domain.SentimentBullish,
			CreatedAt: int64(1000 + i),
		}
		if err := store.Insert(ctx, in); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}

	latest, err := store.Latest(ctx, 2)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("Expected 2 insights, got %d", len(latest))
	}
	if latest[0].ID != "i3" || latest[1].ID != "i2" {
		t.Errorf("Order mismatch: %s %s", latest[0].ID, latest[1].ID)
	}
}

func TestInsightStore_DuplicateKey(t *testing.T) {
	store := NewInsightStore()
	ctx := context.Background()

	in := &domain.MarketInsight{ID: "i1", Sentiment: domain.SentimentNeutral}
	if err := store.Insert(ctx, in); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, in); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSignalStore_InsertAndLatest(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		sig := &domain.TradeSignal{
			ID:         id,
			Symbol:     "WETH",
			Network:    domain.NetworkBase,
			Direction:  domain.SignalLong,
			Confidence: 0.8,
		}
		if err := store.Insert(ctx, sig); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}

	latest, err := store.Latest(ctx, 10)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("Expected 2 signals, got %d", len(latest))
	}
	if latest[0].ID != "s2" {
		t.Errorf("Most recent first: got %s", latest[0].ID)
	}
}

func TestSignalStore_Validation(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.TradeSignal{ID: ""}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty id, got %v", err)
	}
	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil signal, got %v", err)
	}
}
