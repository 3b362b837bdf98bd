package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketpulse/internal/classifier"
	"marketpulse/internal/config"
	"marketpulse/internal/domain"
	"marketpulse/internal/provider"
	"marketpulse/internal/provider/stub"
	"marketpulse/internal/scheduler"
	"marketpulse/internal/storage"
	"marketpulse/internal/storage/memory"
	"marketpulse/internal/valuation"
)

const (
	walletAddr = "0x1111111111111111111111111111111111111111"
	venueAddr  = "0x2222222222222222222222222222222222222222"
	otherAddr  = "0x3333333333333333333333333333333333333333"
)

func testJobs() config.JobsConfig {
	return config.JobsConfig{
		WhaleScan:         config.Duration(time.Hour),
		PriceRefresh:      config.Duration(time.Hour),
		PortfolioSnapshot: config.Duration(time.Hour),
		InsightRefresh:    config.Duration(time.Hour),
	}
}

type testEnv struct {
	engine     *Engine
	resolver   *provider.Resolver
	portfolios *memory.PortfolioStore
	holdings   *memory.HoldingStore
	whales     *memory.WhaleStore
	snapshots  *memory.SnapshotStore
	insights   *memory.InsightStore
	signals    *memory.SignalStore
}

// newTestEnv wires an engine against in-memory stores and an uncached
// resolver. Tests register stub adapters on env.resolver before driving
// the job handlers directly.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.New(io.Discard, "", 0)

	env := &testEnv{
		portfolios: memory.NewPortfolioStore(),
		holdings:   memory.NewHoldingStore(),
		whales:     memory.NewWhaleStore(),
		snapshots:  memory.NewSnapshotStore(),
		insights:   memory.NewInsightStore(),
		signals:    memory.NewSignalStore(),
	}
	env.resolver = provider.NewResolver(provider.ResolverOptions{Logger: logger})

	rules := make(map[domain.Network]classifier.NetworkRule)
	for _, n := range domain.Networks() {
		rules[n] = classifier.NetworkRule{
			TransferThreshold: decimal.NewFromInt(5000),
			StakeThreshold:    decimal.NewFromInt(1000),
			ExcludedTokens:    map[string]struct{}{},
			VenueAddresses:    map[string]struct{}{venueAddr: {}},
		}
	}

	cls := classifier.New(classifier.Options{
		Resolver: env.resolver,
		Whales:   env.whales,
		Rules:    rules,
		Logger:   logger,
	})
	val := valuation.New(valuation.Options{
		Resolver:  env.resolver,
		Holdings:  env.holdings,
		Snapshots: env.snapshots,
		Logger:    logger,
	})

	eng, err := New(Options{
		Portfolios: env.portfolios,
		Holdings:   env.holdings,
		Whales:     env.whales,
		Snapshots:  env.snapshots,
		Insights:   env.insights,
		Signals:    env.signals,
		Resolver:   env.resolver,
		Classifier: cls,
		Valuation:  val,
		Scheduler:  scheduler.New(scheduler.Options{Logger: logger}),
		Jobs:       testJobs(),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	env.engine = eng
	return env
}

func registerPrice(env *testEnv, symbol string, price int64) {
	env.resolver.Register(provider.CategoryPrice, stub.New("prices", 1, domain.PriceQuote{
		Symbol:   symbol,
		PriceUSD: decimal.NewFromInt(price),
	}))
}

func transferEvent(hash string, amount int64) domain.RawEvent {
	to := otherAddr
	return domain.RawEvent{
		Network:     domain.NetworkBase,
		Token:       "AERO",
		Amount:      decimal.NewFromInt(amount),
		FromAddress: walletAddr,
		ToAddress:   &to,
		TxHash:      hash,
		Kind:        domain.EventTransfer,
		Timestamp:   time.Now().UnixMilli(),
	}
}

func TestNew_RejectsBadInterval(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	jobs := testJobs()
	jobs.WhaleScan = 0

	_, err := New(Options{
		Scheduler: scheduler.New(scheduler.Options{Logger: logger}),
		Jobs:      jobs,
		Logger:    logger,
	})
	if !errors.Is(err, scheduler.ErrInvalidInterval) {
		t.Errorf("Expected ErrInvalidInterval, got %v", err)
	}
}

func TestRegisterPortfolio(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.engine.RegisterPortfolio(ctx, "user-1")
	if err != nil {
		t.Fatalf("RegisterPortfolio failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected a non-empty portfolio id")
	}

	addrs, err := env.engine.GetWalletAddresses(ctx, id)
	if err != nil {
		t.Fatalf("GetWalletAddresses failed: %v", err)
	}
	if len(addrs) != 0 {
		t.Errorf("New portfolio should track no addresses, got %v", addrs)
	}
}

func TestSetWalletAddresses_SyncsHoldings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerPrice(env, "AERO", 3)
	env.resolver.Register(provider.CategoryBalances, stub.New("explorer", 1, domain.BalanceList{
		Network: domain.NetworkBase,
		Address: walletAddr,
		Balances: []domain.TokenBalance{
			{Symbol: "AERO", Amount: decimal.NewFromInt(100)},
		},
	}))

	id, err := env.engine.RegisterPortfolio(ctx, "user-1")
	if err != nil {
		t.Fatalf("RegisterPortfolio failed: %v", err)
	}
	if err := env.engine.SetWalletAddresses(ctx, id, map[domain.Network]string{
		domain.NetworkBase: walletAddr,
	}); err != nil {
		t.Fatalf("SetWalletAddresses failed: %v", err)
	}

	holdings, err := env.holdings.GetByPortfolio(ctx, id)
	if err != nil {
		t.Fatalf("GetByPortfolio failed: %v", err)
	}
	if len(holdings) != 1 {
		t.Fatalf("Expected 1 synced holding, got %d", len(holdings))
	}
	h := holdings[0]
	if h.Symbol != "AERO" || h.Network != domain.NetworkBase {
		t.Errorf("Unexpected holding %s/%s", h.Network, h.Symbol)
	}
	if !h.EntryPrice.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Entry price mismatch: got %s", h.EntryPrice)
	}
}

func TestSetWalletAddresses_RejectsUnknownNetwork(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.engine.RegisterPortfolio(ctx, "user-1")
	if err != nil {
		t.Fatalf("RegisterPortfolio failed: %v", err)
	}
	err = env.engine.SetWalletAddresses(ctx, id, map[domain.Network]string{
		domain.Network("DOGE"): walletAddr,
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestScanWhales_AdmitsAndDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerPrice(env, "AERO", 3)
	env.resolver.Register(provider.CategoryEvents, stub.New("explorer", 1, domain.EventList{
		Network: domain.NetworkBase,
		Events: []domain.RawEvent{
			transferEvent("0xbig", 2000),  // $6000, above threshold
			transferEvent("0xsmall", 100), // $300, rejected
		},
	}))

	// The stub serves the same payload for every network, so one scan
	// pass sees the big event three times. Dedup keeps a single row.
	if err := env.engine.scanWhales(ctx); err != nil {
		t.Fatalf("scanWhales failed: %v", err)
	}

	txs, err := env.whales.Latest(ctx, 10)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("Expected exactly 1 admitted whale, got %d", len(txs))
	}
	if txs[0].TxHash != "0xbig" {
		t.Errorf("Wrong transaction admitted: %s", txs[0].TxHash)
	}
	if txs[0].Synthetic {
		t.Error("Live event should not be flagged synthetic")
	}

	// A second pass over the same window is a no-op.
	if err := env.engine.scanWhales(ctx); err != nil {
		t.Fatalf("Second scanWhales failed: %v", err)
	}
	txs, _ = env.whales.Latest(ctx, 10)
	if len(txs) != 1 {
		t.Errorf("Rescan must not duplicate: got %d rows", len(txs))
	}
}

func TestScanWhales_TerminalEventsAreSynthetic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerPrice(env, "AERO", 3)
	env.resolver.SetTerminal(provider.CategoryEvents, stub.New("sim", 99, domain.EventList{
		Network: domain.NetworkBase,
		Events:  []domain.RawEvent{transferEvent("0xsim", 2000)},
	}))

	if err := env.engine.scanWhales(ctx); err != nil {
		t.Fatalf("scanWhales failed: %v", err)
	}

	txs, err := env.whales.Latest(ctx, 10)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("Expected 1 whale, got %d", len(txs))
	}
	if !txs[0].Synthetic {
		t.Error("Fallback-sourced whale must be flagged synthetic")
	}
}

func TestScanWhales_ChainFailureSurfaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.resolver.Register(provider.CategoryEvents,
		stub.NewFailing("explorer", 1, provider.ErrCodeNetwork))

	if err := env.engine.scanWhales(ctx); err == nil {
		t.Error("Expected an error when every events chain is down")
	}
}

func TestRefreshFeeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.resolver.Register(provider.CategoryInsights, stub.New("feed", 1, domain.InsightList{
		Insights: []domain.MarketInsight{
			{ID: "ins-1", Title: "Rotation into L2s", Sentiment: domain.SentimentBullish},
		},
	}))
	env.resolver.Register(provider.CategorySignals, stub.New("feed", 1, domain.SignalList{
		Signals: []domain.TradeSignal{
			{ID: "sig-1", Symbol: "TAO", Network: domain.NetworkTao, Direction: domain.SignalLong, Confidence: 0.8},
		},
	}))

	if err := env.engine.refreshFeeds(ctx); err != nil {
		t.Fatalf("refreshFeeds failed: %v", err)
	}
	// Re-pulling the same feed items is idempotent.
	if err := env.engine.refreshFeeds(ctx); err != nil {
		t.Fatalf("Second refreshFeeds failed: %v", err)
	}

	insights, err := env.engine.GetMarketInsights(ctx, 10)
	if err != nil {
		t.Fatalf("GetMarketInsights failed: %v", err)
	}
	if len(insights) != 1 || insights[0].ID != "ins-1" {
		t.Errorf("Unexpected insights: %+v", insights)
	}

	signals, err := env.engine.GetTradeSignals(ctx, 10)
	if err != nil {
		t.Fatalf("GetTradeSignals failed: %v", err)
	}
	if len(signals) != 1 || signals[0].ID != "sig-1" {
		t.Errorf("Unexpected signals: %+v", signals)
	}
}

func TestRefreshFeeds_TerminalTagsSynthetic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.resolver.SetTerminal(provider.CategoryInsights, stub.New("sim", 99, domain.InsightList{
		Insights: []domain.MarketInsight{{ID: "ins-sim", Title: "Synthetic read"}},
	}))
	env.resolver.SetTerminal(provider.CategorySignals, stub.New("sim", 99, domain.SignalList{
		Signals: []domain.TradeSignal{{ID: "sig-sim", Symbol: "WETH", Network: domain.NetworkBase, Direction: domain.SignalShort}},
	}))

	if err := env.engine.refreshFeeds(ctx); err != nil {
		t.Fatalf("refreshFeeds failed: %v", err)
	}

	insights, _ := env.insights.Latest(ctx, 10)
	if len(insights) != 1 || !insights[0].Synthetic {
		t.Errorf("Fallback insight must be synthetic: %+v", insights)
	}
	signals, _ := env.signals.Latest(ctx, 10)
	if len(signals) != 1 || !signals[0].Synthetic {
		t.Errorf("Fallback signal must be synthetic: %+v", signals)
	}
}

func TestSnapshotJobAndHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerPrice(env, "AERO", 3)
	env.resolver.Register(provider.CategoryBalances, stub.New("explorer", 1, domain.BalanceList{
		Network:  domain.NetworkBase,
		Address:  walletAddr,
		Balances: []domain.TokenBalance{{Symbol: "AERO", Amount: decimal.NewFromInt(100)}},
	}))

	id, err := env.engine.RegisterPortfolio(ctx, "user-1")
	if err != nil {
		t.Fatalf("RegisterPortfolio failed: %v", err)
	}
	if err := env.engine.SetWalletAddresses(ctx, id, map[domain.Network]string{
		domain.NetworkBase: walletAddr,
	}); err != nil {
		t.Fatalf("SetWalletAddresses failed: %v", err)
	}

	if err := env.engine.snapshotPortfolios(ctx); err != nil {
		t.Fatalf("snapshotPortfolios failed: %v", err)
	}

	history, err := env.engine.GetPortfolioHistory(ctx, id, 10)
	if err != nil {
		t.Fatalf("GetPortfolioHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(history))
	}
	if !history[0].TotalValue.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Total value mismatch: got %s", history[0].TotalValue)
	}

	// The read path serves the stored snapshot rather than recomputing.
	snap, err := env.engine.GetPortfolioSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("GetPortfolioSnapshot failed: %v", err)
	}
	if snap.Timestamp != history[0].Timestamp {
		t.Errorf("Expected the stored snapshot, got timestamp %d", snap.Timestamp)
	}
}

func TestGetPortfolioSnapshot_ComputesWhenHistoryEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerPrice(env, "AERO", 3)

	id, err := env.engine.RegisterPortfolio(ctx, "user-1")
	if err != nil {
		t.Fatalf("RegisterPortfolio failed: %v", err)
	}
	h := &domain.Holding{
		PortfolioID:  id,
		Symbol:       "AERO",
		Network:      domain.NetworkBase,
		Amount:       decimal.NewFromInt(50),
		EntryPrice:   decimal.NewFromInt(2),
		CurrentPrice: decimal.NewFromInt(3),
	}
	h.Recompute()
	if err := env.holdings.Upsert(ctx, h); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	snap, err := env.engine.GetPortfolioSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("GetPortfolioSnapshot failed: %v", err)
	}
	if !snap.TotalValue.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Computed total mismatch: got %s", snap.TotalValue)
	}
}

func TestRefreshPrices_UpdatesHoldings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerPrice(env, "AERO", 4)

	id, err := env.engine.RegisterPortfolio(ctx, "user-1")
	if err != nil {
		t.Fatalf("RegisterPortfolio failed: %v", err)
	}
	h := &domain.Holding{
		PortfolioID:  id,
		Symbol:       "AERO",
		Network:      domain.NetworkBase,
		Amount:       decimal.NewFromInt(10),
		EntryPrice:   decimal.NewFromInt(2),
		CurrentPrice: decimal.NewFromInt(2),
	}
	h.Recompute()
	if err := env.holdings.Upsert(ctx, h); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := env.engine.refreshPrices(ctx); err != nil {
		t.Fatalf("refreshPrices failed: %v", err)
	}

	holdings, err := env.holdings.GetByPortfolio(ctx, id)
	if err != nil {
		t.Fatalf("GetByPortfolio failed: %v", err)
	}
	if len(holdings) != 1 {
		t.Fatalf("Expected 1 holding, got %d", len(holdings))
	}
	if !holdings[0].CurrentPrice.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Current price not refreshed: got %s", holdings[0].CurrentPrice)
	}
	if !holdings[0].PnL.Equal(decimal.NewFromInt(20)) {
		t.Errorf("PnL mismatch: got %s", holdings[0].PnL)
	}
}

func TestStartAndStop(t *testing.T) {
	env := newTestEnv(t)
	registerPrice(env, "AERO", 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := env.engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := env.engine.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestRefreshFeeds_UnexpectedPayloadIsAnError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	// An insights chain answering with the wrong payload variant.
	env.resolver.Register(provider.CategoryInsights, stub.New("feed", 1, domain.SignalList{}))
	env.resolver.Register(provider.CategorySignals, stub.New("feed", 1, domain.SignalList{
		Signals: []domain.TradeSignal{{ID: "sig-1", Symbol: "TAO", Network: domain.NetworkTao, Direction: domain.SignalLong}},
	}))

	err := env.engine.refreshFeeds(ctx)
	if err == nil {
		t.Fatal("Expected an error for a mistyped feed payload")
	}
	if !strings.Contains(err.Error(), "unexpected payload") {
		t.Errorf("Error does not name the payload mismatch: %v", err)
	}

	// The healthy feed is still consumed.
	signals, serr := env.signals.Latest(ctx, 10)
	if serr != nil || len(signals) != 1 {
		t.Errorf("Signal feed should survive the insight failure: %v %v", signals, serr)
	}
}

// firstReadEmptyStore makes the initial history check come back empty, so a
// snapshot appended in that window looks like a concurrent writer's.
type firstReadEmptyStore struct {
	storage.SnapshotStore
	read atomic.Bool
}

func (s *firstReadEmptyStore) Latest(ctx context.Context, portfolioID string, limit int) ([]*domain.PortfolioSnapshot, error) {
	if s.read.CompareAndSwap(false, true) {
		return nil, nil
	}
	return s.SnapshotStore.Latest(ctx, portfolioID, limit)
}

func TestGetPortfolioSnapshot_ToleratesConcurrentAppend(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	ctx := context.Background()

	backing := memory.NewSnapshotStore()
	snapshots := &firstReadEmptyStore{SnapshotStore: backing}
	holdings := memory.NewHoldingStore()
	resolver := provider.NewResolver(provider.ResolverOptions{Logger: logger})

	eng, err := New(Options{
		Portfolios: memory.NewPortfolioStore(),
		Holdings:   holdings,
		Whales:     memory.NewWhaleStore(),
		Snapshots:  snapshots,
		Insights:   memory.NewInsightStore(),
		Signals:    memory.NewSignalStore(),
		Resolver:   resolver,
		Valuation: valuation.New(valuation.Options{
			Resolver:  resolver,
			Holdings:  holdings,
			Snapshots: snapshots,
			Logger:    logger,
		}),
		Scheduler: scheduler.New(scheduler.Options{Logger: logger}),
		Jobs:      testJobs(),
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// The other writer's snapshot lands ahead of this read's compute, so
	// the compute's append loses the strict-ordering race.
	seed := &domain.PortfolioSnapshot{
		PortfolioID:     "p1",
		TotalValue:      decimal.NewFromInt(123),
		PerNetworkValue: map[domain.Network]decimal.Decimal{},
		Timestamp:       time.Now().Add(time.Hour).UnixMilli(),
	}
	if err := backing.Append(ctx, seed); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	snap, err := eng.GetPortfolioSnapshot(ctx, "p1")
	if err != nil {
		t.Fatalf("Read must serve the winning snapshot, got error: %v", err)
	}
	if snap.Timestamp != seed.Timestamp || !snap.TotalValue.Equal(seed.TotalValue) {
		t.Errorf("Expected the stored snapshot, got %+v", snap)
	}
}
