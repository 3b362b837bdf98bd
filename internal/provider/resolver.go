package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"marketpulse/internal/cache"
	"marketpulse/internal/domain"
	"marketpulse/internal/observability"
)

// ErrExhausted is returned inside a Result when every adapter in a chain
// failed and no terminal fallback is configured.
var ErrExhausted = errors.New("all providers in chain failed")

// DefaultTTL is the cache TTL applied to categories without an explicit one.
const DefaultTTL = 30 * time.Second

// chainKey routes a request to its adapter chain. Network-bound adapters
// (chain explorers, staking feeds) register under their network; adapters
// serving every network register under the empty one.
type chainKey struct {
	cat     Category
	network domain.Network
}

// Resolver walks priority-ordered adapter chains per category and network,
// skipping adapters whose circuit breaker is open, and substitutes the
// terminal fallback when the whole chain fails. Results are served through
// the TTL cache, which may short-circuit the chain entirely.
type Resolver struct {
	cache   *cache.Cache
	health  *HealthTracker
	logger  *log.Logger
	metrics *observability.Metrics

	mu        sync.RWMutex
	chains    map[chainKey][]Adapter
	terminals map[Category]Adapter
	ttls      map[Category]time.Duration
}

// ResolverOptions contains configuration for creating a Resolver.
type ResolverOptions struct {
	Cache   *cache.Cache            // nil disables caching
	Health  *HealthTracker          // nil uses default breaker settings
	Logger  *log.Logger             // nil uses log.Default()
	Metrics *observability.Metrics  // nil disables instrumentation
	TTLs    map[Category]time.Duration // per-category cache TTLs
}

// NewResolver creates a Resolver.
func NewResolver(opts ResolverOptions) *Resolver {
	health := opts.Health
	if health == nil {
		health = NewHealthTracker(0, 0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	ttls := make(map[Category]time.Duration, len(opts.TTLs))
	for k, v := range opts.TTLs {
		ttls[k] = v
	}
	return &Resolver{
		cache:     opts.Cache,
		health:    health,
		logger:    logger,
		metrics:   opts.Metrics,
		chains:    make(map[chainKey][]Adapter),
		terminals: make(map[Category]Adapter),
		ttls:      ttls,
	}
}

// Register adds network-agnostic adapters to the category's chain, kept
// sorted by priority. They are consulted for every network.
func (r *Resolver) Register(cat Category, adapters ...Adapter) {
	r.RegisterNetwork(cat, "", adapters...)
}

// RegisterNetwork adds adapters that only serve one network. Requests for
// other networks never reach them, so a misrouted lookup cannot count
// against their breaker.
func (r *Resolver) RegisterNetwork(cat Category, network domain.Network, adapters ...Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := chainKey{cat, network}
	chain := append(r.chains[key], adapters...)
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Priority() < chain[j].Priority()
	})
	r.chains[key] = chain
}

// SetTerminal installs the terminal fallback adapter for a category.
// Its results are always flagged Degraded.
func (r *Resolver) SetTerminal(cat Category, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminals[cat] = a
}

// Health exposes the tracker, mainly for tests and diagnostics.
func (r *Resolver) Health() *HealthTracker {
	return r.health
}

// Resolve returns the first successful result from the category's chain.
// The result is cached under the request's key; any cached value within
// its TTL is returned without touching a provider. Resolve never returns
// an ok:false result when a terminal fallback is configured.
func (r *Resolver) Resolve(ctx context.Context, req Request) Result {
	if r.cache == nil {
		return r.resolveChain(ctx, req)
	}

	v, err := r.cache.GetOrFetch(ctx, req.CacheKey(), r.ttl(req.Category), func(ctx context.Context) (any, error) {
		// Failed results are cached too, so a dead chain is not hammered.
		return r.resolveChain(ctx, req), nil
	})
	if err != nil {
		// GetOrFetch only fails when the fetch fn does, which ours never does.
		return Failure("resolver", ErrCodeNetwork, err)
	}
	res, ok := v.(Result)
	if !ok {
		return Failure("resolver", ErrCodeBadPayload, fmt.Errorf("unexpected cache value %T", v))
	}
	return res.copyPayload()
}

// resolveChain walks the chain by priority and falls back to the terminal.
func (r *Resolver) resolveChain(ctx context.Context, req Request) Result {
	chain := r.chainFor(req)
	r.mu.RLock()
	terminal := r.terminals[req.Category]
	r.mu.RUnlock()

	for _, a := range chain {
		if !r.health.Available(a.Name()) {
			r.logger.Printf("provider %s skipped (breaker open) for %s", a.Name(), req.CacheKey())
			continue
		}

		res := safeFetch(ctx, a, req)
		if res.Code == ErrCodeUnsupported {
			// A routing mismatch, not an outage: the adapter stays healthy.
			r.logger.Printf("provider %s does not serve %s, continuing chain", a.Name(), req.CacheKey())
			continue
		}
		r.metrics.ObserveProviderAttempt(a.Name(), res.OK)
		if res.OK {
			r.health.RecordSuccess(a.Name())
			return res
		}

		r.health.RecordFailure(a.Name())
		r.logger.Printf("provider %s failed for %s: code=%s err=%v", a.Name(), req.CacheKey(), res.Code, res.Err)
	}

	// Whole chain failed: substitute the terminal fallback so downstream
	// aggregation never halts on a missing data point.
	if terminal != nil {
		res := safeFetch(ctx, terminal, req)
		res.Degraded = true
		r.metrics.ObserveDegraded(string(req.Category))
		r.logger.Printf("chain %s degraded for %s: serving %s", req.Category, req.CacheKey(), terminal.Name())
		return res
	}

	r.metrics.ObserveDegraded(string(req.Category))
	return Result{Source: "resolver", Code: ErrCodeNetwork, Err: ErrExhausted, Degraded: true}
}

// chainFor merges the request network's chain with the network-agnostic
// one, ordered by priority across both.
func (r *Resolver) chainFor(req Request) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bound := r.chains[chainKey{req.Category, req.Network}]
	if req.Network == "" {
		return bound
	}
	agnostic := r.chains[chainKey{req.Category, ""}]
	if len(bound) == 0 {
		return agnostic
	}

	chain := make([]Adapter, 0, len(bound)+len(agnostic))
	chain = append(chain, bound...)
	chain = append(chain, agnostic...)
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Priority() < chain[j].Priority()
	})
	return chain
}

// ttl returns the cache TTL for a category.
func (r *Resolver) ttl(cat Category) time.Duration {
	if ttl, ok := r.ttls[cat]; ok && ttl > 0 {
		return ttl
	}
	return DefaultTTL
}

// safeFetch invokes the adapter and converts a panic into an ok:false
// result, so a misbehaving provider cannot abort the caller.
func safeFetch(ctx context.Context, a Adapter, req Request) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = Failure(a.Name(), ErrCodePanic, fmt.Errorf("provider panic: %v", rec))
		}
	}()
	return a.Fetch(ctx, req)
}
