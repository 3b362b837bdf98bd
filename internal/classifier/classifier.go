// Package classifier turns raw provider events into whale transactions,
// applying network inclusion rules and USD materiality thresholds.
package classifier

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
	"marketpulse/internal/observability"
	"marketpulse/internal/provider"
	"marketpulse/internal/storage"
)

// RejectReason is the outcome of a rejected candidate.
// A reject is a normal, silent outcome, not an error.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectInvalidEvent     RejectReason = "INVALID_EVENT"
	RejectExcludedToken    RejectReason = "EXCLUDED_TOKEN"
	RejectInvalidAddress   RejectReason = "INVALID_ADDRESS"
	RejectPriceUnavailable RejectReason = "PRICE_UNAVAILABLE"
	RejectBelowThreshold   RejectReason = "BELOW_THRESHOLD"
	RejectDuplicate        RejectReason = "DUPLICATE"
)

// PriceResolver resolves price quotes for USD conversion.
// Satisfied by *provider.Resolver.
type PriceResolver interface {
	Resolve(ctx context.Context, req provider.Request) provider.Result
}

// NetworkRule holds the inclusion rules for one network.
type NetworkRule struct {
	// TransferThreshold is the USD materiality bar for token transfers.
	TransferThreshold decimal.Decimal

	// StakeThreshold is the lower bar applied to native staking events.
	StakeThreshold decimal.Decimal

	// ExcludedTokens are symbols that never count as whale signal on this
	// network (stables and base assets, so only genuine altcoin flow counts).
	ExcludedTokens map[string]struct{}

	// VenueAddresses are known DEX router / exchange hot-wallet addresses,
	// used to classify flow direction.
	VenueAddresses map[string]struct{}
}

// Classifier admits or rejects raw events as whale transactions.
type Classifier struct {
	resolver PriceResolver
	whales   storage.WhaleStore
	rules    map[domain.Network]NetworkRule
	logger   *log.Logger
	metrics  *observability.Metrics
}

// Options contains configuration for creating a Classifier.
type Options struct {
	Resolver PriceResolver
	Whales   storage.WhaleStore
	Rules    map[domain.Network]NetworkRule
	Logger   *log.Logger
	Metrics  *observability.Metrics
}

// New creates a Classifier.
func New(opts Options) *Classifier {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Classifier{
		resolver: opts.Resolver,
		whales:   opts.Whales,
		rules:    opts.Rules,
		logger:   logger,
		metrics:  opts.Metrics,
	}
}

// Classify runs the admission pipeline on one raw event:
// exclusion set, USD conversion, materiality threshold, txHash dedup.
// A nil transaction with a non-empty reason is a normal reject.
// The returned error only reports store failures.
func (c *Classifier) Classify(ctx context.Context, ev domain.RawEvent) (*domain.WhaleTransaction, RejectReason, error) {
	rule, ok := c.rules[ev.Network]
	if !ok || !ev.Kind.IsValid() || ev.TxHash == "" || !ev.Amount.IsPositive() {
		return c.reject(RejectInvalidEvent)
	}

	// Step 1: network-specific exclusion set.
	if _, excluded := rule.ExcludedTokens[ev.Token]; excluded {
		return c.reject(RejectExcludedToken)
	}
	if !c.validAddress(ev.Network, ev.FromAddress) {
		return c.reject(RejectInvalidAddress)
	}

	// Step 2: USD value through the price chain.
	res := c.resolver.Resolve(ctx, provider.Request{
		Category: provider.CategoryPrice,
		Network:  ev.Network,
		Symbol:   ev.Token,
	})
	quote, ok := res.Payload.(domain.PriceQuote)
	if !res.OK || !ok {
		return c.reject(RejectPriceUnavailable)
	}
	amountUSD := ev.Amount.Mul(quote.PriceUSD)

	// Step 3: materiality threshold, lower tier for native staking.
	threshold := rule.TransferThreshold
	if ev.Kind == domain.EventStake {
		threshold = rule.StakeThreshold
	}
	if amountUSD.LessThan(threshold) {
		return c.reject(RejectBelowThreshold)
	}

	// Step 4: dedup against everything previously admitted.
	exists, err := c.whales.Exists(ctx, ev.TxHash)
	if err != nil {
		return nil, RejectNone, fmt.Errorf("whale dedup lookup: %w", err)
	}
	if exists {
		return c.reject(RejectDuplicate)
	}

	// Step 5: action classification and admission.
	// A degraded price makes the USD figure untrustworthy, so the
	// candidate is tagged synthetic along with simulated events.
	tx := &domain.WhaleTransaction{
		TxHash:      ev.TxHash,
		Network:     ev.Network,
		Token:       ev.Token,
		AmountUSD:   amountUSD,
		FromAddress: ev.FromAddress,
		ToAddress:   ev.ToAddress,
		Action:      c.action(rule, ev),
		Synthetic:   ev.Synthetic || res.Degraded,
		ObservedAt:  ev.Timestamp,
	}

	c.metrics.ObserveWhaleAdmitted(tx.Synthetic)
	return tx, RejectNone, nil
}

// reject records the reason and returns the reject outcome.
func (c *Classifier) reject(reason RejectReason) (*domain.WhaleTransaction, RejectReason, error) {
	c.metrics.ObserveWhaleRejected(string(reason))
	return nil, reason, nil
}

// action classifies flow direction.
// Staking events are a distinct STAKE action rather than BUY/SELL.
// Token flow out of a known venue is a BUY, flow into a venue a SELL,
// anything else a plain TRANSFER.
func (c *Classifier) action(rule NetworkRule, ev domain.RawEvent) domain.Action {
	if ev.Kind == domain.EventStake {
		return domain.ActionStake
	}
	if _, fromVenue := rule.VenueAddresses[ev.FromAddress]; fromVenue {
		return domain.ActionBuy
	}
	if ev.ToAddress != nil {
		if _, toVenue := rule.VenueAddresses[*ev.ToAddress]; toVenue {
			return domain.ActionSell
		}
	}
	return domain.ActionTransfer
}

// validAddress applies the per-network address envelope check.
func (c *Classifier) validAddress(network domain.Network, addr string) bool {
	switch network {
	case domain.NetworkTao:
		return validSS58Address(addr)
	case domain.NetworkBase, domain.NetworkEth:
		return validHexAddress(addr)
	default:
		return addr != ""
	}
}
