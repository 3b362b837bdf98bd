package config

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validate checks that all values are usable. A broken schedule or
// threshold is a startup misconfiguration and must fail before the
// first tick.
func (c *Config) Validate() error {
	for name, d := range map[string]Duration{
		"jobs.whale_scan":          c.Jobs.WhaleScan,
		"jobs.price_refresh":       c.Jobs.PriceRefresh,
		"jobs.portfolio_snapshot":  c.Jobs.PortfolioSnapshot,
		"jobs.insight_refresh":     c.Jobs.InsightRefresh,
		"cache.price_ttl":          c.Cache.PriceTTL,
		"cache.balance_ttl":        c.Cache.BalanceTTL,
		"cache.event_ttl":          c.Cache.EventTTL,
		"cache.feed_ttl":           c.Cache.FeedTTL,
		"providers.breaker.cooldown": c.Providers.Breaker.Cooldown,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d.Std())
		}
	}

	if c.Cache.SweepInterval < 0 {
		return errors.New("cache.sweep_interval must be >= 0")
	}
	if c.Providers.Breaker.FailureThreshold < 1 {
		return errors.New("providers.breaker.failure_threshold must be >= 1")
	}

	for _, e := range c.Providers.Quotes {
		if err := e.validate("providers.quotes"); err != nil {
			return err
		}
	}
	for _, e := range c.Providers.Staking {
		if err := e.validate("providers.staking"); err != nil {
			return err
		}
	}
	for _, e := range c.Providers.Explorers {
		if err := e.validate("providers.explorers"); err != nil {
			return err
		}
		if e.Network == "" {
			return fmt.Errorf("providers.explorers entry %q needs a network", e.Name)
		}
	}
	if c.Providers.QuoteStream.Enabled && c.Providers.QuoteStream.URL == "" {
		return errors.New("providers.quote_stream.url is required when enabled")
	}

	for network, nc := range c.Networks {
		for field, raw := range map[string]string{
			"transfer_threshold_usd": nc.TransferThresholdUSD,
			"stake_threshold_usd":    nc.StakeThresholdUSD,
		} {
			v, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("networks.%s.%s: invalid decimal %q", network, field, raw)
			}
			if v.IsNegative() {
				return fmt.Errorf("networks.%s.%s must be >= 0", network, field)
			}
		}
	}

	return nil
}

func (e *EndpointConfig) validate(prefix string) error {
	if e.Name == "" {
		return fmt.Errorf("%s entry needs a name", prefix)
	}
	if e.URL == "" {
		return fmt.Errorf("%s entry %q needs a url", prefix, e.Name)
	}
	return nil
}
