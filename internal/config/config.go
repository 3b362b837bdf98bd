// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

// UnmarshalYAML accepts either a Go duration string or integer seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var secs int64
	if err := node.Decode(&secs); err != nil {
		return fmt.Errorf("duration must be a string or integer seconds")
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root engine configuration.
type Config struct {
	Jobs      JobsConfig               `yaml:"jobs"`
	Cache     CacheConfig              `yaml:"cache"`
	Providers ProvidersConfig          `yaml:"providers"`
	Networks  map[string]NetworkConfig `yaml:"networks"` // keyed by BASE/ETH/TAO
	Metrics   MetricsConfig            `yaml:"metrics"`
}

// JobsConfig holds the poll interval of every scheduled job.
type JobsConfig struct {
	WhaleScan         Duration `yaml:"whale_scan"`
	PriceRefresh      Duration `yaml:"price_refresh"`
	PortfolioSnapshot Duration `yaml:"portfolio_snapshot"`
	InsightRefresh    Duration `yaml:"insight_refresh"`
}

// CacheConfig holds per-category cache TTLs and the sweep interval.
type CacheConfig struct {
	PriceTTL      Duration `yaml:"price_ttl"`
	BalanceTTL    Duration `yaml:"balance_ttl"`
	EventTTL      Duration `yaml:"event_ttl"`
	FeedTTL       Duration `yaml:"feed_ttl"`
	SweepInterval Duration `yaml:"sweep_interval"` // 0 disables the janitor
}

// BreakerConfig holds circuit-breaker settings shared by all adapters.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	Cooldown         Duration `yaml:"cooldown"`
}

// EndpointConfig describes one REST provider endpoint.
type EndpointConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	Priority int    `yaml:"priority"` // lower is tried first
}

// ExplorerConfig is an EndpointConfig bound to one network.
type ExplorerConfig struct {
	EndpointConfig `yaml:",inline"`
	Network        string `yaml:"network"`
}

// StreamConfig describes the optional streaming quote feed.
type StreamConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Priority int    `yaml:"priority"`
	Enabled  bool   `yaml:"enabled"`
}

// ProvidersConfig holds the provider chains and breaker settings.
type ProvidersConfig struct {
	Breaker     BreakerConfig    `yaml:"breaker"`
	SimSeed     int64            `yaml:"sim_seed"` // seed of the terminal fallback generator
	Quotes      []EndpointConfig `yaml:"quotes"`
	Explorers   []ExplorerConfig `yaml:"explorers"`
	Staking     []EndpointConfig `yaml:"staking"`
	QuoteStream StreamConfig     `yaml:"quote_stream"`
}

// NetworkConfig holds per-network classification rules.
// Thresholds are decimal strings so config round-trips exactly.
type NetworkConfig struct {
	TransferThresholdUSD string   `yaml:"transfer_threshold_usd"`
	StakeThresholdUSD    string   `yaml:"stake_threshold_usd"`
	ExcludedTokens       []string `yaml:"excluded_tokens"`
	VenueAddresses       []string `yaml:"venue_addresses"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}
