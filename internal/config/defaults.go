package config

import "time"

// Default configuration values.
const (
	DefaultWhaleScanInterval         = 10 * time.Second
	DefaultPriceRefreshInterval      = 30 * time.Second
	DefaultPortfolioSnapshotInterval = 60 * time.Second
	DefaultInsightRefreshInterval    = 2 * time.Minute

	DefaultPriceTTL   = 30 * time.Second
	DefaultBalanceTTL = 2 * time.Minute
	DefaultEventTTL   = 10 * time.Second
	DefaultFeedTTL    = 5 * time.Minute

	DefaultBreakerThreshold = 3
	DefaultBreakerCooldown  = 2 * time.Minute

	DefaultTransferThresholdUSD = "5000"
	DefaultStakeThresholdUSD    = "1000"
)

// Stable and base-asset symbols excluded from whale detection per network,
// so only genuine altcoin flow counts as signal.
var defaultExclusions = map[string][]string{
	"BASE": {"USDC", "USDT", "DAI", "WETH", "ETH"},
	"ETH":  {"USDC", "USDT", "DAI"},
	"TAO":  {},
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Jobs.WhaleScan == 0 {
		c.Jobs.WhaleScan = Duration(DefaultWhaleScanInterval)
	}
	if c.Jobs.PriceRefresh == 0 {
		c.Jobs.PriceRefresh = Duration(DefaultPriceRefreshInterval)
	}
	if c.Jobs.PortfolioSnapshot == 0 {
		c.Jobs.PortfolioSnapshot = Duration(DefaultPortfolioSnapshotInterval)
	}
	if c.Jobs.InsightRefresh == 0 {
		c.Jobs.InsightRefresh = Duration(DefaultInsightRefreshInterval)
	}

	if c.Cache.PriceTTL == 0 {
		c.Cache.PriceTTL = Duration(DefaultPriceTTL)
	}
	if c.Cache.BalanceTTL == 0 {
		c.Cache.BalanceTTL = Duration(DefaultBalanceTTL)
	}
	if c.Cache.EventTTL == 0 {
		c.Cache.EventTTL = Duration(DefaultEventTTL)
	}
	if c.Cache.FeedTTL == 0 {
		c.Cache.FeedTTL = Duration(DefaultFeedTTL)
	}

	if c.Providers.Breaker.FailureThreshold == 0 {
		c.Providers.Breaker.FailureThreshold = DefaultBreakerThreshold
	}
	if c.Providers.Breaker.Cooldown == 0 {
		c.Providers.Breaker.Cooldown = Duration(DefaultBreakerCooldown)
	}
	if c.Providers.SimSeed == 0 {
		c.Providers.SimSeed = time.Now().UnixNano()
	}

	if c.Networks == nil {
		c.Networks = make(map[string]NetworkConfig)
	}
	for _, network := range []string{"BASE", "ETH", "TAO"} {
		nc := c.Networks[network]
		if nc.TransferThresholdUSD == "" {
			nc.TransferThresholdUSD = DefaultTransferThresholdUSD
		}
		if nc.StakeThresholdUSD == "" {
			nc.StakeThresholdUSD = DefaultStakeThresholdUSD
		}
		if nc.ExcludedTokens == nil {
			nc.ExcludedTokens = defaultExclusions[network]
		}
		c.Networks[network] = nc
	}
}
