package domain

import "github.com/shopspring/decimal"

// PortfolioSnapshot is an immutable point-in-time valuation of a portfolio.
// Snapshots are append-only; insertion order equals chronological order.
type PortfolioSnapshot struct {
	PortfolioID     string
	TotalValue      decimal.Decimal
	PerNetworkValue map[Network]decimal.Decimal
	PnL24h          decimal.Decimal
	PnL7d           decimal.Decimal
	PnL30d          decimal.Decimal
	PnLYTD          decimal.Decimal
	PnLAll          decimal.Decimal
	Approximated    bool  // true when window PnL was projected, not measured
	Timestamp       int64 // Unix timestamp in milliseconds
}

// Clone returns a deep copy, so stored snapshots are never shared by reference.
func (s *PortfolioSnapshot) Clone() *PortfolioSnapshot {
	c := *s
	c.PerNetworkValue = make(map[Network]decimal.Decimal, len(s.PerNetworkValue))
	for k, v := range s.PerNetworkValue {
		c.PerNetworkValue[k] = v
	}
	return &c
}
