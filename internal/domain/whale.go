package domain

import "github.com/shopspring/decimal"

// WhaleTransaction is an admitted whale candidate.
// TxHash is the unique key; the store rejects duplicates for its lifetime.
type WhaleTransaction struct {
	TxHash      string // PRIMARY KEY
	Network     Network
	Token       string
	AmountUSD   decimal.Decimal
	FromAddress string
	ToAddress   *string // nullable
	Action      Action
	Synthetic   bool  // true when classified from simulated fallback data
	ObservedAt  int64 // Unix timestamp in milliseconds
}
