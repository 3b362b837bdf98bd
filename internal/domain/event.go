package domain

import "github.com/shopspring/decimal"

// EventKind distinguishes raw on-chain event families.
type EventKind string

const (
	EventTransfer EventKind = "TRANSFER"
	EventStake    EventKind = "STAKE"
)

// IsValid checks if the event kind is a valid value.
func (k EventKind) IsValid() bool {
	return k == EventTransfer || k == EventStake
}

// RawEvent is a provider-reported on-chain event before classification.
// Amount is denominated in token units, not USD; the classifier resolves
// the USD value through the price chain.
type RawEvent struct {
	Network     Network
	Token       string // token symbol, e.g. "ETH", "AERO"
	Amount      decimal.Decimal
	FromAddress string
	ToAddress   *string // nullable: stake events have no counterparty
	TxHash      string
	Kind        EventKind
	Timestamp   int64 // Unix timestamp in milliseconds
	Synthetic   bool  // true when produced by the simulated fallback
}
