package domain

import "github.com/shopspring/decimal"

// PayloadKind tags the provider payload variant.
type PayloadKind string

const (
	PayloadPrice    PayloadKind = "PRICE_QUOTE"
	PayloadBalances PayloadKind = "BALANCE_LIST"
	PayloadEvents   PayloadKind = "EVENT_LIST"
	PayloadInsights PayloadKind = "INSIGHT_LIST"
	PayloadSignals  PayloadKind = "SIGNAL_LIST"
)

// Payload is the tagged union of everything a provider can return.
// Each variant is an explicitly parsed, typed value; raw provider wire
// formats never cross the adapter boundary.
type Payload interface {
	Kind() PayloadKind
}

// PriceQuote is the payload of a price-feed provider.
type PriceQuote struct {
	Symbol    string
	Network   Network
	PriceUSD  decimal.Decimal
	Change24h decimal.Decimal // percent, may be zero when the feed omits it
}

func (PriceQuote) Kind() PayloadKind { return PayloadPrice }

// TokenBalance is one entry of a BalanceList.
type TokenBalance struct {
	Symbol string
	Amount decimal.Decimal // token units
}

// BalanceList is the payload of a chain-explorer balance provider.
type BalanceList struct {
	Network  Network
	Address  string
	Balances []TokenBalance
}

func (BalanceList) Kind() PayloadKind { return PayloadBalances }

// EventList is the payload of a chain-explorer or staking-event provider.
type EventList struct {
	Network Network
	Events  []RawEvent
}

func (EventList) Kind() PayloadKind { return PayloadEvents }

// InsightList is the payload of a market-insight provider.
type InsightList struct {
	Insights []MarketInsight
}

func (InsightList) Kind() PayloadKind { return PayloadInsights }

// SignalList is the payload of a trade-signal provider.
type SignalList struct {
	Signals []TradeSignal
}

func (SignalList) Kind() PayloadKind { return PayloadSignals }
