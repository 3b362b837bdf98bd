// Package provider abstracts external market-data sources behind a uniform
// adapter contract and a priority-ordered fallback resolver.
package provider

import (
	"context"
	"fmt"

	"marketpulse/internal/domain"
)

// Category names a class of data served by a provider chain.
type Category string

const (
	CategoryPrice    Category = "price"
	CategoryBalances Category = "balances"
	CategoryEvents   Category = "events"
	CategoryInsights Category = "insights"
	CategorySignals  Category = "signals"
)

// IsValid checks if the category is a valid value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPrice, CategoryBalances, CategoryEvents, CategoryInsights, CategorySignals:
		return true
	}
	return false
}

// ErrorCode classifies an adapter failure.
type ErrorCode string

const (
	ErrCodeNone        ErrorCode = ""
	ErrCodeNetwork     ErrorCode = "NETWORK"
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	ErrCodeAuth        ErrorCode = "AUTH"
	ErrCodeBadPayload  ErrorCode = "BAD_PAYLOAD"
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"
	ErrCodePanic       ErrorCode = "PANIC"
)

// Request describes one data lookup routed through a provider chain.
type Request struct {
	Category Category
	Network  domain.Network
	Symbol   string // price lookups
	Address  string // balance and event lookups
	Limit    int    // feed lookups; 0 means provider default
}

// CacheKey returns the cache key identifying this request.
func (r Request) CacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", r.Category, r.Network, r.Symbol, r.Address, r.Limit)
}

// Result is the outcome of a single adapter call or a resolved chain.
// Created fresh per attempt; never persisted.
type Result struct {
	Source   string // adapter name that produced the result
	OK       bool
	Payload  domain.Payload
	Code     ErrorCode
	Err      error
	Degraded bool // true when the terminal fallback produced the result
}

// Failure builds an ok:false result for the named adapter.
func Failure(source string, code ErrorCode, err error) Result {
	return Result{Source: source, Code: code, Err: err}
}

// Success builds an ok:true result for the named adapter.
func Success(source string, payload domain.Payload) Result {
	return Result{Source: source, OK: true, Payload: payload}
}

// copyPayload returns the result with any list payload replaced by a fresh
// copy, so consumers reading the same cached entry never share slices.
func (r Result) copyPayload() Result {
	switch p := r.Payload.(type) {
	case domain.EventList:
		events := make([]domain.RawEvent, len(p.Events))
		copy(events, p.Events)
		for i := range events {
			if events[i].ToAddress != nil {
				to := *events[i].ToAddress
				events[i].ToAddress = &to
			}
		}
		p.Events = events
		r.Payload = p
	case domain.BalanceList:
		balances := make([]domain.TokenBalance, len(p.Balances))
		copy(balances, p.Balances)
		p.Balances = balances
		r.Payload = p
	case domain.InsightList:
		insights := make([]domain.MarketInsight, len(p.Insights))
		copy(insights, p.Insights)
		p.Insights = insights
		r.Payload = p
	case domain.SignalList:
		signals := make([]domain.TradeSignal, len(p.Signals))
		copy(signals, p.Signals)
		p.Signals = signals
		r.Payload = p
	}
	return r
}

// Adapter is a uniform wrapper around one external data source.
// Fetch must never panic across the boundary: failures come back as
// ok:false results with an error code.
type Adapter interface {
	// Name returns the unique adapter name, e.g. "basescan".
	Name() string

	// Priority orders adapters within a chain; lower is tried first.
	Priority() int

	// Fetch performs the lookup. The context bounds the network call.
	Fetch(ctx context.Context, req Request) Result
}
