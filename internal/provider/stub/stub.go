// Package stub provides fixed-response adapters for tests.
package stub

import (
	"context"
	"errors"
	"sync/atomic"

	"marketpulse/internal/domain"
	"marketpulse/internal/provider"
)

// Adapter returns canned results and counts calls.
// Implements provider.Adapter.
type Adapter struct {
	AdapterName string
	Prio        int

	// Payload is returned on success. Err, when set, makes every call fail.
	Payload domain.Payload
	Err     error
	Code    provider.ErrorCode

	// FailFirst makes the first n calls fail before succeeding.
	FailFirst int

	// OnlyNetwork, when set, rejects requests for other networks as
	// unsupported, mirroring the network-bound HTTP adapters.
	OnlyNetwork domain.Network

	// PanicOnCall makes Fetch panic, to exercise the resolver boundary.
	PanicOnCall bool

	calls atomic.Int64
}

// New creates a stub adapter that succeeds with the given payload.
func New(name string, priority int, payload domain.Payload) *Adapter {
	return &Adapter{AdapterName: name, Prio: priority, Payload: payload}
}

// NewFailing creates a stub adapter that always fails.
func NewFailing(name string, priority int, code provider.ErrorCode) *Adapter {
	return &Adapter{
		AdapterName: name,
		Prio:        priority,
		Err:         errors.New("stub failure"),
		Code:        code,
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string { return a.AdapterName }

// Priority returns the adapter's chain position.
func (a *Adapter) Priority() int { return a.Prio }

// Calls returns how many times Fetch ran.
func (a *Adapter) Calls() int { return int(a.calls.Load()) }

// Fetch returns the canned result.
func (a *Adapter) Fetch(_ context.Context, req provider.Request) provider.Result {
	n := a.calls.Add(1)

	if a.PanicOnCall {
		panic("stub adapter panic")
	}
	if a.OnlyNetwork != "" && req.Network != a.OnlyNetwork {
		return provider.Failure(a.AdapterName, provider.ErrCodeUnsupported,
			errors.New("stub does not serve network"))
	}
	if a.Err != nil {
		return provider.Failure(a.AdapterName, a.Code, a.Err)
	}
	if int(n) <= a.FailFirst {
		return provider.Failure(a.AdapterName, provider.ErrCodeNetwork, errors.New("stub transient failure"))
	}
	return provider.Success(a.AdapterName, a.Payload)
}

// Verify interface compliance at compile time.
var _ provider.Adapter = (*Adapter)(nil)
