package provider

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
)

// StakeHTTP is a staking-oracle adapter for the TAO network, modeled on
// the taostats API family. It serves CategoryEvents with stake events.
type StakeHTTP struct {
	name     string
	priority int
	baseURL  string
	apiKey   string
	doer     *httpDoer
}

// stakeResponse is the wire shape of the stake-events endpoint.
type stakeResponse struct {
	Data []stakeEvent `json:"data"`
}

// stakeEvent is one staking event row.
type stakeEvent struct {
	Nominator   string `json:"nominator"`
	AmountTao   string `json:"amount"`
	BlockHash   string `json:"block_hash"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// NewStakeHTTP creates a staking-event adapter.
func NewStakeHTTP(name string, priority int, baseURL, apiKey string, opts ...HTTPOption) *StakeHTTP {
	doer := newHTTPDoer()
	for _, opt := range opts {
		opt(doer)
	}
	return &StakeHTTP{
		name:     name,
		priority: priority,
		baseURL:  baseURL,
		apiKey:   apiKey,
		doer:     doer,
	}
}

// Name returns the adapter name.
func (s *StakeHTTP) Name() string { return s.name }

// Priority returns the adapter's chain position; lower is tried first.
func (s *StakeHTTP) Priority() int { return s.priority }

// Fetch resolves recent TAO staking events.
func (s *StakeHTTP) Fetch(ctx context.Context, req Request) Result {
	if req.Category != CategoryEvents || req.Network != domain.NetworkTao {
		return Failure(s.name, ErrCodeUnsupported, fmt.Errorf("stake adapter cannot serve %s/%s request", req.Category, req.Network))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	u := fmt.Sprintf("%s/api/stake/latest?limit=%d", s.baseURL, limit)
	headers := map[string]string{}
	if s.apiKey != "" {
		headers["Authorization"] = s.apiKey
	}

	var resp stakeResponse
	status, err := s.doer.getJSON(ctx, u, headers, &resp)
	if err != nil {
		return Failure(s.name, codeForStatus(status, err), err)
	}

	events := make([]domain.RawEvent, 0, len(resp.Data))
	for _, ev := range resp.Data {
		amount, err := decimal.NewFromString(ev.AmountTao)
		if err != nil {
			continue
		}
		events = append(events, domain.RawEvent{
			Network:     domain.NetworkTao,
			Token:       "TAO",
			Amount:      amount,
			FromAddress: ev.Nominator,
			TxHash:      ev.BlockHash,
			Kind:        domain.EventStake,
			Timestamp:   ev.TimestampMs,
		})
	}

	return Success(s.name, domain.EventList{Network: domain.NetworkTao, Events: events})
}

// Verify interface compliance at compile time.
var _ Adapter = (*StakeHTTP)(nil)
