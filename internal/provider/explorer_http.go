package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
)

// ExplorerHTTP is a chain-explorer adapter in the etherscan API family.
// It serves CategoryEvents (recent transfers) and CategoryBalances
// (token balances for an address) for one network.
type ExplorerHTTP struct {
	name     string
	priority int
	baseURL  string
	apiKey   string
	network  domain.Network
	doer     *httpDoer
}

// explorerEnvelope is the etherscan-style response envelope.
// Status "1" means success; "0" carries the failure in Message.
type explorerEnvelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []T    `json:"result"`
}

// explorerTx is one transfer row of the txlist action.
type explorerTx struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	TokenSymbol string `json:"tokenSymbol"`
	Value       string `json:"value"`
	TimeStamp   int64  `json:"timeStamp,string"`
}

// explorerBalance is one row of the addresstokenbalance action.
type explorerBalance struct {
	TokenSymbol string `json:"TokenSymbol"`
	Quantity    string `json:"TokenQuantity"`
}

// NewExplorerHTTP creates a chain-explorer adapter for one network.
func NewExplorerHTTP(name string, priority int, baseURL, apiKey string, network domain.Network, opts ...HTTPOption) *ExplorerHTTP {
	doer := newHTTPDoer()
	for _, opt := range opts {
		opt(doer)
	}
	return &ExplorerHTTP{
		name:     name,
		priority: priority,
		baseURL:  baseURL,
		apiKey:   apiKey,
		network:  network,
		doer:     doer,
	}
}

// Name returns the adapter name.
func (e *ExplorerHTTP) Name() string { return e.name }

// Priority returns the adapter's chain position; lower is tried first.
func (e *ExplorerHTTP) Priority() int { return e.priority }

// Fetch resolves an event list or balance list request.
func (e *ExplorerHTTP) Fetch(ctx context.Context, req Request) Result {
	if req.Network != e.network {
		return Failure(e.name, ErrCodeUnsupported, fmt.Errorf("explorer %s does not serve network %s", e.name, req.Network))
	}

	switch req.Category {
	case CategoryEvents:
		return e.fetchEvents(ctx, req)
	case CategoryBalances:
		return e.fetchBalances(ctx, req)
	default:
		return Failure(e.name, ErrCodeUnsupported, fmt.Errorf("explorer adapter cannot serve %s request", req.Category))
	}
}

func (e *ExplorerHTTP) fetchEvents(ctx context.Context, req Request) Result {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	u := fmt.Sprintf("%s/api?module=account&action=tokentx&offset=%d&sort=desc&apikey=%s",
		e.baseURL, limit, url.QueryEscape(e.apiKey))
	if req.Address != "" {
		u += "&address=" + url.QueryEscape(req.Address)
	}

	var resp explorerEnvelope[explorerTx]
	status, err := e.doer.getJSON(ctx, u, nil, &resp)
	if err != nil {
		return Failure(e.name, codeForStatus(status, err), err)
	}
	if resp.Status != "1" {
		return Failure(e.name, ErrCodeBadPayload, fmt.Errorf("explorer error: %s", resp.Message))
	}

	events := make([]domain.RawEvent, 0, len(resp.Result))
	for _, tx := range resp.Result {
		amount, err := decimal.NewFromString(tx.Value)
		if err != nil {
			// One malformed row does not fail the batch.
			continue
		}
		to := tx.To
		events = append(events, domain.RawEvent{
			Network:     e.network,
			Token:       tx.TokenSymbol,
			Amount:      amount,
			FromAddress: tx.From,
			ToAddress:   &to,
			TxHash:      tx.Hash,
			Kind:        domain.EventTransfer,
			Timestamp:   tx.TimeStamp * 1000,
		})
	}

	return Success(e.name, domain.EventList{Network: e.network, Events: events})
}

func (e *ExplorerHTTP) fetchBalances(ctx context.Context, req Request) Result {
	if req.Address == "" {
		return Failure(e.name, ErrCodeUnsupported, fmt.Errorf("balance request requires an address"))
	}
	u := fmt.Sprintf("%s/api?module=account&action=addresstokenbalance&address=%s&apikey=%s",
		e.baseURL, url.QueryEscape(req.Address), url.QueryEscape(e.apiKey))

	var resp explorerEnvelope[explorerBalance]
	status, err := e.doer.getJSON(ctx, u, nil, &resp)
	if err != nil {
		return Failure(e.name, codeForStatus(status, err), err)
	}
	if resp.Status != "1" {
		return Failure(e.name, ErrCodeBadPayload, fmt.Errorf("explorer error: %s", resp.Message))
	}

	balances := make([]domain.TokenBalance, 0, len(resp.Result))
	for _, b := range resp.Result {
		amount, err := decimal.NewFromString(b.Quantity)
		if err != nil {
			continue
		}
		balances = append(balances, domain.TokenBalance{Symbol: b.TokenSymbol, Amount: amount})
	}

	return Success(e.name, domain.BalanceList{
		Network:  e.network,
		Address:  req.Address,
		Balances: balances,
	})
}

// Verify interface compliance at compile time.
var _ Adapter = (*ExplorerHTTP)(nil)
