package provider

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
)

// QuoteHTTP is a price-quote adapter over a REST endpoint of the form
// GET {base}/v1/quote?symbol=ETH. It serves CategoryPrice requests only.
type QuoteHTTP struct {
	name     string
	priority int
	baseURL  string
	apiKey   string
	doer     *httpDoer
}

// quoteResponse is the wire shape of the quote endpoint.
type quoteResponse struct {
	Symbol    string `json:"symbol"`
	PriceUSD  string `json:"price_usd"`
	Change24h string `json:"change_24h"`
}

// NewQuoteHTTP creates a price-quote adapter.
func NewQuoteHTTP(name string, priority int, baseURL, apiKey string, opts ...HTTPOption) *QuoteHTTP {
	doer := newHTTPDoer()
	for _, opt := range opts {
		opt(doer)
	}
	return &QuoteHTTP{
		name:     name,
		priority: priority,
		baseURL:  baseURL,
		apiKey:   apiKey,
		doer:     doer,
	}
}

// Name returns the adapter name.
func (q *QuoteHTTP) Name() string { return q.name }

// Priority returns the adapter's chain position; lower is tried first.
func (q *QuoteHTTP) Priority() int { return q.priority }

// Fetch resolves a price quote for req.Symbol.
func (q *QuoteHTTP) Fetch(ctx context.Context, req Request) Result {
	if req.Category != CategoryPrice || req.Symbol == "" {
		return Failure(q.name, ErrCodeUnsupported, fmt.Errorf("quote adapter cannot serve %s request", req.Category))
	}

	u := fmt.Sprintf("%s/v1/quote?symbol=%s", q.baseURL, url.QueryEscape(req.Symbol))
	headers := map[string]string{}
	if q.apiKey != "" {
		headers["X-API-Key"] = q.apiKey
	}

	var resp quoteResponse
	status, err := q.doer.getJSON(ctx, u, headers, &resp)
	if err != nil {
		return Failure(q.name, codeForStatus(status, err), err)
	}

	price, err := decimal.NewFromString(resp.PriceUSD)
	if err != nil {
		return Failure(q.name, ErrCodeBadPayload, fmt.Errorf("parse price %q: %w", resp.PriceUSD, err))
	}
	change := decimal.Zero
	if resp.Change24h != "" {
		if change, err = decimal.NewFromString(resp.Change24h); err != nil {
			return Failure(q.name, ErrCodeBadPayload, fmt.Errorf("parse change %q: %w", resp.Change24h, err))
		}
	}

	return Success(q.name, domain.PriceQuote{
		Symbol:    req.Symbol,
		Network:   req.Network,
		PriceUSD:  price,
		Change24h: change,
	})
}

// Verify interface compliance at compile time.
var _ Adapter = (*QuoteHTTP)(nil)
