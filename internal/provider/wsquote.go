package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"marketpulse/internal/domain"
)

// WSQuoteConfig configures the streaming quote feed.
type WSQuoteConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// MaxQuoteAge is how old a streamed quote may be and still be served.
	MaxQuoteAge time.Duration
}

// DefaultWSQuoteConfig returns default streaming feed configuration.
func DefaultWSQuoteConfig() WSQuoteConfig {
	return WSQuoteConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		MaxQuoteAge:       15 * time.Second,
	}
}

// wsQuoteMessage is one streamed quote frame.
type wsQuoteMessage struct {
	Symbol    string `json:"symbol"`
	PriceUSD  string `json:"price_usd"`
	Change24h string `json:"change_24h"`
}

// streamedQuote is a quote with its arrival time.
type streamedQuote struct {
	quote      domain.PriceQuote
	receivedAt time.Time
}

// WSQuoteFeed is a price adapter backed by a streaming WebSocket feed.
// A background reader keeps a last-quote table; Fetch answers from the
// table when the quote is fresh enough and fails otherwise, letting the
// chain fall through to a REST quote provider.
type WSQuoteFeed struct {
	name     string
	priority int
	endpoint string
	config   WSQuoteConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	quotes   map[string]streamedQuote // keyed by symbol
	quotesMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSQuoteFeed creates the feed, connects, and starts the reader and
// ping goroutines. Close must be called to release them.
func NewWSQuoteFeed(ctx context.Context, name string, priority int, endpoint string, config *WSQuoteConfig, logger *log.Logger) (*WSQuoteFeed, error) {
	cfg := DefaultWSQuoteConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	f := &WSQuoteFeed{
		name:     name,
		priority: priority,
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		quotes:   make(map[string]streamedQuote),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// connect establishes the WebSocket connection.
func (f *WSQuoteFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	f.conn = conn
	return nil
}

// Name returns the adapter name.
func (f *WSQuoteFeed) Name() string { return f.name }

// Priority returns the adapter's chain position; lower is tried first.
func (f *WSQuoteFeed) Priority() int { return f.priority }

// Fetch serves the last streamed quote for req.Symbol if fresh enough.
func (f *WSQuoteFeed) Fetch(_ context.Context, req Request) Result {
	if req.Category != CategoryPrice || req.Symbol == "" {
		return Failure(f.name, ErrCodeUnsupported, fmt.Errorf("ws feed cannot serve %s request", req.Category))
	}

	f.quotesMu.RLock()
	sq, ok := f.quotes[req.Symbol]
	f.quotesMu.RUnlock()

	if !ok {
		return Failure(f.name, ErrCodeNetwork, fmt.Errorf("no streamed quote for %s", req.Symbol))
	}
	if time.Since(sq.receivedAt) > f.config.MaxQuoteAge {
		return Failure(f.name, ErrCodeNetwork, fmt.Errorf("streamed quote for %s is stale", req.Symbol))
	}

	quote := sq.quote
	quote.Network = req.Network
	return Success(f.name, quote)
}

// Close shuts down the feed and waits for its goroutines.
func (f *WSQuoteFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

// readLoop consumes quote frames, reconnecting with backoff on errors.
func (f *WSQuoteFeed) readLoop() {
	defer f.wg.Done()

	delay := f.config.ReconnectDelay
	for {
		select {
		case <-f.done:
			return
		default:
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			f.logger.Printf("ws feed %s read error: %v, reconnecting in %s", f.name, err, delay)
			select {
			case <-f.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > f.config.MaxReconnectDelay {
				delay = f.config.MaxReconnectDelay
			}
			if err := f.connect(context.Background()); err != nil {
				f.logger.Printf("ws feed %s reconnect failed: %v", f.name, err)
			}
			continue
		}
		delay = f.config.ReconnectDelay

		var msg wsQuoteMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Symbol == "" {
			continue
		}
		price, err := decimal.NewFromString(msg.PriceUSD)
		if err != nil {
			continue
		}
		change := decimal.Zero
		if msg.Change24h != "" {
			if c, err := decimal.NewFromString(msg.Change24h); err == nil {
				change = c
			}
		}

		f.quotesMu.Lock()
		f.quotes[msg.Symbol] = streamedQuote{
			quote: domain.PriceQuote{
				Symbol:    msg.Symbol,
				PriceUSD:  price,
				Change24h: change,
			},
			receivedAt: time.Now(),
		}
		f.quotesMu.Unlock()
	}
}

// pingLoop keeps the connection alive.
func (f *WSQuoteFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			conn := f.conn
			if conn != nil {
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			f.connMu.Unlock()
		}
	}
}

// Verify interface compliance at compile time.
var _ Adapter = (*WSQuoteFeed)(nil)
