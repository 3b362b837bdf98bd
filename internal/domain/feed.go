package domain

// Sentiment labels a market insight.
type Sentiment string

const (
	SentimentBullish Sentiment = "BULLISH"
	SentimentBearish Sentiment = "BEARISH"
	SentimentNeutral Sentiment = "NEUTRAL"
)

// IsValid checks if the sentiment is a valid value.
func (s Sentiment) IsValid() bool {
	return s == SentimentBullish || s == SentimentBearish || s == SentimentNeutral
}

// MarketInsight is one entry of the append-only insight feed.
type MarketInsight struct {
	ID        string // PRIMARY KEY
	Title     string
	Body      string
	Sentiment Sentiment
	Source    string // provider name the insight came from
	Synthetic bool
	CreatedAt int64 // Unix timestamp in milliseconds
}

// SignalDirection is the side of a trade signal.
type SignalDirection string

const (
	SignalLong  SignalDirection = "LONG"
	SignalShort SignalDirection = "SHORT"
)

// IsValid checks if the direction is a valid value.
func (d SignalDirection) IsValid() bool {
	return d == SignalLong || d == SignalShort
}

// TradeSignal is one entry of the append-only signal feed.
type TradeSignal struct {
	ID         string // PRIMARY KEY
	Symbol     string
	Network    Network
	Direction  SignalDirection
	Confidence float64 // 0..1
	Source     string
	Synthetic  bool
	CreatedAt  int64 // Unix timestamp in milliseconds
}
