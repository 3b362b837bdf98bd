package domain

import "github.com/shopspring/decimal"

// Holding is one position inside a portfolio.
// CurrentPrice, PnL and PnLPercentage are recomputed by the valuation
// aggregator on each price-refresh tick; nothing else mutates them.
type Holding struct {
	PortfolioID   string
	Symbol        string
	Network       Network
	Amount        decimal.Decimal // token units, must be >= 0
	EntryPrice    decimal.Decimal // USD price at first observation
	CurrentPrice  decimal.Decimal // USD, last resolved price
	PnL           decimal.Decimal // (CurrentPrice - EntryPrice) * Amount
	PnLPercentage decimal.Decimal // PnL relative to entry value, in percent
	UpdatedAt     int64           // Unix timestamp in milliseconds
}

// Recompute derives PnL and PnLPercentage from the price fields.
func (h *Holding) Recompute() {
	h.PnL = h.CurrentPrice.Sub(h.EntryPrice).Mul(h.Amount)
	entryValue := h.EntryPrice.Mul(h.Amount)
	if entryValue.IsZero() {
		h.PnLPercentage = decimal.Zero
		return
	}
	h.PnLPercentage = h.PnL.Div(entryValue).Mul(decimal.NewFromInt(100))
}

// Value returns the current USD value of the holding.
func (h *Holding) Value() decimal.Decimal {
	return h.CurrentPrice.Mul(h.Amount)
}
