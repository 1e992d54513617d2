package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ticker is the canonical identifier plus trading metadata for one
// instrument on one exchange. Tickers are immutable once constructed and
// shared by pointer; components must never copy one and let the copies
// diverge.
type Ticker struct {
	Symbol        string
	Exchange      string
	QuoteCurrency string
	TickSize      decimal.Decimal
	SizeStep      decimal.Decimal
	MinSize       decimal.Decimal
	MinNotional   decimal.Decimal
}

// NewTicker constructs a Ticker with the given trading constraints.
func NewTicker(symbol, exchange, quoteCurrency string, tickSize, sizeStep, minSize, minNotional decimal.Decimal) *Ticker {
	return &Ticker{
		Symbol:        symbol,
		Exchange:      exchange,
		QuoteCurrency: quoteCurrency,
		TickSize:      tickSize,
		SizeStep:      sizeStep,
		MinSize:       minSize,
		MinNotional:   minNotional,
	}
}

// Key returns the globally unique identifier for the ticker.
func (t *Ticker) Key() string {
	return t.Exchange + ":" + t.Symbol
}

// String implements fmt.Stringer for Ticker.
func (t *Ticker) String() string {
	if t == nil {
		return "nil Ticker"
	}
	return fmt.Sprintf("%s@%s", t.Symbol, t.Exchange)
}
