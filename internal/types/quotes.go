package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Level is one aggregated price level of an order book side.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Level1Quote carries the best bid/ask for one ticker. Instances are
// created once per update, stamped at normalization time, and never
// mutated after dispatch.
type Level1Quote struct {
	Ticker *Ticker
	Bid    Level
	Ask    Level
	HasBid bool
	HasAsk bool
	Time   time.Time
}

// Level2Quote carries a full depth snapshot for one ticker. Bids are
// sorted descending, asks ascending. The slices are private copies owned
// by the event.
type Level2Quote struct {
	Ticker *Ticker
	Bids   []Level
	Asks   []Level
	Time   time.Time
}

// Trade is a single executed trade from the venue's order-flow stream.
// Side is the aggressor side.
type Trade struct {
	Ticker *Ticker
	Price  decimal.Decimal
	Size   decimal.Decimal
	Side   Side
	Time   time.Time
}
