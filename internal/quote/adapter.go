package quote

import (
	"time"

	"github.com/shopspring/decimal"

	"quotebridge/internal/stream"
	"quotebridge/internal/types"
)

// Capabilities lists the update kinds a venue publishes. Requesting an
// unsupported kind fails synchronously at subscribe time.
type Capabilities struct {
	Level1    bool
	Level2    bool
	OrderFlow bool
}

// Supports reports whether the given kind is available.
func (c Capabilities) Supports(kind types.SubscriptionKind) bool {
	switch kind {
	case types.KindLevel1:
		return c.Level1
	case types.KindLevel2:
		return c.Level2
	case types.KindOrderFlow:
		return c.OrderFlow
	default:
		return false
	}
}

// Subscription describes how one distinct feed subscription is opened.
// Channel is the subscription identity: the engine keeps at most one
// connection per distinct channel, however many listeners share it.
type Subscription struct {
	Channel    string
	WireSymbol string
	Profile    stream.Profile
}

// Event is a normalized feed event. Events carry the venue's wire symbol;
// the engine resolves it back to a Ticker through its subscription index.
type Event interface {
	WireSymbol() string
}

// BookSnapshot replaces the full depth for one instrument.
type BookSnapshot struct {
	Symbol string
	Bids   []types.Level
	Asks   []types.Level
	Time   time.Time
}

func (e BookSnapshot) WireSymbol() string { return e.Symbol }

// BookDelta changes a single price level. Zero size removes the level.
type BookDelta struct {
	Symbol string
	Side   types.Side
	Price  decimal.Decimal
	Size   decimal.Decimal
	Time   time.Time
}

func (e BookDelta) WireSymbol() string { return e.Symbol }

// TopOfBook is a direct best-bid/ask update from venues that publish one
// without full depth.
type TopOfBook struct {
	Symbol string
	Bid    types.Level
	Ask    types.Level
	HasBid bool
	HasAsk bool
	Time   time.Time
}

func (e TopOfBook) WireSymbol() string { return e.Symbol }

// TradeEvent is one executed trade from the order-flow stream.
type TradeEvent struct {
	Symbol string
	Price  decimal.Decimal
	Size   decimal.Decimal
	Side   types.Side
	Time   time.Time
}

func (e TradeEvent) WireSymbol() string { return e.Symbol }

// Adapter is the per-venue strategy the engine composes: it builds
// subscription profiles and parses raw frames into normalized events.
// Implementations must be safe for concurrent use.
type Adapter interface {
	Name() string
	Capabilities() Capabilities

	// Subscription returns the stream subscription for a ticker and kind,
	// or a capability error when the venue does not publish that kind.
	Subscription(t *types.Ticker, kind types.SubscriptionKind) (Subscription, error)

	// Parse turns one raw frame into zero or more normalized events.
	// Control frames (acks, pongs) yield an empty slice. A parse error
	// means the frame is dropped; the connection stays open.
	Parse(raw []byte) ([]Event, error)
}
