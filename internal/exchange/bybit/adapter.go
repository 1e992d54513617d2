// Package bybit adapts the Bybit v5 public websocket stream to the quote
// engine's adapter contract.
package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"quotebridge/internal/quote"
	"quotebridge/internal/stream"
	"quotebridge/internal/types"
)

// Name is the exchange id this adapter registers under.
const Name = "bybit"

// Config holds the connection settings for the adapter. APIKey/APISecret
// are only needed for private topics and may be empty.
type Config struct {
	WSURL         string
	APIKey        string
	APISecret     string
	PingInterval  time.Duration
	PostAuthDelay time.Duration
}

// Adapter implements quote.Adapter for Bybit.
type Adapter struct {
	cfg Config
}

// New returns a Bybit adapter. A zero ping interval defaults to 20s, the
// venue's documented keep-alive requirement.
func New(cfg Config) *Adapter {
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 20 * time.Second
	}
	return &Adapter{cfg: cfg}
}

// Name implements quote.Adapter.
func (a *Adapter) Name() string { return Name }

// Capabilities implements quote.Adapter. Level-1 is derived from the
// depth stream; Bybit has no standalone top-of-book topic on v5.
func (a *Adapter) Capabilities() quote.Capabilities {
	return quote.Capabilities{Level1: true, Level2: true, OrderFlow: true}
}

// Subscription implements quote.Adapter. Level-1 and Level-2 share the
// orderbook topic; order flow has its own.
func (a *Adapter) Subscription(t *types.Ticker, kind types.SubscriptionKind) (quote.Subscription, error) {
	var topic string
	switch kind {
	case types.KindLevel1, types.KindLevel2:
		topic = topicOrderbookPrefix + t.Symbol
	case types.KindOrderFlow:
		topic = topicTradePrefix + t.Symbol
	default:
		return quote.Subscription{}, types.Errorf(types.ErrKindCapability, "bybit does not publish %s", kind)
	}

	subscribe, err := json.Marshal(wsCommand{Op: "subscribe", Args: []any{topic}})
	if err != nil {
		return quote.Subscription{}, types.NewError(types.ErrKindParse, "marshal subscribe", err)
	}
	ping, _ := json.Marshal(wsCommand{Op: "ping"})

	profile := stream.Profile{
		URL:           a.cfg.WSURL,
		Subscribe:     subscribe,
		Ping:          ping,
		PingInterval:  a.cfg.PingInterval,
		PostAuthDelay: a.cfg.PostAuthDelay,
	}
	if a.cfg.APIKey != "" {
		profile.BuildAuth = a.buildAuth
	}

	return quote.Subscription{
		Channel:    topic,
		WireSymbol: t.Symbol,
		Profile:    profile,
	}, nil
}

// buildAuth signs the expiring auth payload with HMAC-SHA256.
func (a *Adapter) buildAuth() ([]byte, error) {
	expires := time.Now().Add(10 * time.Second).UnixMilli()
	mac := hmac.New(sha256.New, []byte(a.cfg.APISecret))
	fmt.Fprintf(mac, "GET/realtime%d", expires)
	signature := hex.EncodeToString(mac.Sum(nil))

	return json.Marshal(wsCommand{Op: "auth", Args: []any{a.cfg.APIKey, expires, signature}})
}

// Parse implements quote.Adapter.
func (a *Adapter) Parse(raw []byte) ([]quote.Event, error) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, types.NewError(types.ErrKindParse, "unmarshal frame", err)
	}
	if msg.Topic == "" {
		// Subscribe ack, auth response or pong.
		return nil, nil
	}

	switch {
	case strings.HasPrefix(msg.Topic, topicOrderbookPrefix):
		return a.parseOrderbook(msg)
	case strings.HasPrefix(msg.Topic, topicTradePrefix):
		return a.parseTrades(msg)
	default:
		return nil, nil
	}
}

func (a *Adapter) parseOrderbook(msg wsMessage) ([]quote.Event, error) {
	var data orderbookData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, types.NewError(types.ErrKindParse, "unmarshal orderbook data", err)
	}
	ts := time.UnixMilli(msg.TS)

	if msg.Type == "snapshot" {
		bids, err := parseLevels(data.Bids)
		if err != nil {
			return nil, err
		}
		asks, err := parseLevels(data.Asks)
		if err != nil {
			return nil, err
		}
		return []quote.Event{quote.BookSnapshot{
			Symbol: data.Symbol,
			Bids:   bids,
			Asks:   asks,
			Time:   ts,
		}}, nil
	}

	var events []quote.Event
	for _, pair := range data.Bids {
		price, size, err := parseLevel(pair)
		if err != nil {
			return nil, err
		}
		events = append(events, quote.BookDelta{
			Symbol: data.Symbol, Side: types.Buy, Price: price, Size: size, Time: ts,
		})
	}
	for _, pair := range data.Asks {
		price, size, err := parseLevel(pair)
		if err != nil {
			return nil, err
		}
		events = append(events, quote.BookDelta{
			Symbol: data.Symbol, Side: types.Sell, Price: price, Size: size, Time: ts,
		})
	}
	return events, nil
}

func (a *Adapter) parseTrades(msg wsMessage) ([]quote.Event, error) {
	var trades []tradeData
	if err := json.Unmarshal(msg.Data, &trades); err != nil {
		return nil, types.NewError(types.ErrKindParse, "unmarshal trade data", err)
	}

	events := make([]quote.Event, 0, len(trades))
	for _, tr := range trades {
		price, err := decimal.NewFromString(tr.Price)
		if err != nil {
			return nil, types.NewError(types.ErrKindParse, "trade price "+tr.Price, err)
		}
		size, err := decimal.NewFromString(tr.Size)
		if err != nil {
			return nil, types.NewError(types.ErrKindParse, "trade size "+tr.Size, err)
		}
		side := types.Buy
		if tr.Side == "Sell" {
			side = types.Sell
		}
		events = append(events, quote.TradeEvent{
			Symbol: tr.Symbol,
			Price:  price,
			Size:   size,
			Side:   side,
			Time:   time.UnixMilli(tr.Time),
		})
	}
	return events, nil
}

func parseLevels(pairs [][2]string) ([]types.Level, error) {
	levels := make([]types.Level, 0, len(pairs))
	for _, pair := range pairs {
		price, size, err := parseLevel(pair)
		if err != nil {
			return nil, err
		}
		levels = append(levels, types.Level{Price: price, Size: size})
	}
	return levels, nil
}

func parseLevel(pair [2]string) (price, size decimal.Decimal, err error) {
	price, err = decimal.NewFromString(pair[0])
	if err != nil {
		return price, size, types.NewError(types.ErrKindParse, "level price "+pair[0], err)
	}
	size, err = decimal.NewFromString(pair[1])
	if err != nil {
		return price, size, types.NewError(types.ErrKindParse, "level size "+pair[1], err)
	}
	return price, size, nil
}
