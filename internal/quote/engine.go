// Package quote is the per-venue market-data facade. It owns one streaming
// connection per distinct subscription, normalizes venue events into
// Level-1/Level-2/order-flow updates, and fans them out to listeners.
package quote

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"quotebridge/internal/book"
	"quotebridge/internal/retry"
	"quotebridge/internal/stream"
	"quotebridge/internal/types"
)

// Listener callback types, one per update kind. Each receives an
// immutable event value and must not retain or mutate it.
type (
	Level1Listener func(*types.Level1Quote)
	Level2Listener func(*types.Level2Quote)
	TradeListener  func(*types.Trade)
)

// ListenerID identifies one registration for Unsubscribe.
type ListenerID uint64

// Engine is the quote engine for a single venue adapter.
type Engine struct {
	adapter  Adapter
	dial     stream.Dialer
	retryCfg retry.Config

	mu      sync.Mutex
	slots   map[string]*slot      // channel -> slot
	index   map[ListenerID]string // listener -> channel
	nextID  ListenerID
	closing bool
}

// slot is one distinct subscription: a connection plus everything that
// hangs off it. Listener maps are guarded by the slot's own mutex so
// unrelated tickers never share a lock.
type slot struct {
	mu      sync.Mutex
	channel string
	sub     Subscription
	conn    *stream.Connection
	tickers map[string]*types.Ticker // wire symbol -> ticker
	book    *book.Book
	l1      map[ListenerID]Level1Listener
	l2      map[ListenerID]Level2Listener
	flow    map[ListenerID]TradeListener
	closed  bool // explicitly torn down, no resubscribe
}

// NewEngine builds an engine for one venue. A nil dialer uses the
// production websocket dialer.
func NewEngine(adapter Adapter, dial stream.Dialer, retryCfg retry.Config) *Engine {
	if dial == nil {
		dial = stream.Dial
	}
	return &Engine{
		adapter:  adapter,
		dial:     dial,
		retryCfg: retryCfg,
		slots:    make(map[string]*slot),
		index:    make(map[ListenerID]string),
	}
}

// SubscribeLevel1 registers a best-bid/ask listener for the ticker. The
// first listener on a channel opens the connection; later ones share it.
func (e *Engine) SubscribeLevel1(t *types.Ticker, fn Level1Listener) (ListenerID, error) {
	return e.subscribe(t, types.KindLevel1, func(s *slot, id ListenerID) {
		s.l1[id] = fn
	})
}

// SubscribeLevel2 registers a full-depth listener for the ticker.
func (e *Engine) SubscribeLevel2(t *types.Ticker, fn Level2Listener) (ListenerID, error) {
	return e.subscribe(t, types.KindLevel2, func(s *slot, id ListenerID) {
		s.l2[id] = fn
	})
}

// SubscribeOrderFlow registers a trade listener for the ticker.
func (e *Engine) SubscribeOrderFlow(t *types.Ticker, fn TradeListener) (ListenerID, error) {
	return e.subscribe(t, types.KindOrderFlow, func(s *slot, id ListenerID) {
		s.flow[id] = fn
	})
}

func (e *Engine) subscribe(t *types.Ticker, kind types.SubscriptionKind, attach func(*slot, ListenerID)) (ListenerID, error) {
	if !e.adapter.Capabilities().Supports(kind) {
		return 0, types.Errorf(types.ErrKindCapability,
			"%s does not publish %s", e.adapter.Name(), kind)
	}
	sub, err := e.adapter.Subscription(t, kind)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closing {
		return 0, types.Errorf(types.ErrKindConnection, "engine is closed")
	}

	s, ok := e.slots[sub.Channel]
	if !ok {
		s = &slot{
			channel: sub.Channel,
			sub:     sub,
			tickers: make(map[string]*types.Ticker),
			book:    book.New(),
			l1:      make(map[ListenerID]Level1Listener),
			l2:      make(map[ListenerID]Level2Listener),
			flow:    make(map[ListenerID]TradeListener),
		}
		conn, err := e.open(s)
		if err != nil {
			return 0, err
		}
		s.conn = conn
		e.slots[sub.Channel] = s
		log.Info().Str("exchange", e.adapter.Name()).Str("channel", sub.Channel).Msg("subscription opened")
	}

	e.nextID++
	id := e.nextID
	e.index[id] = sub.Channel

	s.mu.Lock()
	s.tickers[sub.WireSymbol] = t
	attach(s, id)
	s.mu.Unlock()

	return id, nil
}

// open dials the slot's connection through the retry executor.
func (e *Engine) open(s *slot) (*stream.Connection, error) {
	return retry.DoValue(context.Background(), e.retryCfg, func() (*stream.Connection, error) {
		return stream.Open(s.sub.Profile, e.dial,
			func(raw []byte) { e.dispatch(s, raw) },
			func(reason error) { e.handleClosed(s, reason) })
	})
}

// Unsubscribe removes one listener. The last listener on a channel tears
// the connection down.
func (e *Engine) Unsubscribe(id ListenerID) {
	e.mu.Lock()
	channel, ok := e.index[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.index, id)
	s := e.slots[channel]
	if s == nil {
		e.mu.Unlock()
		return
	}

	s.mu.Lock()
	delete(s.l1, id)
	delete(s.l2, id)
	delete(s.flow, id)
	remaining := len(s.l1) + len(s.l2) + len(s.flow)
	if remaining == 0 {
		s.closed = true
		delete(e.slots, channel)
	}
	conn := s.conn
	s.mu.Unlock()
	e.mu.Unlock()

	if remaining == 0 && conn != nil {
		conn.Close()
		log.Info().Str("exchange", e.adapter.Name()).Str("channel", channel).Msg("subscription torn down")
	}
}

// Close tears down every subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closing = true
	var conns []*stream.Connection
	for ch, s := range e.slots {
		s.mu.Lock()
		s.closed = true
		if s.conn != nil {
			conns = append(conns, s.conn)
		}
		s.mu.Unlock()
		delete(e.slots, ch)
	}
	e.index = make(map[ListenerID]string)
	e.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// handleClosed is the connection's closed callback. A nil reason means we
// closed it ourselves; anything else is a recoverable loss and the engine
// resubscribes immediately.
func (e *Engine) handleClosed(s *slot, reason error) {
	if reason == nil {
		return
	}
	s.mu.Lock()
	dead := s.closed
	s.mu.Unlock()
	if dead {
		return
	}

	log.Warn().Err(reason).Str("channel", s.channel).Msg("feed connection lost, resubscribing")

	conn, err := e.open(s)
	if err != nil {
		// Nothing left to serve the listeners; drop the slot explicitly
		// rather than leaving them silently attached to a dead channel.
		log.Error().Err(err).Str("channel", s.channel).Msg("resubscribe failed, dropping subscription")
		e.mu.Lock()
		if e.slots[s.channel] == s {
			delete(e.slots, s.channel)
			for id, ch := range e.index {
				if ch == s.channel {
					delete(e.index, id)
				}
			}
		}
		e.mu.Unlock()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.closed {
		// Torn down while we were redialing.
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()
}

// dispatch runs on the connection's reader goroutine: wire order is
// preserved and no buffering happens here.
func (e *Engine) dispatch(s *slot, raw []byte) {
	events, err := e.adapter.Parse(raw)
	if err != nil {
		log.Warn().Err(err).Str("channel", s.channel).Bytes("message", raw).Msg("dropping unparseable message")
		return
	}

	for _, ev := range events {
		s.mu.Lock()
		t := s.tickers[ev.WireSymbol()]
		s.mu.Unlock()
		if t == nil {
			log.Debug().Str("symbol", ev.WireSymbol()).Str("channel", s.channel).Msg("event for unknown symbol")
			continue
		}

		switch ev := ev.(type) {
		case BookSnapshot:
			s.book.ApplySnapshot(ev.Bids, ev.Asks)
			e.publishBook(s, t)
		case BookDelta:
			s.book.ApplyDelta(ev.Side, ev.Price, ev.Size)
			e.publishBook(s, t)
		case TopOfBook:
			q := &types.Level1Quote{
				Ticker: t,
				Bid:    ev.Bid,
				Ask:    ev.Ask,
				HasBid: ev.HasBid,
				HasAsk: ev.HasAsk,
				Time:   time.Now(),
			}
			for _, fn := range e.level1Listeners(s) {
				invoke(func() { fn(q) })
			}
		case TradeEvent:
			trade := &types.Trade{
				Ticker: t,
				Price:  ev.Price,
				Size:   ev.Size,
				Side:   ev.Side,
				Time:   time.Now(),
			}
			for _, fn := range e.tradeListeners(s) {
				invoke(func() { fn(trade) })
			}
		}
	}
}

// publishBook dispatches Level-1 and Level-2 updates derived from the
// slot's book after a snapshot or delta.
func (e *Engine) publishBook(s *slot, t *types.Ticker) {
	now := time.Now()

	if s.book.Crossed() {
		log.Warn().Stringer("ticker", t).Str("channel", s.channel).Msg("crossed book")
	}

	if l1s := e.level1Listeners(s); len(l1s) > 0 {
		bid, hasBid := s.book.BestBid()
		ask, hasAsk := s.book.BestAsk()
		q := &types.Level1Quote{
			Ticker: t,
			Bid:    bid,
			Ask:    ask,
			HasBid: hasBid,
			HasAsk: hasAsk,
			Time:   now,
		}
		for _, fn := range l1s {
			invoke(func() { fn(q) })
		}
	}

	if l2s := e.level2Listeners(s); len(l2s) > 0 {
		bids, asks := s.book.Depth()
		q := &types.Level2Quote{Ticker: t, Bids: bids, Asks: asks, Time: now}
		for _, fn := range l2s {
			invoke(func() { fn(q) })
		}
	}
}

func (e *Engine) level1Listeners(s *slot) []Level1Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Level1Listener, 0, len(s.l1))
	for _, fn := range s.l1 {
		out = append(out, fn)
	}
	return out
}

func (e *Engine) level2Listeners(s *slot) []Level2Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Level2Listener, 0, len(s.l2))
	for _, fn := range s.l2 {
		out = append(out, fn)
	}
	return out
}

func (e *Engine) tradeListeners(s *slot) []TradeListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TradeListener, 0, len(s.flow))
	for _, fn := range s.flow {
		out = append(out, fn)
	}
	return out
}

// Book returns the engine's live book for a ticker's depth channel, or
// nil when no Level-2 subscription exists for it.
func (e *Engine) Book(t *types.Ticker) *book.Book {
	sub, err := e.adapter.Subscription(t, types.KindLevel2)
	if err != nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.slots[sub.Channel]; s != nil {
		return s.book
	}
	return nil
}

// ConnectionCount reports the number of live connections, for tests and
// introspection.
func (e *Engine) ConnectionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.slots)
}

// invoke runs one listener, containing panics so a failing listener never
// blocks delivery to the rest.
func invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("listener panicked")
		}
	}()
	fn()
}
