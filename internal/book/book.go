// Package book maintains per-ticker bid/ask depth from snapshot and
// incremental updates. Prices are exact decimals; a price appears at most
// once per side because it is the map key.
package book

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"quotebridge/internal/types"
)

// Book holds both sides of the order book for one ticker. It is written
// by the owning connection's reader goroutine and read concurrently by
// any number of callers.
type Book struct {
	mu   sync.RWMutex
	bids map[string]types.Level
	asks map[string]types.Level

	bestBid types.Level
	bestAsk types.Level
	hasBid  bool
	hasAsk  bool
}

// New returns an empty Book.
func New() *Book {
	return &Book{
		bids: make(map[string]types.Level),
		asks: make(map[string]types.Level),
	}
}

// ApplySnapshot replaces both sides atomically. Callers must pass a fully
// parsed snapshot; a partial one must never reach this method.
func (b *Book) ApplySnapshot(bids, asks []types.Level) {
	nb := make(map[string]types.Level, len(bids))
	for _, lvl := range bids {
		nb[lvl.Price.String()] = lvl
	}
	na := make(map[string]types.Level, len(asks))
	for _, lvl := range asks {
		na[lvl.Price.String()] = lvl
	}

	b.mu.Lock()
	b.bids = nb
	b.asks = na
	b.recomputeBest()
	b.mu.Unlock()
}

// ApplyDelta merges a single level change. A zero (or negative) size
// removes the level, anything else replaces it.
func (b *Book) ApplyDelta(side types.Side, price, size decimal.Decimal) {
	key := price.String()

	b.mu.Lock()
	m := b.bids
	if side == types.Sell {
		m = b.asks
	}
	if size.Sign() <= 0 {
		delete(m, key)
	} else {
		m[key] = types.Level{Price: price, Size: size}
	}
	b.recomputeBest()
	b.mu.Unlock()
}

// BestBid returns the highest bid, or ok=false when the side is empty.
func (b *Book) BestBid() (types.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestBid, b.hasBid
}

// BestAsk returns the lowest ask, or ok=false when the side is empty.
func (b *Book) BestAsk() (types.Level, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestAsk, b.hasAsk
}

// Crossed reports whether best bid ≥ best ask. A crossed book indicates a
// transient or erroneous feed state; it is flagged, never repaired here.
func (b *Book) Crossed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasBid || !b.hasAsk {
		return false
	}
	return b.bestBid.Price.GreaterThanOrEqual(b.bestAsk.Price)
}

// Depth returns copies of both sides, bids sorted descending and asks
// ascending by price.
func (b *Book) Depth() (bids, asks []types.Level) {
	b.mu.RLock()
	bids = make([]types.Level, 0, len(b.bids))
	for _, lvl := range b.bids {
		bids = append(bids, lvl)
	}
	asks = make([]types.Level, 0, len(b.asks))
	for _, lvl := range b.asks {
		asks = append(asks, lvl)
	}
	b.mu.RUnlock()

	sort.Slice(bids, func(i, j int) bool {
		return bids[i].Price.GreaterThan(bids[j].Price)
	})
	sort.Slice(asks, func(i, j int) bool {
		return asks[i].Price.LessThan(asks[j].Price)
	})
	return bids, asks
}

// recomputeBest must be called with the write lock held.
func (b *Book) recomputeBest() {
	b.hasBid = false
	b.hasAsk = false
	for _, lvl := range b.bids {
		if !b.hasBid || lvl.Price.GreaterThan(b.bestBid.Price) {
			b.bestBid = lvl
			b.hasBid = true
		}
	}
	for _, lvl := range b.asks {
		if !b.hasAsk || lvl.Price.LessThan(b.bestAsk.Price) {
			b.bestAsk = lvl
			b.hasAsk = true
		}
	}
}
