// Package paper simulates order execution against live market data.
// Orders fill against the best bid/ask from the quote engine, delayed by
// a configurable latency profile, with commission applied per fill.
package paper

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"quotebridge/internal/types"
)

// Ticket is the order intake record a caller submits.
type Ticket struct {
	ClientOrderID string
	Ticker        *types.Ticker
	Side          types.Side
	Quantity      decimal.Decimal
	Price         decimal.Decimal
}

// Order is an immutable snapshot of one order's state.
type Order struct {
	OrderID       string
	ClientOrderID string
	Ticker        *types.Ticker
	Side          types.Side
	Quantity      decimal.Decimal
	Filled        decimal.Decimal
	Remaining     decimal.Decimal
	Price         decimal.Decimal
	Status        types.OrderStatus
}

// Fill reports one execution, including its balance and position impact
// after commission.
type Fill struct {
	OrderID       string
	ClientOrderID string
	Ticker        *types.Ticker
	Side          types.Side
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Remaining     decimal.Decimal
	Notional      decimal.Decimal
	Commission    decimal.Decimal
	CashDelta     decimal.Decimal // negative for buys, positive for sells
	PositionDelta decimal.Decimal // signed base-asset change
	Status        types.OrderStatus
	Time          time.Time
}

// CancelResult reports the outcome of a cancel request. A cancel that
// finds the order already terminal is not an error; OK is false and
// Reason says why.
type CancelResult struct {
	OK     bool
	Reason string
}

// FillListener receives fill notifications after the stream latency.
type FillListener func(Fill)

// order is the broker's mutable record. All mutation happens inside
// Broker.mu, the single order-state-transition path.
type order struct {
	id       string
	clientID string
	ticker   *types.Ticker
	side     types.Side
	qty      decimal.Decimal
	filled   decimal.Decimal
	price    decimal.Decimal
	status   types.OrderStatus

	pendingFill bool
	timers      []*time.Timer
}

func (o *order) remaining() decimal.Decimal {
	return o.qty.Sub(o.filled)
}

func (o *order) snapshot() Order {
	return Order{
		OrderID:       o.id,
		ClientOrderID: o.clientID,
		Ticker:        o.ticker,
		Side:          o.side,
		Quantity:      o.qty,
		Filled:        o.filled,
		Remaining:     o.remaining(),
		Price:         o.price,
		Status:        o.status,
	}
}

// Broker is the paper matching engine. Wire its OnQuote method into a
// quote engine Level-1 subscription for each traded ticker.
type Broker struct {
	latency    Latency
	commission CommissionModel

	mu      sync.Mutex
	open    map[string]*order           // engine order id -> order
	done    map[string]*order           // terminal orders, kept for lookups
	clients map[string]string           // client order id -> engine order id
	quotes  map[string]types.Level1Quote // ticker key -> latest quote
	onFill  FillListener
}

// NewBroker builds a paper broker with the given latency profile and
// commission model.
func NewBroker(latency Latency, commission CommissionModel) *Broker {
	if commission == nil {
		commission = FreeModel{}
	}
	return &Broker{
		latency:    latency,
		commission: commission,
		open:       make(map[string]*order),
		done:       make(map[string]*order),
		clients:    make(map[string]string),
		quotes:     make(map[string]types.Level1Quote),
	}
}

// SetFillListener registers the fill callback. Call before submitting.
func (b *Broker) SetFillListener(fn FillListener) {
	b.mu.Lock()
	b.onFill = fn
	b.mu.Unlock()
}

// Submit accepts a ticket and returns the engine-assigned tracking id
// immediately. The order opens after the REST latency elapses. Invalid
// tickets are recorded as REJECTED and reported via the error.
func (b *Broker) Submit(t Ticket) (string, error) {
	o := &order{
		id:       uuid.NewString(),
		clientID: t.ClientOrderID,
		ticker:   t.Ticker,
		side:     t.Side,
		qty:      t.Quantity,
		price:    t.Price,
		status:   types.StatusNew,
	}

	if err := validate(t); err != nil {
		o.status = types.StatusRejected
		b.mu.Lock()
		b.done[o.id] = o
		if o.clientID != "" {
			b.clients[o.clientID] = o.id
		}
		b.mu.Unlock()
		log.Debug().Str("order_id", o.id).Err(err).Msg("paper order rejected")
		return o.id, err
	}

	b.mu.Lock()
	b.open[o.id] = o
	if o.clientID != "" {
		b.clients[o.clientID] = o.id
	}
	timer := time.AfterFunc(b.latency.RestDelay(), func() { b.activate(o.id) })
	o.timers = append(o.timers, timer)
	b.mu.Unlock()

	log.Debug().Str("order_id", o.id).Stringer("ticker", t.Ticker).Msg("paper order submitted")
	return o.id, nil
}

func validate(t Ticket) error {
	if t.Ticker == nil {
		return types.Errorf(types.ErrKindOrderState, "ticket has no ticker")
	}
	if t.Quantity.Sign() <= 0 {
		return types.Errorf(types.ErrKindOrderState, "quantity must be positive, got %s", t.Quantity)
	}
	if t.Price.Sign() <= 0 {
		return types.Errorf(types.ErrKindOrderState, "price must be positive, got %s", t.Price)
	}
	if t.Quantity.LessThan(t.Ticker.MinSize) {
		return types.Errorf(types.ErrKindOrderState, "quantity %s below minimum %s", t.Quantity, t.Ticker.MinSize)
	}
	if notional := t.Price.Mul(t.Quantity); notional.LessThan(t.Ticker.MinNotional) {
		return types.Errorf(types.ErrKindOrderState, "notional %s below minimum %s", notional, t.Ticker.MinNotional)
	}
	return nil
}

// activate moves a NEW order to OPEN and evaluates it against the latest
// quote.
func (b *Broker) activate(id string) {
	b.mu.Lock()
	o := b.open[id]
	if o == nil || o.status != types.StatusNew {
		b.mu.Unlock()
		return
	}
	o.status = types.StatusOpen
	b.evaluateLocked(o)
	b.mu.Unlock()
}

// OnQuote feeds the broker a Level-1 update. Open orders for that ticker
// are re-evaluated against the new best prices.
func (b *Broker) OnQuote(q *types.Level1Quote) {
	key := q.Ticker.Key()
	b.mu.Lock()
	b.quotes[key] = *q
	for _, o := range b.open {
		if o.ticker.Key() == key {
			b.evaluateLocked(o)
		}
	}
	b.mu.Unlock()
}

// evaluateLocked matches one order against the latest quote. Must be
// called with b.mu held. A resting buy fills when best ask ≤ limit
// price; fill quantity is capped by the size shown at that level. The
// fill takes effect after the stream latency.
func (b *Broker) evaluateLocked(o *order) {
	if o.pendingFill || o.status.Terminal() || o.status == types.StatusNew {
		return
	}
	q, ok := b.quotes[o.ticker.Key()]
	if !ok {
		return
	}

	var level types.Level
	switch o.side {
	case types.Buy:
		if !q.HasAsk || q.Ask.Price.GreaterThan(o.price) {
			return
		}
		level = q.Ask
	case types.Sell:
		if !q.HasBid || q.Bid.Price.LessThan(o.price) {
			return
		}
		level = q.Bid
	}

	fillQty := decimal.Min(o.remaining(), level.Size)
	if fillQty.Sign() <= 0 {
		return
	}

	o.pendingFill = true
	timer := time.AfterFunc(b.latency.StreamDelay(), func() {
		b.applyFill(o.id, level.Price, fillQty)
	})
	o.timers = append(o.timers, timer)
}

// applyFill is the delayed execution task for one planned fill. The
// status re-check makes the cancel race deterministic: whichever of
// cancel and fill takes b.mu first wins, the loser is a no-op.
func (b *Broker) applyFill(id string, price, plannedQty decimal.Decimal) {
	b.mu.Lock()
	o := b.open[id]
	if o == nil || o.status.Terminal() {
		b.mu.Unlock()
		return
	}
	o.pendingFill = false

	qty := decimal.Min(plannedQty, o.remaining())
	if qty.Sign() <= 0 {
		b.mu.Unlock()
		return
	}

	o.filled = o.filled.Add(qty)
	if o.remaining().Sign() == 0 {
		o.status = types.StatusFilled
		b.retireLocked(o)
	} else {
		o.status = types.StatusPartiallyFilled
	}

	notional := price.Mul(qty)
	fee := b.commission.Commission(price, qty)
	fill := Fill{
		OrderID:       o.id,
		ClientOrderID: o.clientID,
		Ticker:        o.ticker,
		Side:          o.side,
		Price:         price,
		Quantity:      qty,
		Remaining:     o.remaining(),
		Notional:      notional,
		Commission:    fee,
		Status:        o.status,
		Time:          time.Now(),
	}
	if o.side == types.Buy {
		fill.CashDelta = notional.Add(fee).Neg()
		fill.PositionDelta = qty
	} else {
		fill.CashDelta = notional.Sub(fee)
		fill.PositionDelta = qty.Neg()
	}
	onFill := b.onFill
	b.mu.Unlock()

	log.Debug().Str("order_id", id).Str("qty", qty.String()).Str("price", price.String()).Msg("paper fill")
	if onFill != nil {
		onFill(fill)
	}
}

// Cancel requests cancellation by engine order id. The request takes
// effect after the REST latency; the call blocks until then, modeling
// the acknowledgement round trip.
func (b *Broker) Cancel(orderID string) CancelResult {
	time.Sleep(b.latency.RestDelay())

	b.mu.Lock()
	defer b.mu.Unlock()

	if o := b.open[orderID]; o != nil {
		o.status = types.StatusCancelled
		b.retireLocked(o)
		return CancelResult{OK: true, Reason: "cancelled"}
	}
	if o := b.done[orderID]; o != nil {
		return CancelResult{OK: false, Reason: "not cancellable: order is " + o.status.String()}
	}
	return CancelResult{OK: false, Reason: "unknown order"}
}

// CancelByClientID is Cancel keyed by the caller-assigned id.
func (b *Broker) CancelByClientID(clientID string) CancelResult {
	b.mu.Lock()
	id, ok := b.clients[clientID]
	b.mu.Unlock()
	if !ok {
		return CancelResult{OK: false, Reason: "unknown client order id"}
	}
	return b.Cancel(id)
}

// retireLocked moves a terminal order out of the open map and stops its
// outstanding timers. Stopping an already-fired timer is a no-op.
func (b *Broker) retireLocked(o *order) {
	delete(b.open, o.id)
	b.done[o.id] = o
	for _, t := range o.timers {
		t.Stop()
	}
	o.timers = nil
}

// Lookup returns the order by engine id, searching open then terminal
// orders.
func (b *Broker) Lookup(orderID string) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o := b.open[orderID]; o != nil {
		return o.snapshot(), true
	}
	if o := b.done[orderID]; o != nil {
		return o.snapshot(), true
	}
	return Order{}, false
}

// LookupByClientID returns the order by the caller-assigned id.
func (b *Broker) LookupByClientID(clientID string) (Order, bool) {
	b.mu.Lock()
	id, ok := b.clients[clientID]
	b.mu.Unlock()
	if !ok {
		return Order{}, false
	}
	return b.Lookup(id)
}

// OpenOrders snapshots every non-terminal order.
func (b *Broker) OpenOrders() []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Order, 0, len(b.open))
	for _, o := range b.open {
		out = append(out, o.snapshot())
	}
	return out
}

// OpenOrdersByTicker snapshots non-terminal orders for one ticker.
func (b *Broker) OpenOrdersByTicker(t *types.Ticker) []Order {
	key := t.Key()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Order
	for _, o := range b.open {
		if o.ticker.Key() == key {
			out = append(out, o.snapshot())
		}
	}
	return out
}
