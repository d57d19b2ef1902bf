package broker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/eodsim/id"
	"github.com/rustyeddy/eodsim/ledger"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrUnknownSide       = errors.New("unknown order side")
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrExcessDecrease    = errors.New("decrease exceeds position size")
	ErrPositionClosed    = errors.New("position closed")
	ErrNilOrder          = errors.New("nil order")
)

// PriceSource supplies the phase-appropriate price and the simulated time.
// *market.Clock satisfies it.
type PriceSource interface {
	CurrentPrice(symbol string) (float64, error)
	CurrentTime() time.Time
}

// OrderObserver sees every order once it reaches a terminal status.
type OrderObserver func(*Order)

type Option func(*Broker)

func WithLogger(l *zap.Logger) Option {
	return func(b *Broker) {
		if l != nil {
			b.log = l
		}
	}
}

// WithIDs sets the generator used for order and position ids.
func WithIDs(g id.Generator) Option {
	return func(b *Broker) {
		if g != nil {
			b.ids = g
		}
	}
}

func WithOrderObserver(fn OrderObserver) Option {
	return func(b *Broker) {
		if fn != nil {
			b.observers = append(b.observers, fn)
		}
	}
}

// Broker matches market orders at the clock's current price, settles cash
// through the ledger and keeps at most one open position per symbol.
type Broker struct {
	mu        sync.Mutex
	prices    PriceSource
	ledger    *ledger.Ledger
	log       *zap.Logger
	ids       id.Generator
	observers []OrderObserver

	open   map[string]*Position
	closed []*Position
	orders []*Order
	byID   map[string]*Order
}

func New(prices PriceSource, l *ledger.Ledger, opts ...Option) *Broker {
	b := &Broker{
		prices: prices,
		ledger: l,
		log:    zap.NewNop(),
		ids:    id.Default(),
		open:   make(map[string]*Position),
		byID:   make(map[string]*Order),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broker) Ledger() *ledger.Ledger { return b.ledger }
func (b *Broker) Prices() PriceSource { return b.prices }

// NewOrder builds an order with an id from the broker's generator.
func (b *Broker) NewOrder(side Side, symbol string, quantity int) (*Order, error) {
	return newOrder(b.ids, side, symbol, quantity)
}

// CheckOrder reports the error SubmitOrder would return for a precondition
// violation, without touching any state. Ledger declines are not predicted.
func (b *Broker) CheckOrder(side Side, symbol string, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.check(side, symbol, quantity)
	return err
}

func (b *Broker) check(side Side, symbol string, quantity int) (float64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if !side.valid() {
		return 0, fmt.Errorf("%w: %v", ErrUnknownSide, side)
	}
	price, err := b.prices.CurrentPrice(symbol)
	if err != nil {
		return 0, err
	}
	if pos, ok := b.open[symbol]; ok && reduces(pos, side) && quantity > pos.Magnitude() {
		return 0, fmt.Errorf("%s %s %d: %w: holding %d", side, symbol, quantity, ErrExcessDecrease, pos.Quantity())
	}
	return price, nil
}

func reduces(p *Position, side Side) bool {
	return (p.Side() == Long && side == Sell) || (p.Side() == Short && side == Buy)
}

// SubmitOrder executes o at the current price. A ledger decline is not an
// error: the order ends Failed with the decline reason and nothing else
// changes. Precondition violations (bad quantity or side, unknown symbol,
// excess decrease, resubmission) return an error and leave all state as it
// was.
func (b *Broker) SubmitOrder(o *Order) error {
	if o == nil {
		return ErrNilOrder
	}

	b.mu.Lock()
	err := b.submit(o)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}

	for _, fn := range b.observers {
		fn(o)
	}
	return nil
}

func (b *Broker) submit(o *Order) error {
	if o.status != NotSubmitted {
		return fmt.Errorf("order %s: %w: already %s", o.ID, ErrInvalidTransition, o.status)
	}
	price, err := b.check(o.Side, o.Symbol, o.Quantity)
	if err != nil {
		return err
	}

	now := b.prices.CurrentTime()
	if err := o.markSubmitted(now); err != nil {
		return err
	}
	b.orders = append(b.orders, o)
	b.byID[o.ID] = o

	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(o.Quantity)))
	var resp ledger.Response
	if o.Side == Buy {
		resp = b.ledger.SubmitWithdrawal(notional)
	} else {
		resp = b.ledger.SubmitDeposit(notional)
	}
	if !resp.Ok() {
		b.log.Debug("order declined",
			zap.String("order", o.ID),
			zap.Stringer("side", o.Side),
			zap.String("symbol", o.Symbol),
			zap.Int("qty", o.Quantity),
			zap.Stringer("reason", resp.Reason),
		)
		return o.markFailed(now, resp.Reason.String())
	}

	pos, err := b.apply(o, now)
	if err != nil {
		// check() ruled this out; reaching it means the book is corrupt.
		panic(fmt.Sprintf("broker: settled order %s could not be applied: %v", o.ID, err))
	}

	b.log.Debug("order filled",
		zap.String("order", o.ID),
		zap.Stringer("side", o.Side),
		zap.String("symbol", o.Symbol),
		zap.Int("qty", o.Quantity),
		zap.Float64("price", price),
		zap.Int("position_qty", pos.Quantity()),
	)
	return o.markFulfilled(now, price, pos.ID)
}

// apply updates the book for a settled order: open a new position, grow the
// held side, or shrink it and retire the position at zero.
func (b *Broker) apply(o *Order, now time.Time) (*Position, error) {
	pos, ok := b.open[o.Symbol]
	if !ok {
		pos = newPosition(b.ids.New(), o.Symbol, o.SignedQuantity(), now)
		b.open[o.Symbol] = pos
		return pos, nil
	}
	if !reduces(pos, o.Side) {
		return pos, pos.Increase(o.Quantity)
	}
	if err := pos.Decrease(o.Quantity, now); err != nil {
		return nil, err
	}
	if !pos.IsOpen() {
		delete(b.open, o.Symbol)
		b.closed = append(b.closed, pos)
	}
	return pos, nil
}

// LiquidatePosition submits the offsetting order for the open position in
// symbol. It returns nil, nil when there is nothing to liquidate.
func (b *Broker) LiquidatePosition(symbol string) (*Order, error) {
	b.mu.Lock()
	pos, ok := b.open[symbol]
	var side Side
	var qty int
	if ok {
		side, qty = Sell, pos.Magnitude()
		if pos.Side() == Short {
			side = Buy
		}
	}
	b.mu.Unlock()
	if !ok {
		return nil, nil
	}

	o, err := b.NewOrder(side, symbol, qty)
	if err != nil {
		return nil, fmt.Errorf("liquidate %s: %w", symbol, err)
	}
	if err := b.SubmitOrder(o); err != nil {
		return o, fmt.Errorf("liquidate %s: %w", symbol, err)
	}
	return o, nil
}

// LiquidateAll liquidates every open position in symbol order. It stops at
// the first precondition error; declined orders are returned alongside the
// fulfilled ones.
func (b *Broker) LiquidateAll() ([]*Order, error) {
	var out []*Order
	for _, p := range b.Positions() {
		o, err := b.LiquidatePosition(p.Symbol)
		if err != nil {
			return out, err
		}
		if o != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

// HoldingsValue is the sum of open position values at current prices.
// Shorts contribute negatively.
func (b *Broker) HoldingsValue() (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holdingsLocked()
}

// PortfolioValue is the ledger balance plus HoldingsValue.
func (b *Broker) PortfolioValue() (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hv, err := b.holdingsLocked()
	if err != nil {
		return decimal.Zero, err
	}
	return b.ledger.Balance().Add(hv), nil
}

func (b *Broker) holdingsLocked() (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range b.open {
		v, err := p.Value(b.prices)
		if err != nil {
			return decimal.Zero, fmt.Errorf("value %s: %w", p.Symbol, err)
		}
		total = total.Add(v)
	}
	return total, nil
}

// Position returns the open position in symbol, if any.
func (b *Broker) Position(symbol string) (*Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.open[symbol]
	return p, ok
}

// Positions returns the open positions sorted by symbol.
func (b *Broker) Positions() []*Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Position, 0, len(b.open))
	for _, p := range b.open {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ClosedPositions returns retired positions in the order they closed.
func (b *Broker) ClosedPositions() []*Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Position(nil), b.closed...)
}

// Orders returns every submitted order in submission order.
func (b *Broker) Orders() []*Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Order(nil), b.orders...)
}

func (b *Broker) Order(id string) (*Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.byID[id]
	return o, ok
}
