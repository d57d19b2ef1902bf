package trade

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/eodsim/broker"
	"github.com/rustyeddy/eodsim/id"
)

var (
	ErrTradeState = errors.New("invalid trade state")
	ErrNoLegs     = errors.New("trade has no non-zero legs")
)

type Status int

const (
	Inactive Status = iota
	Active
	Complete
	// Broken trades stopped part way through an entry or exit. Some legs
	// reached the broker, so the trade cannot be retried.
	Broken
)

func (s Status) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case Active:
		return "Active"
	case Complete:
		return "Complete"
	case Broken:
		return "Broken"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Broker is what a trade needs to route its legs.
type Broker interface {
	NewOrder(side broker.Side, symbol string, quantity int) (*broker.Order, error)
	CheckOrder(side broker.Side, symbol string, quantity int) error
	SubmitOrder(o *broker.Order) error
	Prices() broker.PriceSource
}

// Trade is a basket of per-symbol share deltas entered and exited as one
// unit. Positive deltas are bought, negative ones sold short.
type Trade struct {
	ID string

	shares map[string]int
	rule   ExitRule
	status Status
	prices broker.PriceSource

	initialValue decimal.Decimal
	exitValue    decimal.Decimal
	entryOrders  []*broker.Order
	exitOrders   []*broker.Order
	openedAt     time.Time
	closedAt     time.Time
}

// New copies shares; zero deltas are dropped. A nil rule means the trade is
// only closed explicitly.
func New(shares map[string]int, rule ExitRule) *Trade {
	return newTrade(id.New(), shares, rule)
}

// NewWithID is New with a caller-chosen id.
func NewWithID(tradeID string, shares map[string]int, rule ExitRule) *Trade {
	return newTrade(tradeID, shares, rule)
}

func newTrade(tradeID string, shares map[string]int, rule ExitRule) *Trade {
	legs := make(map[string]int, len(shares))
	for sym, q := range shares {
		if q != 0 {
			legs[sym] = q
		}
	}
	return &Trade{ID: tradeID, shares: legs, rule: rule}
}

func (t *Trade) Status() Status { return t.status }
func (t *Trade) OpenedAt() time.Time { return t.openedAt }
func (t *Trade) ClosedAt() time.Time { return t.closedAt }
func (t *Trade) InitialValue() decimal.Decimal { return t.initialValue }
func (t *Trade) ExitValue() decimal.Decimal { return t.exitValue }

// Shares returns a copy of the legs.
func (t *Trade) Shares() map[string]int {
	out := make(map[string]int, len(t.shares))
	for k, v := range t.shares {
		out[k] = v
	}
	return out
}

func (t *Trade) EntryOrders() []*broker.Order { return append([]*broker.Order(nil), t.entryOrders...) }
func (t *Trade) ExitOrders() []*broker.Order { return append([]*broker.Order(nil), t.exitOrders...) }

// FailedLegs returns every entry or exit order the broker declined.
func (t *Trade) FailedLegs() []*broker.Order {
	var out []*broker.Order
	for _, o := range append(t.EntryOrders(), t.exitOrders...) {
		if o.Status() == broker.Failed {
			out = append(out, o)
		}
	}
	return out
}

type leg struct {
	side   broker.Side
	symbol string
	qty    int
}

// sequence orders legs sells first, then buys, each by symbol.
func sequence(legs []leg) []leg {
	sort.Slice(legs, func(i, j int) bool {
		if legs[i].side != legs[j].side {
			return legs[i].side == broker.Sell
		}
		return legs[i].symbol < legs[j].symbol
	})
	return legs
}

func (t *Trade) entryLegs() []leg {
	legs := make([]leg, 0, len(t.shares))
	for sym, q := range t.shares {
		if q > 0 {
			legs = append(legs, leg{broker.Buy, sym, q})
		} else {
			legs = append(legs, leg{broker.Sell, sym, -q})
		}
	}
	return sequence(legs)
}

// exitLegs reverses every entry leg that was filled. Declined entry legs
// hold nothing and are skipped.
func (t *Trade) exitLegs() []leg {
	legs := make([]leg, 0, len(t.entryOrders))
	for _, o := range t.entryOrders {
		if o.Status() != broker.Fulfilled {
			continue
		}
		legs = append(legs, leg{o.Side.Opposite(), o.Symbol, o.Quantity})
	}
	return sequence(legs)
}

// submit validates every leg against b before sending any, so a
// precondition error leaves the broker untouched.
func submit(b Broker, legs []leg) ([]*broker.Order, error) {
	for _, l := range legs {
		if err := b.CheckOrder(l.side, l.symbol, l.qty); err != nil {
			return nil, err
		}
	}
	orders := make([]*broker.Order, 0, len(legs))
	for _, l := range legs {
		o, err := b.NewOrder(l.side, l.symbol, l.qty)
		if err != nil {
			return orders, err
		}
		if err := b.SubmitOrder(o); err != nil {
			return orders, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// SubmitEntry sends one order per leg and makes the trade Active. Broker
// declines do not stop the entry; they show up in FailedLegs.
func (t *Trade) SubmitEntry(b Broker) error {
	if t.status != Inactive {
		return fmt.Errorf("submit entry %s: %w: %s", t.ID, ErrTradeState, t.status)
	}
	if len(t.shares) == 0 {
		return fmt.Errorf("submit entry %s: %w", t.ID, ErrNoLegs)
	}

	orders, err := submit(b, t.entryLegs())
	t.entryOrders = append(t.entryOrders, orders...)
	if err != nil {
		if len(orders) > 0 {
			t.status = Broken
		}
		return fmt.Errorf("submit entry %s: %w", t.ID, err)
	}

	t.prices = b.Prices()
	value, err := t.markToMarket()
	if err != nil {
		return fmt.Errorf("submit entry %s: %w", t.ID, err)
	}
	t.status = Active
	t.initialValue = value
	t.openedAt = t.prices.CurrentTime()
	return nil
}

// SubmitExit reverses the filled legs and completes the trade, fixing its
// exit value and P&L.
func (t *Trade) SubmitExit(b Broker) error {
	if t.status != Active {
		return fmt.Errorf("submit exit %s: %w: %s", t.ID, ErrTradeState, t.status)
	}

	orders, err := submit(b, t.exitLegs())
	t.exitOrders = append(t.exitOrders, orders...)
	if err != nil {
		if len(orders) > 0 {
			t.status = Broken
		}
		return fmt.Errorf("submit exit %s: %w", t.ID, err)
	}

	value, err := t.markToMarket()
	if err != nil {
		return fmt.Errorf("submit exit %s: %w", t.ID, err)
	}
	t.status = Complete
	t.exitValue = value
	t.closedAt = t.prices.CurrentTime()
	return nil
}

// ExitRuleTriggered is false without a rule and once the trade is done.
func (t *Trade) ExitRuleTriggered() bool {
	if t.rule == nil || t.status != Active {
		return false
	}
	return t.rule.Evaluate()
}

// MarketValue is Σ price × delta while Active, the exit value once
// Complete, and zero before entry.
func (t *Trade) MarketValue() (decimal.Decimal, error) {
	switch t.status {
	case Active:
		return t.markToMarket()
	case Complete:
		return t.exitValue, nil
	}
	return decimal.Zero, nil
}

// PnL is live while Active and fixed once Complete.
func (t *Trade) PnL() (decimal.Decimal, error) {
	switch t.status {
	case Active:
		v, err := t.markToMarket()
		if err != nil {
			return decimal.Zero, err
		}
		return v.Sub(t.initialValue), nil
	case Complete:
		return t.exitValue.Sub(t.initialValue), nil
	}
	return decimal.Zero, nil
}

func (t *Trade) markToMarket() (decimal.Decimal, error) {
	total := decimal.Zero
	for sym, q := range t.shares {
		p, err := t.prices.CurrentPrice(sym)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(decimal.NewFromFloat(p).Mul(decimal.NewFromInt(int64(q))))
	}
	return total, nil
}

func (t *Trade) String() string {
	syms := make([]string, 0, len(t.shares))
	for s := range t.shares {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	parts := make([]string, len(syms))
	for i, s := range syms {
		parts[i] = fmt.Sprintf("%s:%+d", s, t.shares[s])
	}
	return fmt.Sprintf("trade %s {%s} [%s]", t.ID, strings.Join(parts, " "), t.status)
}
