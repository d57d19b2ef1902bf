package broker

import (
	"fmt"
	"time"

	"github.com/rustyeddy/eodsim/id"
)

type Side int

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) valid() bool { return s == Buy || s == Sell }

type OrderStatus int

const (
	NotSubmitted OrderStatus = iota
	Submitted
	Fulfilled
	Failed
)

func (s OrderStatus) String() string {
	switch s {
	case NotSubmitted:
		return "NotSubmitted"
	case Submitted:
		return "Submitted"
	case Fulfilled:
		return "Fulfilled"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool { return s == Fulfilled || s == Failed }

// Order is a market order for a whole number of shares. Its lifecycle is
// NotSubmitted → Submitted → Fulfilled|Failed and only the Broker moves it.
type Order struct {
	ID       string
	Side     Side
	Symbol   string
	Quantity int

	status        OrderStatus
	submittedAt   time.Time
	completedAt   time.Time
	fillPrice     float64
	failureReason string
	positionID    string
}

// NewOrder fails fast on a non-positive quantity or an unknown side.
func NewOrder(side Side, symbol string, quantity int) (*Order, error) {
	return newOrder(id.Default(), side, symbol, quantity)
}

func MarketBuy(symbol string, quantity int) (*Order, error) {
	return NewOrder(Buy, symbol, quantity)
}

func MarketSell(symbol string, quantity int) (*Order, error) {
	return NewOrder(Sell, symbol, quantity)
}

func newOrder(ids id.Generator, side Side, symbol string, quantity int) (*Order, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("new order: %w: %d", ErrInvalidQuantity, quantity)
	}
	if !side.valid() {
		return nil, fmt.Errorf("new order: %w: %v", ErrUnknownSide, side)
	}
	return &Order{
		ID:       ids.New(),
		Side:     side,
		Symbol:   symbol,
		Quantity: quantity,
	}, nil
}

func (o *Order) Status() OrderStatus { return o.status }
func (o *Order) SubmittedAt() time.Time { return o.submittedAt }

// CompletedAt is when the order was fulfilled or failed.
func (o *Order) CompletedAt() time.Time { return o.completedAt }

// FillPrice is the average fill price; ok is false unless Fulfilled.
func (o *Order) FillPrice() (price float64, ok bool) {
	return o.fillPrice, o.status == Fulfilled
}

func (o *Order) FailureReason() string { return o.failureReason }

// PositionID is the position the fill opened or modified.
func (o *Order) PositionID() string { return o.positionID }

// SignedQuantity is +Quantity for a buy and -Quantity for a sell.
func (o *Order) SignedQuantity() int {
	if o.Side == Sell {
		return -o.Quantity
	}
	return o.Quantity
}

func (o *Order) String() string {
	return fmt.Sprintf("%s %s %d [%s]", o.Side, o.Symbol, o.Quantity, o.status)
}

func (o *Order) markSubmitted(t time.Time) error {
	if o.status != NotSubmitted {
		return fmt.Errorf("order %s: %w: %s -> %s", o.ID, ErrInvalidTransition, o.status, Submitted)
	}
	o.status = Submitted
	o.submittedAt = t
	return nil
}

func (o *Order) markFulfilled(t time.Time, price float64, positionID string) error {
	if o.status != Submitted {
		return fmt.Errorf("order %s: %w: %s -> %s", o.ID, ErrInvalidTransition, o.status, Fulfilled)
	}
	o.status = Fulfilled
	o.completedAt = t
	o.fillPrice = price
	o.positionID = positionID
	return nil
}

func (o *Order) markFailed(t time.Time, reason string) error {
	if o.status != Submitted {
		return fmt.Errorf("order %s: %w: %s -> %s", o.ID, ErrInvalidTransition, o.status, Failed)
	}
	o.status = Failed
	o.completedAt = t
	o.failureReason = reason
	return nil
}
