package broker

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PositionSide int

const (
	Flat PositionSide = iota
	Long
	Short
)

func (s PositionSide) String() string {
	switch s {
	case Flat:
		return "Flat"
	case Long:
		return "Long"
	case Short:
		return "Short"
	}
	return fmt.Sprintf("PositionSide(%d)", int(s))
}

type PositionStatus int

const (
	PositionOpen PositionStatus = iota
	PositionClosed
)

func (s PositionStatus) String() string {
	if s == PositionOpen {
		return "Open"
	}
	return "Closed"
}

// Position is a holding of one symbol. The quantity is signed: positive is
// long, negative is short (shares owed). It closes itself when the quantity
// returns to zero and is immutable afterwards.
type Position struct {
	ID     string
	Symbol string

	quantity int
	status   PositionStatus
	openedAt time.Time
	closedAt time.Time
}

func newPosition(id, symbol string, quantity int, t time.Time) *Position {
	return &Position{
		ID:       id,
		Symbol:   symbol,
		quantity: quantity,
		status:   PositionOpen,
		openedAt: t,
	}
}

func (p *Position) Quantity() int { return p.quantity }
func (p *Position) Status() PositionStatus { return p.status }
func (p *Position) IsOpen() bool { return p.status == PositionOpen }
func (p *Position) OpenedAt() time.Time { return p.openedAt }
func (p *Position) ClosedAt() time.Time { return p.closedAt }

// Side is derived from the sign of the quantity.
func (p *Position) Side() PositionSide {
	switch {
	case p.quantity > 0:
		return Long
	case p.quantity < 0:
		return Short
	}
	return Flat
}

// Magnitude is |quantity|.
func (p *Position) Magnitude() int {
	if p.quantity < 0 {
		return -p.quantity
	}
	return p.quantity
}

// Increase grows the held side by n shares.
func (p *Position) Increase(n int) error {
	if err := p.checkMutation(n); err != nil {
		return fmt.Errorf("increase: %w", err)
	}
	if p.Side() == Short {
		p.quantity -= n
	} else {
		p.quantity += n
	}
	return nil
}

// Decrease shrinks the held side by n shares, closing the position at t when
// it reaches zero. It never flips sides: n above the magnitude is an error.
func (p *Position) Decrease(n int, t time.Time) error {
	if err := p.checkMutation(n); err != nil {
		return fmt.Errorf("decrease: %w", err)
	}
	if n > p.Magnitude() {
		return fmt.Errorf("decrease %s by %d: %w: holding %d", p.Symbol, n, ErrExcessDecrease, p.quantity)
	}
	if p.Side() == Short {
		p.quantity += n
	} else {
		p.quantity -= n
	}
	if p.quantity == 0 {
		p.Close(t)
	}
	return nil
}

// Close marks the position closed at t. Closing twice is a no-op; the
// result reports whether this call did the transition.
func (p *Position) Close(t time.Time) bool {
	if p.status == PositionClosed {
		return false
	}
	p.status = PositionClosed
	p.closedAt = t
	return true
}

// MarketValue is price × signed quantity, so a short is a liability.
func (p *Position) MarketValue(price float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(p.quantity)))
}

// Value marks the position to the current price of src.
func (p *Position) Value(src PriceSource) (decimal.Decimal, error) {
	price, err := src.CurrentPrice(p.Symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return p.MarketValue(price), nil
}

func (p *Position) String() string {
	return fmt.Sprintf("%s %s %d [%s]", p.Side(), p.Symbol, p.quantity, p.status)
}

func (p *Position) checkMutation(n int) error {
	if p.status == PositionClosed {
		return fmt.Errorf("%w: %s", ErrPositionClosed, p.ID)
	}
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, n)
	}
	return nil
}
