package backtest

import (
	"context"

	"github.com/rustyeddy/eodsim/broker"
	"github.com/rustyeddy/eodsim/market"
	"github.com/rustyeddy/eodsim/trader"
)

// Strategy makes trading decisions. A session calls OnUpdate for every tick
// the strategy accepts, after the trader has exited any trades due on that
// tick.
type Strategy interface {
	Name() string
	// Symbols the strategy trades; all must be in the dataset.
	Symbols() []string
	// LookBack is how many dates of history precede the first tick.
	LookBack() int
	OnUpdate(ctx context.Context, u Update) error
}

// TickFilter lets a strategy skip ticks, e.g. every Open.
type TickFilter interface {
	ShouldTrade(tick market.Tick) bool
}

// Update is what a strategy sees on one tick.
type Update struct {
	Tick market.Tick
	// History holds the LookBack dates before the current one.
	History *market.Dataset
	Clock   *market.Clock
	Trader  *trader.Trader
}

func (u Update) Broker() *broker.Broker { return u.Trader.Broker() }

// Close-phase and Open-phase filters for strategies that embed them.
type (
	OnClose struct{}
	OnOpen  struct{}
)

func (OnClose) ShouldTrade(t market.Tick) bool { return t.Phase == market.Close }
func (OnOpen) ShouldTrade(t market.Tick) bool { return t.Phase == market.Open }
