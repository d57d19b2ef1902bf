package strategies

import (
	"context"

	"github.com/rustyeddy/eodsim/backtest"
)

const NoopName = "noop"

// Noop trades nothing.
type Noop struct {
	Syms []string
	Look int
}

func (n *Noop) Name() string { return NoopName }
func (n *Noop) Symbols() []string { return n.Syms }
func (n *Noop) LookBack() int { return n.Look }
func (n *Noop) OnUpdate(context.Context, backtest.Update) error { return nil }
