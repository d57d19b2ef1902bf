package trade

import "github.com/rustyeddy/eodsim/market"

// ExitRule decides when an active trade should be closed. Rules carry the
// state they need from construction instead of capturing it.
type ExitRule interface {
	Evaluate() bool
}

// RuleFunc adapts a plain function to ExitRule.
type RuleFunc func() bool

func (f RuleFunc) Evaluate() bool { return f() }

// Never is a rule that never fires; the trade must be closed by hand.
type Never struct{}

func (Never) Evaluate() bool { return false }

// ClockView is the read side of the market clock that rules look at.
type ClockView interface {
	DateIndex() int
	Phase() market.Phase
	TicksSinceStart() int
}

// AtDateIndex fires once the clock reaches the given date index and phase.
type AtDateIndex struct {
	Clock ClockView
	Index int
	Phase market.Phase
}

func (r AtDateIndex) Evaluate() bool {
	t := r.Clock.DateIndex()
	return t > r.Index || (t == r.Index && r.Clock.Phase() >= r.Phase)
}

// AfterTicks fires n ticks after it was built.
type AfterTicks struct {
	clock ClockView
	start int
	n     int
}

func NewAfterTicks(c ClockView, n int) *AfterTicks {
	return &AfterTicks{clock: c, start: c.TicksSinceStart(), n: n}
}

func (r *AfterTicks) Evaluate() bool {
	return r.clock.TicksSinceStart()-r.start >= r.n
}

// NextClose fires at the first Close strictly after construction.
func NextClose(c ClockView) ExitRule {
	idx := c.DateIndex()
	if c.Phase() == market.Close {
		idx++
	}
	return AtDateIndex{Clock: c, Index: idx, Phase: market.Close}
}

// Any fires when any of rules fires.
type Any []ExitRule

func (a Any) Evaluate() bool {
	for _, r := range a {
		if r != nil && r.Evaluate() {
			return true
		}
	}
	return false
}
