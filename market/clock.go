package market

import (
	"errors"
	"fmt"
	"iter"
	"time"
)

var (
	ErrClockExhausted   = errors.New("clock exhausted")
	ErrReentrantAdvance = errors.New("advance called from a tick handler")
	ErrStartIndex       = errors.New("start index outside dataset")
)

// Phase splits each trading date into an opening and a closing snapshot.
type Phase int

const (
	Open Phase = iota
	Close
)

func (p Phase) String() string {
	switch p {
	case Open:
		return "Open"
	case Close:
		return "Close"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Session times stamped onto each phase of a trading date.
const (
	OpenOffset  = 9*time.Hour + 30*time.Minute
	CloseOffset = 16 * time.Hour
)

// Tick describes the clock state a subscriber observes after an advance.
type Tick struct {
	Date      time.Time
	Time      time.Time
	Phase     Phase
	DateIndex int

	// DaysSinceStart counts dates from the clock's start index.
	DaysSinceStart int
	// TicksSinceStart counts Advance calls that moved the clock.
	TicksSinceStart int
}

// Handler is called synchronously, in registration order, on every tick.
type Handler func(Tick)

type subscriber struct {
	id string
	fn Handler
}

// Clock steps through a Dataset one half-day at a time and broadcasts each
// new state to its subscribers. It is not safe for concurrent use.
type Clock struct {
	data  *Dataset
	start int
	t     int
	phase Phase
	ticks int

	subs        []subscriber
	dispatching bool
	emitted     int
}

type ClockOption func(*Clock)

// WithStartIndex starts the clock at the opening of date index n, leaving
// rows [0,n) as look-back history.
func WithStartIndex(n int) ClockOption {
	return func(c *Clock) { c.start = n }
}

func NewClock(data *Dataset, opts ...ClockOption) (*Clock, error) {
	if data == nil || data.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	c := &Clock{data: data, phase: Open, emitted: -1}
	for _, opt := range opts {
		opt(c)
	}
	if c.start < 0 || c.start >= data.Len() {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrStartIndex, c.start, data.Len())
	}
	c.t = c.start
	return c, nil
}

func (c *Clock) Dataset() *Dataset { return c.data }

// IsExhausted reports whether the clock sits on the closing phase of its
// final date.
func (c *Clock) IsExhausted() bool {
	return c.phase == Close && c.t == c.data.Len()-1
}

// Advance moves Open→Close on the same date, or Close→Open on the next date,
// then notifies subscribers. It is a no-op once exhausted, and when called
// from inside a handler. It reports whether the clock moved.
func (c *Clock) Advance() bool {
	if c.IsExhausted() || c.dispatching {
		return false
	}

	if c.phase == Open {
		c.phase = Close
	} else {
		c.phase = Open
		c.t++
	}
	c.ticks++

	c.notify()
	return true
}

// Step is Advance for driving loops that want exhaustion reported.
func (c *Clock) Step() (Tick, error) {
	if c.dispatching {
		return c.Current(), ErrReentrantAdvance
	}
	if !c.Advance() {
		return c.Current(), ErrClockExhausted
	}
	return c.Current(), nil
}

func (c *Clock) notify() {
	tick := c.Current()

	// Handlers may subscribe or unsubscribe; they affect the next tick only.
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)

	c.dispatching = true
	defer func() { c.dispatching = false }()
	for _, s := range subs {
		s.fn(tick)
	}
}

// Subscribe registers fn under id. A duplicate id is ignored.
func (c *Clock) Subscribe(id string, fn Handler) {
	for _, s := range c.subs {
		if s.id == id {
			return
		}
	}
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
}

// Unsubscribe removes id; unknown ids are ignored.
func (c *Clock) Unsubscribe(id string) {
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Subscribers lists registered ids in notification order.
func (c *Clock) Subscribers() []string {
	ids := make([]string, len(c.subs))
	for i, s := range c.subs {
		ids[i] = s.id
	}
	return ids
}

func (c *Clock) Phase() Phase { return c.phase }
func (c *Clock) DateIndex() int { return c.t }
func (c *Clock) StartIndex() int { return c.start }
func (c *Clock) TicksSinceStart() int { return c.ticks }
func (c *Clock) CurrentDate() time.Time { return c.data.Date(c.t) }

// CurrentTime is the current date stamped with the phase's session time.
func (c *Clock) CurrentTime() time.Time {
	d := c.data.Date(c.t)
	if c.phase == Open {
		return d.Add(OpenOffset)
	}
	return d.Add(CloseOffset)
}

// CurrentPrice is the open or close of symbol on the current date,
// depending on phase.
func (c *Clock) CurrentPrice(symbol string) (float64, error) {
	if c.phase == Open {
		return c.data.Open(c.t, symbol)
	}
	return c.data.Close(c.t, symbol)
}

// CurrentPrices returns the current price of every symbol.
func (c *Clock) CurrentPrices() map[string]float64 {
	out := make(map[string]float64, len(c.data.symbols))
	for _, s := range c.data.symbols {
		p, _ := c.CurrentPrice(s)
		out[s] = p
	}
	return out
}

func (c *Clock) Current() Tick {
	return Tick{
		Date:            c.CurrentDate(),
		Time:            c.CurrentTime(),
		Phase:           c.phase,
		DateIndex:       c.t,
		DaysSinceStart:  c.t - c.start,
		TicksSinceStart: c.ticks,
	}
}

// History returns the dataset rows strictly before the current date.
// It is nil on the first date of the dataset.
func (c *Clock) History() *Dataset {
	if c.t == 0 {
		return nil
	}
	w, _ := c.data.Window(0, c.t)
	return w
}

// Events iterates the remaining ticks. The first value is the current state
// unless it was already yielded by an earlier Events loop; every later value
// follows one Advance. The sequence ends after the terminal tick and cannot
// be restarted.
func (c *Clock) Events() iter.Seq[Tick] {
	return func(yield func(Tick) bool) {
		for {
			if c.emitted == c.ticks {
				if !c.Advance() {
					return
				}
			}
			c.emitted = c.ticks
			if !yield(c.Current()) {
				return
			}
		}
	}
}
