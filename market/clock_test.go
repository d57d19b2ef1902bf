package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClock(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 3)
	assert.Equal(t, 0, c.DateIndex())
	assert.Equal(t, Open, c.Phase())
	assert.False(t, c.IsExhausted())
	assert.Empty(t, c.Subscribers())
	assert.Nil(t, c.History())

	_, err := NewClock(newTestDataset(t, 3), WithStartIndex(3))
	assert.ErrorIs(t, err, ErrStartIndex)

	_, err = NewClock(nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestClockPhasesAlternate(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 3)
	require.True(t, c.Advance())
	assert.Equal(t, 0, c.DateIndex())
	assert.Equal(t, Close, c.Phase())

	require.True(t, c.Advance())
	assert.Equal(t, 1, c.DateIndex())
	assert.Equal(t, Open, c.Phase())
	assert.Equal(t, 2, c.TicksSinceStart())
}

func TestClockExhaustsAfterFixedAdvances(t *testing.T) {
	t.Parallel()

	for _, T := range []int{1, 2, 3, 10} {
		c := newTestClock(t, T)
		want := 2*(T-1) + 1

		prev := c.DateIndex()
		for i := 0; i < want; i++ {
			require.False(t, c.IsExhausted(), "T=%d exhausted early at %d", T, i)
			require.True(t, c.Advance())
			require.GreaterOrEqual(t, c.DateIndex(), prev)
			prev = c.DateIndex()
		}
		assert.True(t, c.IsExhausted(), "T=%d", T)
		assert.Equal(t, T-1, c.DateIndex())

		// exhaustion is permanent and further advances are no-ops
		for i := 0; i < 3; i++ {
			assert.False(t, c.Advance())
			assert.True(t, c.IsExhausted())
		}
		assert.Equal(t, want, c.TicksSinceStart())

		_, err := c.Step()
		assert.ErrorIs(t, err, ErrClockExhausted)
	}
}

func TestClockCurrentPrice(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 2)

	p, err := c.CurrentPrice("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100.0, p)

	c.Advance()
	p, err = c.CurrentPrice("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 100.5, p)

	c.Advance()
	p, err = c.CurrentPrice("MSFT")
	require.NoError(t, err)
	assert.Equal(t, 201.0, p)

	_, err = c.CurrentPrice("GOOG")
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	prices := c.CurrentPrices()
	assert.Equal(t, map[string]float64{"AAPL": 101, "MSFT": 201}, prices)
}

func TestClockCurrentTime(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 2)
	assert.True(t, c.CurrentTime().Equal(day0.Add(OpenOffset)))
	c.Advance()
	assert.True(t, c.CurrentTime().Equal(day0.Add(CloseOffset)))
	assert.True(t, c.CurrentDate().Equal(day0))
}

func TestClockStartIndex(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 5, WithStartIndex(2))
	assert.Equal(t, 2, c.DateIndex())
	assert.Equal(t, 0, c.Current().DaysSinceStart)

	h := c.History()
	require.NotNil(t, h)
	assert.Equal(t, 2, h.Len())

	n := 0
	for c.Advance() {
		n++
	}
	assert.Equal(t, 2*(5-2-1)+1, n)
}

func TestSubscribersNotifiedInOrderAfterUpdate(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 3)
	var calls []string
	var seen []float64

	c.Subscribe("b", func(tk Tick) {
		calls = append(calls, "b")
		p, err := c.CurrentPrice("AAPL")
		require.NoError(t, err)
		seen = append(seen, p)
		assert.Equal(t, c.Phase(), tk.Phase)
	})
	c.Subscribe("a", func(Tick) { calls = append(calls, "a") })
	c.Subscribe("b", func(Tick) { calls = append(calls, "dup") })

	assert.Equal(t, []string{"b", "a"}, c.Subscribers())

	c.Advance()
	c.Advance()
	assert.Equal(t, []string{"b", "a", "b", "a"}, calls)
	// handlers observe the post-tick price
	assert.Equal(t, []float64{100.5, 101}, seen)

	c.Unsubscribe("b")
	c.Unsubscribe("missing")
	c.Advance()
	assert.Equal(t, []string{"b", "a", "b", "a", "a"}, calls)
}

func TestTickPayload(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 3, WithStartIndex(1))
	var got []Tick
	c.Subscribe("rec", func(tk Tick) { got = append(got, tk) })
	c.Advance()
	c.Advance()

	require.Len(t, got, 2)
	assert.Equal(t, Close, got[0].Phase)
	assert.Equal(t, 1, got[0].DateIndex)
	assert.Equal(t, 0, got[0].DaysSinceStart)
	assert.Equal(t, 1, got[0].TicksSinceStart)

	assert.Equal(t, Open, got[1].Phase)
	assert.Equal(t, 2, got[1].DateIndex)
	assert.Equal(t, 1, got[1].DaysSinceStart)
	assert.True(t, got[1].Date.Equal(day0.AddDate(0, 0, 2)))
}

func TestAdvanceFromHandlerIsIgnored(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 3)
	var moved []bool
	var stepErr error
	c.Subscribe("reentrant", func(Tick) {
		moved = append(moved, c.Advance())
		_, stepErr = c.Step()
	})

	c.Advance()
	assert.Equal(t, []bool{false}, moved)
	assert.ErrorIs(t, stepErr, ErrReentrantAdvance)
	assert.Equal(t, 1, c.TicksSinceStart())
}

func TestSubscribeDuringDispatchAppliesNextTick(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 3)
	late := 0
	c.Subscribe("first", func(Tick) {
		c.Subscribe("late", func(Tick) { late++ })
	})

	c.Advance()
	assert.Equal(t, 0, late)
	c.Advance()
	assert.Equal(t, 1, late)
}

func TestEvents(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 4)
	var events []Tick
	for ev := range c.Events() {
		events = append(events, ev)
	}

	require.Len(t, events, 2*4)
	for i, ev := range events {
		assert.Equal(t, i/2, ev.DateIndex)
		assert.Equal(t, i/2, ev.DaysSinceStart)
		assert.Equal(t, i, ev.TicksSinceStart)
		if i%2 == 0 {
			assert.Equal(t, Open, ev.Phase)
		} else {
			assert.Equal(t, Close, ev.Phase)
		}
	}
	assert.True(t, c.IsExhausted())

	// not restartable
	n := 0
	for range c.Events() {
		n++
	}
	assert.Zero(t, n)
}

func TestEventsResumeAfterBreak(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 3)
	var first []int
	for ev := range c.Events() {
		first = append(first, ev.TicksSinceStart)
		if len(first) == 3 {
			break
		}
	}

	var rest []int
	for ev := range c.Events() {
		rest = append(rest, ev.TicksSinceStart)
	}
	assert.Equal(t, []int{0, 1, 2}, first)
	assert.Equal(t, []int{3, 4, 5}, rest)
}

func TestEventsNotifySubscribers(t *testing.T) {
	t.Parallel()

	c := newTestClock(t, 2)
	notified := 0
	c.Subscribe("count", func(Tick) { notified++ })

	events := 0
	for range c.Events() {
		events++
	}
	// the first event is the starting state and is not a tick
	assert.Equal(t, 4, events)
	assert.Equal(t, 3, notified)
}
