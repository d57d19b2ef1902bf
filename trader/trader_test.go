package trader

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/eodsim/broker"
	"github.com/rustyeddy/eodsim/internal/simtest"
	"github.com/rustyeddy/eodsim/market"
	"github.com/rustyeddy/eodsim/risk"
	"github.com/rustyeddy/eodsim/trade"
)

type closedLog struct{ ids []string }

func (c *closedLog) OnTradeClosed(t *trade.Trade) { c.ids = append(c.ids, t.ID) }

func newTestTrader(t *testing.T, T int, cash int64, opts ...Option) (*Trader, *market.Clock) {
	t.Helper()
	clock := simtest.Clock(t, simtest.Dataset(t, T))
	b := simtest.Broker(t, clock, cash)
	return New(clock, b, opts...), clock
}

func TestTradeExitsWhenRuleFires(t *testing.T) {
	t.Parallel()

	log := &closedLog{}
	tr, clock := newTestTrader(t, 3, 10000, WithListener(log))

	tt := trade.New(map[string]int{"AAPL": 1, "MSFT": -1},
		trade.AtDateIndex{Clock: clock, Index: 1, Phase: market.Close})
	require.NoError(t, tr.SubmitTrade(tt))
	require.Len(t, tr.OpenTrades(), 1)

	clock.Advance()
	clock.Advance()
	assert.Equal(t, trade.Active, tt.Status())

	clock.Advance()
	assert.Equal(t, trade.Complete, tt.Status())
	assert.Empty(t, tr.Broker().Positions())
	assert.Empty(t, tr.OpenTrades())
	require.Len(t, tr.ClosedTrades(), 1)
	assert.Equal(t, []string{tt.ID}, log.ids)
	assert.Empty(t, tr.Errors())
}

func TestTradesWithoutRuleStayOpen(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTrader(t, 3, 10000)
	manual := trade.New(map[string]int{"AAPL": 2}, nil)
	quick := trade.New(map[string]int{"MSFT": 1}, trade.NewAfterTicks(clock, 1))
	require.NoError(t, tr.SubmitTrade(manual))
	require.NoError(t, tr.SubmitTrade(quick))

	for clock.Advance() {
	}
	assert.Equal(t, []*trade.Trade{manual}, tr.OpenTrades())
	assert.Equal(t, []*trade.Trade{quick}, tr.ClosedTrades())

	require.NoError(t, tr.LiquidateAllPositions())
	assert.Empty(t, tr.OpenTrades())
	assert.Len(t, tr.ClosedTrades(), 2)
	assert.Empty(t, tr.Broker().Positions())
}

func TestExitFailureKeepsTradeOpen(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTrader(t, 3, 10000)
	tt := trade.New(map[string]int{"AAPL": 10}, trade.RuleFunc(func() bool { return true }))
	require.NoError(t, tr.SubmitTrade(tt))

	o, err := tr.Broker().NewOrder(broker.Sell, "AAPL", 5)
	require.NoError(t, err)
	require.NoError(t, tr.Broker().SubmitOrder(o))

	clock.Advance()
	assert.Equal(t, trade.Active, tt.Status())
	assert.Len(t, tr.OpenTrades(), 1)
	errs := tr.Errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], broker.ErrExcessDecrease)
}

func TestSubmitTradeError(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTrader(t, 2, 10000)
	err := tr.SubmitTrade(trade.New(map[string]int{"ZZZ": 1}, nil))
	require.ErrorIs(t, err, market.ErrUnknownSymbol)
	assert.Empty(t, tr.OpenTrades())
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTrader(t, 2, 10000)
	require.NoError(t, tr.SubmitTrade(trade.New(map[string]int{"AAPL": 10, "MSFT": -1}, nil)))
	clock.Advance()

	s, err := tr.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, clock.CurrentTime(), s.Time)
	// 10000 + 200 - 1000
	assert.True(t, s.Cash.Equal(decimal.NewFromInt(9200)))
	// 10 * 100.5 - 200.5
	assert.True(t, s.Holdings.Equal(decimal.NewFromFloat(804.5)))
	assert.True(t, s.PortfolioValue.Equal(decimal.NewFromFloat(10004.5)))
	require.Len(t, s.Positions, 2)
	assert.Equal(t, "AAPL", s.Positions[0].Symbol)
	assert.Equal(t, -1, s.Positions[1].Quantity)
	assert.Equal(t, 200.5, s.Positions[1].Price)
}

func TestRebalanceToWeights(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTrader(t, 2, 10000)
	b := tr.Broker()

	trades, err := tr.RebalanceToWeights(map[string]float64{"AAPL": 0.5, "MSFT": -0.25}, nil)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, map[string]int{"AAPL": 50, "MSFT": -12}, trades[0].Shares())

	pv, err := b.PortfolioValue()
	require.NoError(t, err)
	assert.True(t, pv.Equal(decimal.NewFromInt(10000)))

	again, err := tr.RebalanceToWeights(map[string]float64{"AAPL": 0.5, "MSFT": -0.25}, nil)
	require.NoError(t, err)
	assert.Empty(t, again)

	flip, err := tr.RebalanceToWeights(map[string]float64{"AAPL": -0.5}, nil)
	require.NoError(t, err)
	require.Len(t, flip, 2)
	assert.Equal(t, map[string]int{"AAPL": -50, "MSFT": 12}, flip[0].Shares())
	assert.Equal(t, map[string]int{"AAPL": -50}, flip[1].Shares())

	pos := b.Positions()
	require.Len(t, pos, 1)
	assert.Equal(t, -50, pos[0].Quantity())
	assert.True(t, b.Ledger().Balance().Equal(decimal.NewFromInt(15000)))
}

func TestRebalanceFlipExitsWithRule(t *testing.T) {
	t.Parallel()

	log := &closedLog{}
	tr, clock := newTestTrader(t, 2, 10000, WithListener(log))
	b := tr.Broker()

	long, err := tr.RebalanceToWeights(map[string]float64{"AAPL": 0.5}, trade.NewAfterTicks(clock, 1))
	require.NoError(t, err)
	require.Len(t, long, 1)
	flip, err := tr.RebalanceToWeights(map[string]float64{"AAPL": -0.2}, trade.NewAfterTicks(clock, 1))
	require.NoError(t, err)
	require.Len(t, flip, 2)
	pos, ok := b.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, -20, pos.Quantity())

	clock.Advance()
	assert.Empty(t, tr.Errors())
	assert.Empty(t, tr.OpenTrades())
	assert.Equal(t, []string{flip[1].ID, flip[0].ID, long[0].ID}, log.ids)
	assert.Empty(t, b.Positions())
	// +50 x 0.5 long, -50 x 0.5 and -20 x 0.5 short
	assert.True(t, b.Ledger().Balance().Equal(decimal.NewFromInt(9990)))
}

func TestLiquidateStackedOppositeTrades(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTrader(t, 2, 10000)
	b := tr.Broker()

	short := trade.New(map[string]int{"AAPL": -50}, nil)
	long := trade.New(map[string]int{"AAPL": 30}, nil)
	require.NoError(t, tr.SubmitTrade(short))
	require.NoError(t, tr.SubmitTrade(long))
	pos, ok := b.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, -20, pos.Quantity())

	require.NoError(t, tr.LiquidateAllPositions())
	assert.Equal(t, trade.Complete, short.Status())
	assert.Equal(t, trade.Complete, long.Status())
	assert.Empty(t, tr.OpenTrades())
	assert.Empty(t, b.Positions())
	assert.True(t, b.Ledger().Balance().Equal(decimal.NewFromInt(10000)))
}

func TestRebalanceRejectsNaN(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTrader(t, 2, 10000)
	_, err := tr.RebalanceToWeights(map[string]float64{"AAPL": math.NaN()}, nil)
	assert.ErrorIs(t, err, ErrBadWeight)
}

func TestCloseUnsubscribes(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTrader(t, 2, 10000, WithID("t1"))
	assert.Equal(t, []string{"t1"}, clock.Subscribers())
	tr.Close()
	assert.Empty(t, clock.Subscribers())
}

func TestRiskPolicyRejectsBeforeEntry(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTrader(t, 3, 10000, WithRiskPolicy(risk.Policy{MaxOpenTrades: 1, MaxPositionPct: 0.5}))

	// 60 AAPL at 100 is 60% of the account
	big := trade.New(map[string]int{"AAPL": 60}, nil)
	err := tr.SubmitTrade(big)
	require.ErrorIs(t, err, risk.ErrRejected)
	assert.Contains(t, err.Error(), "POSITION_TOO_LARGE")
	assert.Equal(t, trade.Inactive, big.Status())
	assert.Empty(t, tr.Broker().Orders())

	require.NoError(t, tr.SubmitTrade(trade.New(map[string]int{"AAPL": 40}, nil)))

	err = tr.SubmitTrade(trade.New(map[string]int{"MSFT": 1}, nil))
	assert.ErrorContains(t, err, "TOO_MANY_OPEN_TRADES")
	assert.Len(t, tr.OpenTrades(), 1)
}

func TestExitTrade(t *testing.T) {
	t.Parallel()

	log := &closedLog{}
	tr, _ := newTestTrader(t, 3, 10000, WithListener(log))
	keep := trade.New(map[string]int{"AAPL": 1}, nil)
	drop := trade.New(map[string]int{"MSFT": 2}, nil)
	require.NoError(t, tr.SubmitTrade(keep))
	require.NoError(t, tr.SubmitTrade(drop))

	require.NoError(t, tr.ExitTrade(drop))
	assert.Equal(t, trade.Complete, drop.Status())
	assert.Equal(t, []*trade.Trade{keep}, tr.OpenTrades())
	assert.Equal(t, []string{drop.ID}, log.ids)

	assert.ErrorIs(t, tr.ExitTrade(drop), ErrTradeNotOpen)
	assert.ErrorIs(t, tr.ExitTrade(trade.New(map[string]int{"AAPL": 1}, nil)), ErrTradeNotOpen)
}
