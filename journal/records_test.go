package journal

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/eodsim/broker"
	"github.com/rustyeddy/eodsim/internal/simtest"
	"github.com/rustyeddy/eodsim/ledger"
	"github.com/rustyeddy/eodsim/trade"
	"github.com/rustyeddy/eodsim/trader"
)

func TestRecorderCapturesARun(t *testing.T) {
	t.Parallel()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "run.db"), "r1")
	require.NoError(t, err)
	defer j.Close()
	rec := NewRecorder(j)

	clock := simtest.Clock(t, simtest.Dataset(t, 2))
	l, err := ledger.New(decimal.NewFromInt(150), ledger.WithListener(rec.OnLedger))
	require.NoError(t, err)
	b := broker.New(clock, l, broker.WithOrderObserver(rec.ObserveOrder))
	tr := trader.New(clock, b, trader.WithListener(rec))

	require.NoError(t, tr.SubmitTrade(trade.New(map[string]int{"AAPL": 1, "MSFT": 1}, trade.NewAfterTicks(clock, 1))))
	clock.Advance()
	snap, err := tr.Snapshot()
	require.NoError(t, err)
	require.NoError(t, rec.RecordSnapshot(snap))
	require.NoError(t, rec.Err())

	orders, err := j.ListOrders()
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "Fulfilled", orders[0].Status)
	assert.Equal(t, "Failed", orders[1].Status)
	assert.Equal(t, "InsufficientFunds", orders[1].Reason)
	assert.Equal(t, "Sell", orders[2].Side)

	cash, err := j.ListCash()
	require.NoError(t, err)
	// initial deposit, AAPL buy, MSFT decline, AAPL sell
	require.Len(t, cash, 4)
	assert.Equal(t, "Declined", cash[2].Outcome)
	assert.Equal(t, "", cash[0].Reason)

	trades, err := j.ListTrades()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "AAPL:+1 MSFT:+1", trades[0].Legs)
	assert.Equal(t, 1, trades[0].FailedLegs)

	equity, err := j.ListEquity()
	require.NoError(t, err)
	require.Len(t, equity, 1)
	assert.True(t, equity[0].PortfolioValue.Equal(decimal.RequireFromString("150.5")))
}

type failingJournal struct{ Nop }

var errDiskFull = errors.New("disk full")

func (failingJournal) RecordCash(CashRecord) error { return errDiskFull }

func TestRecorderKeepsFirstError(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(failingJournal{})
	rec.OnLedger(ledger.Record{})
	rec.OnLedger(ledger.Record{})
	assert.ErrorIs(t, rec.Err(), errDiskFull)

	assert.NoError(t, NewRecorder(nil).Err())
}
