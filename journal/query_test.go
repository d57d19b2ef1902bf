package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t, "r1")

	open := time.Date(2020, 1, 2, 9, 30, 0, 0, time.UTC)
	close := time.Date(2020, 1, 3, 16, 0, 0, 0, time.UTC)
	want := TradeRecord{
		TradeID:      "T123",
		Legs:         "AAPL:+1 MSFT:-1",
		OpenTime:     open,
		CloseTime:    close,
		InitialValue: decimal.NewFromInt(-100),
		ExitValue:    decimal.RequireFromString("-99.5"),
		PnL:          decimal.RequireFromString("0.5"),
		FailedLegs:   1,
	}
	require.NoError(t, j.RecordTrade(want))

	got, err := j.GetTrade("T123")
	require.NoError(t, err)
	assert.Equal(t, want.Legs, got.Legs)
	assert.True(t, got.OpenTime.Equal(open))
	assert.True(t, got.CloseTime.Equal(close))
	assert.True(t, got.InitialValue.Equal(want.InitialValue))
	assert.True(t, got.ExitValue.Equal(want.ExitValue))
	assert.True(t, got.PnL.Equal(want.PnL))
	assert.Equal(t, 1, got.FailedLegs)
}

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t, "r1")
	_, err := j.GetTrade("nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = j.GetRun("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTradesOrderedByClose(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t, "r1")
	base := time.Date(2020, 1, 2, 16, 0, 0, 0, time.UTC)
	for i, id := range []string{"late", "early"} {
		require.NoError(t, j.RecordTrade(TradeRecord{
			TradeID:      id,
			Legs:         "AAPL:+1",
			OpenTime:     base,
			CloseTime:    base.AddDate(0, 0, 2-i),
			InitialValue: decimal.Zero,
			ExitValue:    decimal.Zero,
			PnL:          decimal.Zero,
		}))
	}

	trades, err := j.ListTrades()
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "early", trades[0].TradeID)
	assert.Equal(t, "late", trades[1].TradeID)
}

func TestRecordRunUpserts(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t, "r1")
	run := RunRecord{
		Created:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Strategy:   "buy-and-hold",
		Dataset:    "testdata",
		Start:      time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC),
		StartValue: decimal.NewFromInt(10000),
		EndValue:   decimal.NewFromInt(10000),
		NetPnL:     decimal.Zero,
	}
	require.NoError(t, j.RecordRun(run))

	run.EndValue = decimal.NewFromInt(10500)
	run.NetPnL = decimal.NewFromInt(500)
	run.ReturnPct = 5
	run.Trades, run.Wins = 1, 1
	require.NoError(t, j.RecordRun(run))

	got, err := j.GetRun("r1")
	require.NoError(t, err)
	assert.Equal(t, "buy-and-hold", got.Strategy)
	assert.True(t, got.EndValue.Equal(decimal.NewFromInt(10500)))
	assert.InDelta(t, 5.0, got.ReturnPct, 1e-9)
	assert.Equal(t, 1, got.Wins)
}
