// Package simtest builds small deterministic markets for tests.
package simtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/eodsim/broker"
	"github.com/rustyeddy/eodsim/ledger"
	"github.com/rustyeddy/eodsim/market"
)

var Day0 = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

// Dataset builds T dates of AAPL/MSFT prices. The open of date t is 100+t
// for AAPL and 200+t for MSFT; each close is its open plus 0.5.
func Dataset(t testing.TB, T int) *market.Dataset {
	t.Helper()
	dates := make([]time.Time, T)
	open := make([][]float64, T)
	close := make([][]float64, T)
	for i := 0; i < T; i++ {
		dates[i] = Day0.AddDate(0, 0, i)
		open[i] = []float64{100 + float64(i), 200 + float64(i)}
		close[i] = []float64{100.5 + float64(i), 200.5 + float64(i)}
	}
	d, err := market.NewDataset(dates, []string{"AAPL", "MSFT"}, open, close)
	require.NoError(t, err)
	return d
}

// FromCloses builds a dataset whose open equals the close for each row.
func FromCloses(t testing.TB, closes map[string][]float64) *market.Dataset {
	t.Helper()
	candles := make(map[string][]market.Candle, len(closes))
	for sym, cs := range closes {
		for i, c := range cs {
			candles[sym] = append(candles[sym], market.Candle{
				Time: Day0.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c,
			})
		}
	}
	d, err := market.FromCandles(candles)
	require.NoError(t, err)
	return d
}

func Clock(t testing.TB, d *market.Dataset, opts ...market.ClockOption) *market.Clock {
	t.Helper()
	c, err := market.NewClock(d, opts...)
	require.NoError(t, err)
	return c
}

// Broker wires a fresh ledger holding cash to c.
func Broker(t testing.TB, c *market.Clock, cash int64, opts ...broker.Option) *broker.Broker {
	t.Helper()
	l, err := ledger.New(decimal.NewFromInt(cash))
	require.NoError(t, err)
	return broker.New(c, l, opts...)
}
