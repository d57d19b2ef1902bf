package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

// newTestDataset builds T dates of AAPL/MSFT prices where the open of date t
// is 100+t (AAPL) and 200+t (MSFT) and the close is the open plus 0.5.
func newTestDataset(t *testing.T, T int) *Dataset {
	t.Helper()

	dates := make([]time.Time, T)
	open := make([][]float64, T)
	close := make([][]float64, T)
	for i := 0; i < T; i++ {
		dates[i] = day0.AddDate(0, 0, i)
		open[i] = []float64{100 + float64(i), 200 + float64(i)}
		close[i] = []float64{100.5 + float64(i), 200.5 + float64(i)}
	}
	d, err := NewDataset(dates, []string{"AAPL", "MSFT"}, open, close)
	require.NoError(t, err)
	return d
}

func newTestClock(t *testing.T, T int, opts ...ClockOption) *Clock {
	t.Helper()
	c, err := NewClock(newTestDataset(t, T), opts...)
	require.NoError(t, err)
	return c
}
