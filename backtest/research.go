package backtest

import (
	"github.com/rustyeddy/eodsim/market"
	"github.com/rustyeddy/eodsim/trader"
)

// Returns converts a value series into simple period returns; the result
// is one shorter than values.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = (values[i] - values[i-1]) / values[i-1]
	}
	return out
}

// CumulativeReturns compounds returns into growth factors.
func CumulativeReturns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1 + r
		out[i] = acc
	}
	return out
}

// MaxDrawdown is the largest peak-to-trough fall as a fraction of the peak.
func MaxDrawdown(values []float64) float64 {
	var peak, worst float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// CloseReturns is the T-1 × N matrix of close-to-close returns of d, one
// column per symbol in d.Symbols() order.
func CloseReturns(d *market.Dataset) [][]float64 {
	syms := d.Symbols()
	cols := make([][]float64, len(syms))
	for j, s := range syms {
		closes, _ := d.Closes(s)
		cols[j] = Returns(closes)
	}
	if d.Len() < 2 {
		return nil
	}
	out := make([][]float64, d.Len()-1)
	for t := range out {
		out[t] = make([]float64, len(syms))
		for j := range syms {
			out[t][j] = cols[j][t]
		}
	}
	return out
}

// PortfolioValues extracts the portfolio value series from snapshots.
func PortfolioValues(snaps []trader.Snapshot) []float64 {
	out := make([]float64, len(snaps))
	for i, s := range snaps {
		out[i] = s.PortfolioValue.InexactFloat64()
	}
	return out
}
