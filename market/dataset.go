package market

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrEmptyDataset  = errors.New("empty dataset")
	ErrShapeMismatch = errors.New("price matrix shape mismatch")
)

// Dataset is the immutable T×N price panel a Clock steps through: T trading
// dates, N symbols, dense open and close matrices indexed [date][symbol].
type Dataset struct {
	dates   []time.Time
	symbols []string
	column  map[string]int
	open    [][]float64
	close   [][]float64
}

// NewDataset validates the panel and takes ownership of the slices.
// Dates must be strictly increasing and every price a positive number.
func NewDataset(dates []time.Time, symbols []string, open, close [][]float64) (*Dataset, error) {
	if len(dates) == 0 || len(symbols) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(open) != len(dates) || len(close) != len(dates) {
		return nil, fmt.Errorf("%w: %d dates, %d open rows, %d close rows",
			ErrShapeMismatch, len(dates), len(open), len(close))
	}

	column := make(map[string]int, len(symbols))
	for i, s := range symbols {
		if s == "" {
			return nil, fmt.Errorf("dataset: empty symbol at column %d", i)
		}
		if _, dup := column[s]; dup {
			return nil, fmt.Errorf("dataset: duplicate symbol %q", s)
		}
		column[s] = i
	}

	for t := range dates {
		if t > 0 && !dates[t].After(dates[t-1]) {
			return nil, fmt.Errorf("dataset: dates not increasing at row %d (%s after %s)",
				t, dates[t].Format(DateLayout), dates[t-1].Format(DateLayout))
		}
		if len(open[t]) != len(symbols) || len(close[t]) != len(symbols) {
			return nil, fmt.Errorf("%w: row %d has %d open, %d close for %d symbols",
				ErrShapeMismatch, t, len(open[t]), len(close[t]), len(symbols))
		}
		for i := range symbols {
			if !validPrice(open[t][i]) || !validPrice(close[t][i]) {
				return nil, fmt.Errorf("dataset: missing price for %s on %s",
					symbols[i], dates[t].Format(DateLayout))
			}
		}
	}

	return &Dataset{
		dates:   dates,
		symbols: symbols,
		column:  column,
		open:    open,
		close:   close,
	}, nil
}

// FromCandles builds a Dataset from per-symbol daily bars. Every symbol must
// cover exactly the same dates; symbols are ordered alphabetically.
func FromCandles(bars map[string][]Candle) (*Dataset, error) {
	if len(bars) == 0 {
		return nil, ErrEmptyDataset
	}

	symbols := make([]string, 0, len(bars))
	for s := range bars {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	ref := bars[symbols[0]]
	dates := make([]time.Time, len(ref))
	for t, c := range ref {
		dates[t] = c.Time
	}

	open := make([][]float64, len(dates))
	close := make([][]float64, len(dates))
	for t := range dates {
		open[t] = make([]float64, len(symbols))
		close[t] = make([]float64, len(symbols))
	}

	for i, s := range symbols {
		series := bars[s]
		if len(series) != len(dates) {
			return nil, fmt.Errorf("%w: %s has %d bars, %s has %d",
				ErrShapeMismatch, s, len(series), symbols[0], len(dates))
		}
		for t, c := range series {
			if !c.Time.Equal(dates[t]) {
				return nil, fmt.Errorf("dataset: %s bar %d dated %s, expected %s",
					s, t, c.Format(DateLayout), dates[t].Format(DateLayout))
			}
			if err := c.Validate(); err != nil {
				return nil, fmt.Errorf("dataset: %s: %w", s, err)
			}
			open[t][i] = c.Open
			close[t][i] = c.Close
		}
	}

	return NewDataset(dates, symbols, open, close)
}

func (d *Dataset) Len() int { return len(d.dates) }

func (d *Dataset) Symbols() []string {
	out := make([]string, len(d.symbols))
	copy(out, d.symbols)
	return out
}

func (d *Dataset) Date(t int) time.Time { return d.dates[t] }

func (d *Dataset) Dates() []time.Time {
	out := make([]time.Time, len(d.dates))
	copy(out, d.dates)
	return out
}

// Column returns the matrix column of symbol.
func (d *Dataset) Column(symbol string) (int, bool) {
	i, ok := d.column[symbol]
	return i, ok
}

func (d *Dataset) Open(t int, symbol string) (float64, error) {
	return d.at(d.open, t, symbol)
}

func (d *Dataset) Close(t int, symbol string) (float64, error) {
	return d.at(d.close, t, symbol)
}

// Closes returns the close series of symbol.
func (d *Dataset) Closes(symbol string) ([]float64, error) {
	i, ok := d.column[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}
	out := make([]float64, len(d.dates))
	for t := range d.dates {
		out[t] = d.close[t][i]
	}
	return out, nil
}

// Window returns rows [from, to) as a new Dataset sharing the underlying rows.
func (d *Dataset) Window(from, to int) (*Dataset, error) {
	if from < 0 || to > len(d.dates) || from >= to {
		return nil, fmt.Errorf("dataset: window [%d,%d) outside [0,%d)", from, to, len(d.dates))
	}
	return &Dataset{
		dates:   d.dates[from:to],
		symbols: d.symbols,
		column:  d.column,
		open:    d.open[from:to],
		close:   d.close[from:to],
	}, nil
}

func (d *Dataset) at(m [][]float64, t int, symbol string) (float64, error) {
	i, ok := d.column[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}
	if t < 0 || t >= len(m) {
		return 0, fmt.Errorf("dataset: date index %d outside [0,%d)", t, len(m))
	}
	return m[t][i], nil
}

func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
