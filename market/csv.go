package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ReadCandlesCSV reads daily bars:
//
//	date,open,high,low,close[,volume]
//
// where date is YYYY-MM-DD or RFC3339. A header row is optional; when present
// its column names decide the layout, otherwise the order above is assumed.
// Empty rows are skipped. Bars are returned sorted by date.
func ReadCandlesCSV(r io.Reader) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	cols := map[string]int{"date": 0, "open": 1, "high": 2, "low": 3, "close": 4, "volume": 5}
	var out []Candle
	first := true
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if first {
			first = false
			if isHeader(row) {
				cols = headerColumns(row)
				if err := requireColumns(cols); err != nil {
					return nil, err
				}
				continue
			}
		}

		c, err := parseCandleRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	for i := 1; i < len(out); i++ {
		if out[i].Time.Equal(out[i-1].Time) {
			return nil, fmt.Errorf("duplicate bar for %s", out[i].Format(DateLayout))
		}
	}
	return out, nil
}

func ReadCandlesFile(fname string) ([]Candle, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCandlesCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return bars, nil
}

// LoadCSVDir loads every file under dir matching the doublestar pattern
// (for example "*.csv" or "**/*.csv") into one Dataset. The symbol is the
// upper-cased file name without its extension.
func LoadCSVDir(dir, pattern string) (*Dataset, error) {
	if pattern == "" {
		pattern = "*.csv"
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match %q in %s", pattern, dir)
	}
	sort.Strings(matches)

	bars := make(map[string][]Candle, len(matches))
	for _, m := range matches {
		sym := SymbolFromFilename(m)
		if _, dup := bars[sym]; dup {
			return nil, fmt.Errorf("symbol %s loaded twice (%s)", sym, m)
		}
		series, err := ReadCandlesFile(filepath.Join(dir, filepath.FromSlash(m)))
		if err != nil {
			return nil, err
		}
		bars[sym] = series
	}
	return FromCandles(bars)
}

// SymbolFromFilename maps "data/aapl.csv" to "AAPL".
func SymbolFromFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.ToUpper(strings.TrimSuffix(base, path.Ext(base)))
}

func isHeader(row []string) bool {
	return strings.EqualFold(strings.TrimSpace(row[0]), "date") ||
		strings.EqualFold(strings.TrimSpace(row[0]), "time")
}

func headerColumns(row []string) map[string]int {
	cols := make(map[string]int, len(row))
	for i, name := range row {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "time" || n == "timestamp" {
			n = "date"
		}
		cols[n] = i
	}
	return cols
}

func requireColumns(cols map[string]int) error {
	for _, want := range []string{"date", "open", "close"} {
		if _, ok := cols[want]; !ok {
			return fmt.Errorf("header is missing %q column", want)
		}
	}
	return nil
}

func parseCandleRow(row []string, cols map[string]int) (Candle, error) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[i]), true
	}
	num := func(name string, required bool) (float64, error) {
		s, ok := field(name)
		if !ok || s == "" {
			if required {
				return 0, fmt.Errorf("missing %s", name)
			}
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("bad %s %q: %w", name, s, err)
		}
		return v, nil
	}

	ds, ok := field("date")
	if !ok || ds == "" {
		return Candle{}, fmt.Errorf("missing date")
	}
	tm, err := parseDate(ds)
	if err != nil {
		return Candle{}, err
	}

	var c Candle
	c.Time = tm
	if c.Open, err = num("open", true); err != nil {
		return Candle{}, err
	}
	if c.High, err = num("high", false); err != nil {
		return Candle{}, err
	}
	if c.Low, err = num("low", false); err != nil {
		return Candle{}, err
	}
	if c.Close, err = num("close", true); err != nil {
		return Candle{}, err
	}
	if c.Volume, err = num("volume", false); err != nil {
		return Candle{}, err
	}
	return c, nil
}

// parseDate accepts YYYY-MM-DD or RFC3339 and truncates to the UTC day.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
