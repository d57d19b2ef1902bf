package risk

import (
	"errors"
	"fmt"
	"strings"
)

var ErrRejected = errors.New("trade rejected by risk policy")

// Policy limits what a single trade may do to the book. Zero fields are
// not enforced.
type Policy struct {
	MaxOpenTrades int `json:"max_open_trades" yaml:"max_open_trades"`

	// Fractions of portfolio value.
	MaxPositionPct      float64 `json:"max_position_pct" yaml:"max_position_pct"`
	MaxGrossExposurePct float64 `json:"max_gross_exposure_pct" yaml:"max_gross_exposure_pct"`
	MaxTradeValuePct    float64 `json:"max_trade_value_pct" yaml:"max_trade_value_pct"`
}

func (p Policy) IsZero() bool { return p == Policy{} }

func (p Policy) Validate() error {
	if p.MaxOpenTrades < 0 {
		return fmt.Errorf("max_open_trades must not be negative")
	}
	for name, v := range map[string]float64{
		"max_position_pct":       p.MaxPositionPct,
		"max_gross_exposure_pct": p.MaxGrossExposurePct,
		"max_trade_value_pct":    p.MaxTradeValuePct,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

// TradeIntent is the share deltas a trade is about to submit. Prices holds
// the current price of every leg and every held symbol.
type TradeIntent struct {
	Legs   map[string]int
	Prices map[string]float64
}

// AccountSnapshot is the book before the trade.
type AccountSnapshot struct {
	PortfolioValue float64
	Positions      map[string]int
	OpenTrades     int
}

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	TradeValuePct    float64
	GrossExposurePct float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Err is nil when the trade is allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	msgs := make([]string, len(d.Violations))
	for i, v := range d.Violations {
		msgs[i] = v.Code + ": " + v.Msg
	}
	return fmt.Errorf("%w: %s", ErrRejected, strings.Join(msgs, "; "))
}
