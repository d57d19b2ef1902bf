package strategies

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/eodsim/backtest"
	"github.com/rustyeddy/eodsim/trade"
)

const LongShortName = "long-short-reversal"

// LongShortReversal bets on one-day mean reversion. At every close it
// weights each symbol against its return since the previous close,
// normalised by the sum of absolute returns, and sizes the positions
// against a fraction of cash. Each trade exits at the next close.
type LongShortReversal struct {
	backtest.OnClose
	symbols  []string
	fraction float64
}

func NewLongShortReversal(symbols []string, fraction float64) (*LongShortReversal, error) {
	if len(symbols) == 0 {
		return nil, errors.New("long-short-reversal: no symbols")
	}
	if fraction <= 0 || fraction > 1 || math.IsNaN(fraction) {
		return nil, fmt.Errorf("long-short-reversal: capital fraction %v outside (0,1]", fraction)
	}
	return &LongShortReversal{symbols: symbols, fraction: fraction}, nil
}

func (s *LongShortReversal) Name() string { return LongShortName }
func (s *LongShortReversal) Symbols() []string { return s.symbols }
func (s *LongShortReversal) LookBack() int { return 1 }

func (s *LongShortReversal) OnUpdate(_ context.Context, u backtest.Update) error {
	prev := u.History.Len() - 1
	returns := make([]float64, len(s.symbols))
	prices := make([]float64, len(s.symbols))
	var total float64
	for i, sym := range s.symbols {
		y, err := u.History.Close(prev, sym)
		if err != nil {
			return err
		}
		p, err := u.Clock.CurrentPrice(sym)
		if err != nil {
			return err
		}
		prices[i] = p
		returns[i] = (p - y) / y
		total += math.Abs(returns[i])
	}
	if total == 0 {
		return nil
	}

	cash := u.Broker().Ledger().Balance().InexactFloat64() * s.fraction
	shares := make(map[string]int)
	for i, sym := range s.symbols {
		amount := -(returns[i] / total) * cash
		if q := int(math.Round(amount / prices[i])); q != 0 {
			shares[sym] = q
		}
	}
	if len(shares) == 0 {
		return nil
	}
	return u.Trader.SubmitTrade(trade.New(shares, trade.NextClose(u.Clock)))
}
