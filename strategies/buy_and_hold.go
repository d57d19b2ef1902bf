package strategies

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/eodsim/backtest"
)

const BuyAndHoldName = "buy-and-hold"

// BuyAndHold rebalances into fixed weights at the first open and then
// holds. Without explicit weights every symbol gets an equal share.
type BuyAndHold struct {
	backtest.OnOpen
	symbols []string
	weights map[string]float64
	done    bool
}

func NewBuyAndHold(symbols []string, weights map[string]float64) (*BuyAndHold, error) {
	if len(symbols) == 0 {
		return nil, errors.New("buy-and-hold: no symbols")
	}
	w := make(map[string]float64, len(symbols))
	if len(weights) == 0 {
		for _, s := range symbols {
			w[s] = 1 / float64(len(symbols))
		}
	} else {
		var sum float64
		for _, s := range symbols {
			w[s] = weights[s]
			sum += weights[s]
		}
		if sum > 1 {
			return nil, fmt.Errorf("buy-and-hold: weights sum to %v, above 1", sum)
		}
	}
	return &BuyAndHold{symbols: symbols, weights: w}, nil
}

func (s *BuyAndHold) Name() string { return BuyAndHoldName }
func (s *BuyAndHold) Symbols() []string { return s.symbols }
func (s *BuyAndHold) LookBack() int { return 0 }

func (s *BuyAndHold) OnUpdate(_ context.Context, u backtest.Update) error {
	if s.done {
		return nil
	}
	s.done = true
	_, err := u.Trader.RebalanceToWeights(s.weights, nil)
	return err
}
