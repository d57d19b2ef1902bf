package strategies

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/eodsim/backtest"
	"github.com/rustyeddy/eodsim/indicators"
	"github.com/rustyeddy/eodsim/trade"
)

const MACrossName = "ma-cross"

// MACrossConfig configures MACross. Kind is "ma" or "ema".
type MACrossConfig struct {
	Symbols    []string
	Kind       string
	FastPeriod int
	SlowPeriod int
	// Fraction of portfolio value committed per signal, split evenly
	// across symbols.
	Fraction   float64
	LongOnly   bool
}

func MACrossConfigDefaults() MACrossConfig {
	return MACrossConfig{
		Kind:       "ma",
		FastPeriod: 10,
		SlowPeriod: 30,
		Fraction:   1,
	}
}

type crossState struct {
	fast, slow indicators.Indicator
	primed     bool
	lastDiff   float64
	haveLast   bool
	open       *trade.Trade
}

// MACross trades each symbol on fast/slow moving average crosses of the
// closing price.
//   - Enters only on a cross
//   - Reverses on the opposite cross (exit then enter), or goes flat when
//     LongOnly
//
// The indicators are warmed from the look-back history on the first close.
type MACross struct {
	backtest.OnClose
	cfg   MACrossConfig
	state map[string]*crossState
}

func NewMACross(cfg MACrossConfig) (*MACross, error) {
	if cfg.Kind == "" {
		cfg.Kind = "ma"
	}
	if len(cfg.Symbols) == 0 {
		return nil, errors.New("ma-cross: no symbols")
	}
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 || cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("ma-cross: require 0 < fast < slow (got %d/%d)", cfg.FastPeriod, cfg.SlowPeriod)
	}
	if cfg.Fraction <= 0 || cfg.Fraction > 1 {
		return nil, fmt.Errorf("ma-cross: fraction %v outside (0,1]", cfg.Fraction)
	}

	s := &MACross{cfg: cfg, state: make(map[string]*crossState, len(cfg.Symbols))}
	for _, sym := range cfg.Symbols {
		fast, err := indicators.New(cfg.Kind, cfg.FastPeriod)
		if err != nil {
			return nil, fmt.Errorf("ma-cross: %w", err)
		}
		slow, err := indicators.New(cfg.Kind, cfg.SlowPeriod)
		if err != nil {
			return nil, fmt.Errorf("ma-cross: %w", err)
		}
		s.state[sym] = &crossState{fast: fast, slow: slow}
	}
	return s, nil
}

func (s *MACross) Name() string { return MACrossName }
func (s *MACross) Symbols() []string { return s.cfg.Symbols }
func (s *MACross) LookBack() int { return s.cfg.SlowPeriod }

func (s *MACross) OnUpdate(_ context.Context, u backtest.Update) error {
	for _, sym := range s.cfg.Symbols {
		st := s.state[sym]
		if !st.primed {
			closes, err := u.History.Closes(sym)
			if err != nil {
				return err
			}
			for _, c := range closes {
				st.update(c)
			}
			st.primed = true
			if diff, ok := s.historyDiff(closes); ok {
				st.lastDiff, st.haveLast = diff, true
			}
		}

		price, err := u.Clock.CurrentPrice(sym)
		if err != nil {
			return err
		}
		st.update(price)
		if !st.ready() {
			continue
		}

		diff := st.diff()
		if !st.haveLast {
			st.lastDiff, st.haveLast = diff, true
			continue
		}
		bullCross := diff > 0 && st.lastDiff <= 0
		bearCross := diff < 0 && st.lastDiff >= 0
		st.lastDiff = diff

		switch {
		case bullCross:
			err = s.onSignal(u, sym, st, +1, price)
		case bearCross:
			err = s.onSignal(u, sym, st, -1, price)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// historyDiff is fast minus slow over the look-back closes, false when
// there are too few of them.
func (s *MACross) historyDiff(closes []float64) (float64, bool) {
	fast, err := indicators.Compute(s.cfg.Kind, closes, s.cfg.FastPeriod)
	if err != nil {
		return 0, false
	}
	slow, err := indicators.Compute(s.cfg.Kind, closes, s.cfg.SlowPeriod)
	if err != nil {
		return 0, false
	}
	return fast - slow, true
}

func (s *MACross) onSignal(u backtest.Update, sym string, st *crossState, dir int, price float64) error {
	if st.open != nil {
		if err := u.Trader.ExitTrade(st.open); err != nil {
			return fmt.Errorf("ma-cross %s: %w", sym, err)
		}
		st.open = nil
	}
	if dir < 0 && s.cfg.LongOnly {
		return nil
	}

	pv, err := u.Broker().PortfolioValue()
	if err != nil {
		return err
	}
	budget := pv.InexactFloat64() * s.cfg.Fraction / float64(len(s.cfg.Symbols))
	q := int(budget / price)
	if q <= 0 {
		return nil
	}
	t := trade.New(map[string]int{sym: dir * q}, nil)
	if err := u.Trader.SubmitTrade(t); err != nil {
		return fmt.Errorf("ma-cross %s: %w", sym, err)
	}
	st.open = t
	return nil
}

func (st *crossState) update(price float64) {
	st.fast.Update(price)
	st.slow.Update(price)
}

func (st *crossState) ready() bool { return st.fast.Ready() && st.slow.Ready() }
func (st *crossState) diff() float64 { return st.fast.Value() - st.slow.Value() }
