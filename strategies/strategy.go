package strategies

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/eodsim/backtest"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Params configures a strategy built by name.
type Params struct {
	Symbols  []string
	LookBack int
	// Values holds strategy specific knobs.
	Values map[string]float64
}

func (p Params) value(key string, def float64) float64 {
	if v, ok := p.Values[key]; ok {
		return v
	}
	return def
}

type Factory func(Params) (backtest.Strategy, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(name)] = f
}

// New builds the strategy registered under name.
func New(name string, p Params) (backtest.Strategy, error) {
	mu.RLock()
	f, ok := registry[normalize(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
	}
	return f(p)
}

// Names lists the registered strategies.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func init() {
	Register(NoopName, func(p Params) (backtest.Strategy, error) {
		return &Noop{Syms: p.Symbols, Look: p.LookBack}, nil
	})
	Register(LongShortName, func(p Params) (backtest.Strategy, error) {
		return NewLongShortReversal(p.Symbols, p.value("capital_fraction", 1))
	})
	Register(BuyAndHoldName, func(p Params) (backtest.Strategy, error) {
		return NewBuyAndHold(p.Symbols, p.Values)
	})
	Register(MACrossName, func(p Params) (backtest.Strategy, error) {
		cfg := MACrossConfigDefaults()
		cfg.Symbols = p.Symbols
		cfg.FastPeriod = int(p.value("fast", float64(cfg.FastPeriod)))
		cfg.SlowPeriod = int(p.value("slow", float64(cfg.SlowPeriod)))
		cfg.Fraction = p.value("fraction", cfg.Fraction)
		cfg.LongOnly = p.value("long_only", 0) != 0
		if p.value("ema", 0) != 0 {
			cfg.Kind = "ema"
		}
		return NewMACross(cfg)
	})
}
