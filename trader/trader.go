package trader

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/eodsim/broker"
	"github.com/rustyeddy/eodsim/id"
	"github.com/rustyeddy/eodsim/market"
	"github.com/rustyeddy/eodsim/risk"
	"github.com/rustyeddy/eodsim/trade"
)

var (
	ErrBadWeight    = errors.New("invalid target weight")
	ErrTradeNotOpen = errors.New("trade not open")
)

// Clock is the subscription side of the market clock.
type Clock interface {
	Subscribe(id string, fn market.Handler)
	Unsubscribe(id string)
}

// Listener is told about every trade the trader closes.
type Listener interface {
	OnTradeClosed(t *trade.Trade)
}

type Option func(*Trader)

func WithLogger(l *zap.Logger) Option {
	return func(tr *Trader) {
		if l != nil {
			tr.log = l
		}
	}
}

// WithListener adds l; listeners run in the order they were added.
func WithListener(l Listener) Option {
	return func(tr *Trader) {
		if l != nil {
			tr.listeners = append(tr.listeners, l)
		}
	}
}

// WithID sets the clock subscription id.
func WithID(s string) Option {
	return func(tr *Trader) { tr.id = s }
}

// WithRiskPolicy checks every submitted trade against p before entry.
func WithRiskPolicy(p risk.Policy) Option {
	return func(tr *Trader) {
		if !p.IsZero() {
			tr.policy = &p
		}
	}
}

// Trader drives trade lifecycles: callers submit trades, and on every clock
// tick the trader exits the active ones whose rule has fired.
type Trader struct {
	id        string
	clock     Clock
	broker    *broker.Broker
	log       *zap.Logger
	listeners []Listener
	policy    *risk.Policy

	open   []*trade.Trade
	closed []*trade.Trade
	errs   []error
}

// New subscribes the trader to clock.
func New(clock Clock, b *broker.Broker, opts ...Option) *Trader {
	tr := &Trader{
		clock:  clock,
		broker: b,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(tr)
	}
	if tr.id == "" {
		tr.id = "trader-" + id.New()
	}
	clock.Subscribe(tr.id, tr.OnTick)
	return tr
}

func (tr *Trader) ID() string { return tr.id }
func (tr *Trader) Broker() *broker.Broker { return tr.broker }

func (tr *Trader) OpenTrades() []*trade.Trade {
	return append([]*trade.Trade(nil), tr.open...)
}

func (tr *Trader) ClosedTrades() []*trade.Trade {
	return append([]*trade.Trade(nil), tr.closed...)
}

// Errors returns exit failures hit while handling ticks. The affected
// trades stay open.
func (tr *Trader) Errors() []error { return append([]error(nil), tr.errs...) }

// Close removes the trader from the clock.
func (tr *Trader) Close() { tr.clock.Unsubscribe(tr.id) }

// SubmitTrade enters t and tracks it as open.
func (tr *Trader) SubmitTrade(t *trade.Trade) error {
	if tr.policy != nil {
		if err := tr.checkRisk(t); err != nil {
			tr.log.Warn("trade rejected", zap.String("trade", t.ID), zap.Error(err))
			return err
		}
	}
	if err := t.SubmitEntry(tr.broker); err != nil {
		tr.log.Warn("trade entry failed", zap.String("trade", t.ID), zap.Error(err))
		return err
	}
	if failed := t.FailedLegs(); len(failed) > 0 {
		tr.log.Debug("trade entered with declined legs",
			zap.String("trade", t.ID), zap.Int("failed", len(failed)))
	}
	tr.open = append(tr.open, t)
	return nil
}

func (tr *Trader) checkRisk(t *trade.Trade) error {
	pv, err := tr.broker.PortfolioValue()
	if err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	prices := tr.broker.Prices()
	intent := risk.TradeIntent{Legs: t.Shares(), Prices: make(map[string]float64)}
	acct := risk.AccountSnapshot{
		PortfolioValue: pv.InexactFloat64(),
		Positions:      make(map[string]int),
		OpenTrades:     len(tr.open),
	}
	for _, p := range tr.broker.Positions() {
		acct.Positions[p.Symbol] = p.Quantity()
	}
	for _, syms := range []map[string]int{intent.Legs, acct.Positions} {
		for sym := range syms {
			price, err := prices.CurrentPrice(sym)
			if err != nil {
				return fmt.Errorf("risk: %w", err)
			}
			intent.Prices[sym] = price
		}
	}
	return risk.Evaluate(*tr.policy, intent, acct).Err()
}

// OnTick exits every active trade whose rule fires.
func (tr *Trader) OnTick(tick market.Tick) {
	tr.exitWhere(func(t *trade.Trade) bool { return t.ExitRuleTriggered() }, func(t *trade.Trade, err error) {
		tr.log.Warn("trade exit failed",
			zap.String("trade", t.ID),
			zap.Int("date_index", tick.DateIndex),
			zap.Stringer("phase", tick.Phase),
			zap.Error(err))
		tr.errs = append(tr.errs, fmt.Errorf("tick %d %s: %w", tick.DateIndex, tick.Phase, err))
	})
}

// ExitTrade exits t now, regardless of its rule. On error t stays open.
func (tr *Trader) ExitTrade(t *trade.Trade) error {
	found := false
	var exitErr error
	tr.exitWhere(func(x *trade.Trade) bool {
		if x != t {
			return false
		}
		found = true
		return true
	}, func(_ *trade.Trade, err error) { exitErr = err })
	if !found {
		return fmt.Errorf("exit %s: %w", t.ID, ErrTradeNotOpen)
	}
	return exitErr
}

// LiquidateAllPositions exits every active trade regardless of its rule.
func (tr *Trader) LiquidateAllPositions() error {
	var errs []error
	tr.exitWhere(func(*trade.Trade) bool { return true }, func(_ *trade.Trade, err error) {
		errs = append(errs, err)
	})
	return errors.Join(errs...)
}

// exitWhere exits matching trades newest first. Positions are netted per
// symbol, so stacked trades unwind in reverse order of entry.
func (tr *Trader) exitWhere(match func(*trade.Trade) bool, onErr func(*trade.Trade, error)) {
	done := make([]bool, len(tr.open))
	for i := len(tr.open) - 1; i >= 0; i-- {
		t := tr.open[i]
		if t.Status() != trade.Active || !match(t) {
			continue
		}
		if err := t.SubmitExit(tr.broker); err != nil {
			onErr(t, err)
			continue
		}
		done[i] = true
		tr.closed = append(tr.closed, t)
		tr.log.Debug("trade closed", zap.String("trade", t.ID), zap.Stringer("exit", t.ExitValue()))
		for _, l := range tr.listeners {
			l.OnTradeClosed(t)
		}
	}

	keep := make([]*trade.Trade, 0, len(tr.open))
	for i, t := range tr.open {
		if i >= len(done) || !done[i] {
			keep = append(keep, t)
		}
	}
	tr.open = keep
}

type PositionSnapshot struct {
	Symbol   string
	Quantity int
	Price    float64
	Value    decimal.Decimal
}

// Snapshot is the account marked to market at one instant.
type Snapshot struct {
	Time           time.Time
	Cash           decimal.Decimal
	Holdings       decimal.Decimal
	PortfolioValue decimal.Decimal
	Positions      []PositionSnapshot
}

func (tr *Trader) Snapshot() (Snapshot, error) {
	prices := tr.broker.Prices()
	s := Snapshot{
		Time:     prices.CurrentTime(),
		Cash:     tr.broker.Ledger().Balance(),
		Holdings: decimal.Zero,
	}
	for _, p := range tr.broker.Positions() {
		price, err := prices.CurrentPrice(p.Symbol)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot: %w", err)
		}
		v := p.MarketValue(price)
		s.Holdings = s.Holdings.Add(v)
		s.Positions = append(s.Positions, PositionSnapshot{
			Symbol:   p.Symbol,
			Quantity: p.Quantity(),
			Price:    price,
			Value:    v,
		})
	}
	s.PortfolioValue = s.Cash.Add(s.Holdings)
	return s, nil
}

// RebalanceToWeights moves holdings toward the target fraction of
// portfolio value per symbol. Negative weights are shorts; symbols held but
// absent from weights are flattened. Share counts truncate toward zero.
//
// A position cannot change sides inside one trade, so a symbol whose target
// flips sign is flattened by the first trade and reopened by a second one.
// It returns the trades it submitted, none when nothing needs to change.
func (tr *Trader) RebalanceToWeights(weights map[string]float64, rule trade.ExitRule) ([]*trade.Trade, error) {
	for sym, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("rebalance: %w: %s=%v", ErrBadWeight, sym, w)
		}
	}

	pv, err := tr.broker.PortfolioValue()
	if err != nil {
		return nil, fmt.Errorf("rebalance: %w", err)
	}
	total := pv.InexactFloat64()

	current := make(map[string]int)
	for _, p := range tr.broker.Positions() {
		current[p.Symbol] = p.Quantity()
	}
	symbols := make([]string, 0, len(weights)+len(current))
	for s := range weights {
		symbols = append(symbols, s)
	}
	for s := range current {
		if _, ok := weights[s]; !ok {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)

	prices := tr.broker.Prices()
	first := make(map[string]int)
	second := make(map[string]int)
	for _, s := range symbols {
		price, err := prices.CurrentPrice(s)
		if err != nil {
			return nil, fmt.Errorf("rebalance: %w", err)
		}
		target := int(weights[s] * total / price)
		have := current[s]
		switch {
		case target == have:
		case have != 0 && target != 0 && (have > 0) != (target > 0):
			first[s] = -have
			second[s] = target
		default:
			first[s] = target - have
		}
	}

	var out []*trade.Trade
	for _, legs := range []map[string]int{first, second} {
		if len(legs) == 0 {
			continue
		}
		t := trade.New(legs, rule)
		if err := tr.SubmitTrade(t); err != nil {
			return out, fmt.Errorf("rebalance: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}
