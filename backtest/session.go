package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/eodsim/broker"
	"github.com/rustyeddy/eodsim/id"
	"github.com/rustyeddy/eodsim/journal"
	"github.com/rustyeddy/eodsim/ledger"
	"github.com/rustyeddy/eodsim/market"
	"github.com/rustyeddy/eodsim/metrics"
	"github.com/rustyeddy/eodsim/risk"
	"github.com/rustyeddy/eodsim/trader"
)

var (
	ErrAlreadyRun      = errors.New("backtest already run")
	ErrInvalidStrategy = errors.New("invalid strategy")
	ErrLookBack        = errors.New("look-back leaves no dates to trade")
)

const DefaultInitialCapital = 10000

type options struct {
	capital   decimal.Decimal
	log       *zap.Logger
	journal   journal.Journal
	metrics   *metrics.Metrics
	liquidate bool
	runID     string
	dataset   string
	ids       id.Generator
	risk      risk.Policy
	now       func() time.Time
}

type Option func(*options)

func WithInitialCapital(c decimal.Decimal) Option { return func(o *options) { o.capital = c } }

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithJournal records orders, cash, equity, trades and the run summary.
func WithJournal(j journal.Journal) Option { return func(o *options) { o.journal = j } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithLiquidateAtEnd exits every open trade and position after the last tick.
func WithLiquidateAtEnd(v bool) Option { return func(o *options) { o.liquidate = v } }

func WithRunID(s string) Option { return func(o *options) { o.runID = s } }

// WithDatasetName labels the run in results and the journal.
func WithDatasetName(s string) Option { return func(o *options) { o.dataset = s } }

// WithIDs sets the generator for the run, order and position ids. A seeded
// generator makes the ids of repeated runs identical.
func WithIDs(g id.Generator) Option { return func(o *options) { o.ids = g } }

// WithRiskPolicy gates every trade the strategy submits.
func WithRiskPolicy(p risk.Policy) Option { return func(o *options) { o.risk = p } }

// Session runs one strategy over one dataset. It owns the clock, ledger,
// broker and trader and can run only once; build a new Session to rerun.
type Session struct {
	opts     options
	data     *market.Dataset
	strategy Strategy
	clock    *market.Clock
	trader   *trader.Trader
	recorder *journal.Recorder

	ran       bool
	snapshots []trader.Snapshot
}

func NewSession(data *market.Dataset, s Strategy, opts ...Option) (*Session, error) {
	o := options{
		capital: decimal.NewFromInt(DefaultInitialCapital),
		log:     zap.NewNop(),
		journal: journal.Nop{},
		ids:     id.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = id.Default()
	}
	if o.runID == "" {
		o.runID = o.ids.New()
	}
	if o.journal == nil {
		o.journal = journal.Nop{}
	}

	if err := validate(data, s); err != nil {
		return nil, err
	}
	lookBack := s.LookBack()
	if lookBack < 0 || lookBack >= data.Len() {
		return nil, fmt.Errorf("%w: look-back %d with %d dates", ErrLookBack, lookBack, data.Len())
	}

	clock, err := market.NewClock(data, market.WithStartIndex(lookBack))
	if err != nil {
		return nil, err
	}

	rec := journal.NewRecorder(o.journal)
	l, err := ledger.New(o.capital, ledger.WithListener(rec.OnLedger))
	if err != nil {
		return nil, err
	}

	brokerOpts := []broker.Option{
		broker.WithLogger(o.log.Named("broker")),
		broker.WithIDs(o.ids),
		broker.WithOrderObserver(rec.ObserveOrder),
	}
	traderOpts := []trader.Option{
		trader.WithLogger(o.log.Named("trader")),
		trader.WithListener(rec),
		trader.WithID("trader"),
		trader.WithRiskPolicy(o.risk),
	}
	if o.metrics != nil {
		clock.Subscribe("metrics", o.metrics.OnTick)
		brokerOpts = append(brokerOpts, broker.WithOrderObserver(o.metrics.ObserveOrder))
		traderOpts = append(traderOpts, trader.WithListener(o.metrics))
	}
	b := broker.New(clock, l, brokerOpts...)

	return &Session{
		opts:     o,
		data:     data,
		strategy: s,
		clock:    clock,
		trader:   trader.New(clock, b, traderOpts...),
		recorder: rec,
	}, nil
}

func validate(data *market.Dataset, s Strategy) error {
	if data == nil {
		return market.ErrEmptyDataset
	}
	if s == nil {
		return fmt.Errorf("%w: nil", ErrInvalidStrategy)
	}
	syms := s.Symbols()
	if len(syms) == 0 {
		return fmt.Errorf("%w: %s trades no symbols", ErrInvalidStrategy, s.Name())
	}
	for _, sym := range syms {
		if _, ok := data.Column(sym); !ok {
			return fmt.Errorf("%w: %s: %w: %q", ErrInvalidStrategy, s.Name(), market.ErrUnknownSymbol, sym)
		}
	}
	return nil
}

func (s *Session) Clock() *market.Clock { return s.clock }
func (s *Session) Trader() *trader.Trader { return s.trader }
func (s *Session) RunID() string { return s.opts.runID }

// Snapshots holds one account snapshot per Close tick.
func (s *Session) Snapshots() []trader.Snapshot {
	return append([]trader.Snapshot(nil), s.snapshots...)
}

// Run drives the clock to exhaustion. Cancelling ctx stops between ticks
// and returns the result so far with the context error.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if s.ran {
		return Result{}, ErrAlreadyRun
	}
	s.ran = true

	log := s.opts.log.With(zap.String("run", s.opts.runID), zap.String("strategy", s.strategy.Name()))
	log.Info("backtest started",
		zap.Int("dates", s.data.Len()),
		zap.Int("start_index", s.clock.StartIndex()),
		zap.Stringer("capital", s.opts.capital))

	startValue := s.opts.capital
	created := s.opts.now()

	var runErr error
	for tick := range s.clock.Events() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if s.accepts(tick) {
			if err := s.strategy.OnUpdate(ctx, s.update(tick)); err != nil {
				runErr = fmt.Errorf("%s on %s %s: %w", s.strategy.Name(), tick.Date.Format(market.DateLayout), tick.Phase, err)
				break
			}
		}
		if tick.Phase == market.Close {
			if err := s.snapshot(); err != nil {
				runErr = err
				break
			}
		}
	}

	if runErr == nil && s.opts.liquidate {
		if err := s.liquidate(); err != nil {
			runErr = err
		}
	}

	res, err := s.result(created, startValue)
	if err != nil {
		return res, errors.Join(runErr, err)
	}
	if err := s.opts.journal.RecordRun(res.Record()); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if err := s.recorder.Err(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("journal: %w", err))
	}

	log.Info("backtest finished",
		zap.Stringer("end_value", res.EndValue),
		zap.Float64("return_pct", res.ReturnPct),
		zap.Int("trades", res.Trades),
		zap.Error(runErr))
	return res, runErr
}

func (s *Session) accepts(tick market.Tick) bool {
	if f, ok := s.strategy.(TickFilter); ok {
		return f.ShouldTrade(tick)
	}
	return true
}

func (s *Session) update(tick market.Tick) Update {
	lb := s.strategy.LookBack()
	var hist *market.Dataset
	if lb > 0 {
		hist, _ = s.data.Window(tick.DateIndex-lb, tick.DateIndex)
	}
	return Update{Tick: tick, History: hist, Clock: s.clock, Trader: s.trader}
}

func (s *Session) snapshot() error {
	snap, err := s.trader.Snapshot()
	if err != nil {
		return err
	}
	s.snapshots = append(s.snapshots, snap)
	if s.opts.metrics != nil {
		s.opts.metrics.SetAccount(snap.Cash, snap.PortfolioValue)
	}
	return s.recorder.RecordSnapshot(snap)
}

// liquidate exits open trades, then flattens whatever the broker still
// holds even when a trade exit failed.
func (s *Session) liquidate() error {
	var errs []error
	if err := s.trader.LiquidateAllPositions(); err != nil {
		errs = append(errs, fmt.Errorf("liquidate trades: %w", err))
	}
	if _, err := s.trader.Broker().LiquidateAll(); err != nil {
		errs = append(errs, fmt.Errorf("liquidate positions: %w", err))
	}
	return errors.Join(errs...)
}
