package journal

import (
	"sync"

	"github.com/rustyeddy/eodsim/broker"
	"github.com/rustyeddy/eodsim/ledger"
	"github.com/rustyeddy/eodsim/trade"
	"github.com/rustyeddy/eodsim/trader"
)

func FromOrder(o *broker.Order) OrderRecord {
	price, _ := o.FillPrice()
	return OrderRecord{
		OrderID:     o.ID,
		Side:        o.Side.String(),
		Symbol:      o.Symbol,
		Quantity:    o.Quantity,
		Status:      o.Status().String(),
		FillPrice:   price,
		Reason:      o.FailureReason(),
		PositionID:  o.PositionID(),
		SubmittedAt: o.SubmittedAt(),
		CompletedAt: o.CompletedAt(),
	}
}

func FromLedger(r ledger.Record) CashRecord {
	rec := CashRecord{
		Seq:             r.Seq,
		Kind:            r.Kind.String(),
		Outcome:         r.Outcome.String(),
		Amount:          r.Amount,
		PreviousBalance: r.PreviousBalance,
		NewBalance:      r.NewBalance,
	}
	if r.Reason != ledger.NoReason {
		rec.Reason = r.Reason.String()
	}
	return rec
}

func FromSnapshot(s trader.Snapshot) EquitySnapshot {
	return EquitySnapshot{
		Time:           s.Time,
		Cash:           s.Cash,
		Holdings:       s.Holdings,
		PortfolioValue: s.PortfolioValue,
	}
}

// FromTrade records a completed trade; P&L is zero for any other status.
func FromTrade(t *trade.Trade) TradeRecord {
	pnl, _ := t.PnL()
	return TradeRecord{
		TradeID:      t.ID,
		Legs:         legString(t.Shares()),
		OpenTime:     t.OpenedAt(),
		CloseTime:    t.ClosedAt(),
		InitialValue: t.InitialValue(),
		ExitValue:    t.ExitValue(),
		PnL:          pnl,
		FailedLegs:   len(t.FailedLegs()),
	}
}

// Recorder adapts a Journal to the engine's observer hooks. The hooks
// cannot fail, so the first write error is kept and reported by Err.
type Recorder struct {
	j   Journal
	mu  sync.Mutex
	err error
}

func NewRecorder(j Journal) *Recorder {
	if j == nil {
		j = Nop{}
	}
	return &Recorder{j: j}
}

func (r *Recorder) Journal() Journal { return r.j }

// ObserveOrder is a broker.OrderObserver.
func (r *Recorder) ObserveOrder(o *broker.Order) { r.keep(r.j.RecordOrder(FromOrder(o))) }

// OnLedger is a ledger.Listener.
func (r *Recorder) OnLedger(rec ledger.Record) { r.keep(r.j.RecordCash(FromLedger(rec))) }

// OnTradeClosed satisfies trader.Listener.
func (r *Recorder) OnTradeClosed(t *trade.Trade) { r.keep(r.j.RecordTrade(FromTrade(t))) }

func (r *Recorder) RecordSnapshot(s trader.Snapshot) error {
	err := r.j.RecordEquity(FromSnapshot(s))
	r.keep(err)
	return err
}

func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) keep(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
}
