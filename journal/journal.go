package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is an order at its terminal status.
type OrderRecord struct {
	OrderID     string
	Side        string
	Symbol      string
	Quantity    int
	Status      string
	FillPrice   float64
	Reason      string
	PositionID  string
	SubmittedAt time.Time
	CompletedAt time.Time
}

// CashRecord mirrors one ledger entry, approved or declined.
type CashRecord struct {
	Seq             int
	Kind            string
	Outcome         string
	Reason          string
	Amount          decimal.Decimal
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
}

type EquitySnapshot struct {
	Time           time.Time
	Cash           decimal.Decimal
	Holdings       decimal.Decimal
	PortfolioValue decimal.Decimal
}

type TradeRecord struct {
	TradeID      string
	Legs         string
	OpenTime     time.Time
	CloseTime    time.Time
	InitialValue decimal.Decimal
	ExitValue    decimal.Decimal
	PnL          decimal.Decimal
	FailedLegs   int
}

// RunRecord summarises one backtest.
type RunRecord struct {
	RunID          string
	Created        time.Time
	Strategy       string
	Dataset        string
	Start          time.Time
	End            time.Time
	StartValue     decimal.Decimal
	EndValue       decimal.Decimal
	NetPnL         decimal.Decimal
	ReturnPct      float64
	MaxDrawdownPct float64
	Trades         int
	Wins           int
	Losses         int
}

type Journal interface {
	RecordOrder(OrderRecord) error
	RecordCash(CashRecord) error
	RecordEquity(EquitySnapshot) error
	RecordTrade(TradeRecord) error
	RecordRun(RunRecord) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOrder(OrderRecord) error { return nil }
func (Nop) RecordCash(CashRecord) error { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) RecordRun(RunRecord) error { return nil }
func (Nop) Close() error { return nil }
