package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/eodsim/broker"
	"github.com/rustyeddy/eodsim/journal"
	"github.com/rustyeddy/eodsim/trader"
)

// Result summarises a finished (or cancelled) run.
type Result struct {
	RunID    string
	Created  time.Time
	Strategy string
	Dataset  string

	Start time.Time
	End   time.Time

	StartValue decimal.Decimal
	EndValue   decimal.Decimal
	NetPnL     decimal.Decimal
	ReturnPct  float64
	// MaxDrawdownPct is over the Close snapshots.
	MaxDrawdownPct float64

	Trades int
	Wins   int
	Losses int
	Open   int

	Orders       int
	FailedOrders int

	Snapshots []trader.Snapshot
}

func (s *Session) result(created time.Time, startValue decimal.Decimal) (Result, error) {
	b := s.trader.Broker()
	end, err := b.PortfolioValue()
	if err != nil {
		return Result{}, fmt.Errorf("result: %w", err)
	}

	r := Result{
		RunID:      s.opts.runID,
		Created:    created,
		Strategy:   s.strategy.Name(),
		Dataset:    s.opts.dataset,
		Start:      s.data.Date(s.clock.StartIndex()),
		End:        s.clock.CurrentDate(),
		StartValue: startValue,
		EndValue:   end,
		NetPnL:     end.Sub(startValue),
		Open:       len(s.trader.OpenTrades()),
		Snapshots:  s.Snapshots(),
	}
	if !startValue.IsZero() {
		r.ReturnPct = r.NetPnL.Div(startValue).InexactFloat64() * 100
	}
	r.MaxDrawdownPct = MaxDrawdown(PortfolioValues(r.Snapshots)) * 100

	for _, t := range s.trader.ClosedTrades() {
		r.Trades++
		pnl, _ := t.PnL()
		switch pnl.Sign() {
		case 1:
			r.Wins++
		case -1:
			r.Losses++
		}
	}
	for _, o := range b.Orders() {
		r.Orders++
		if o.Status() == broker.Failed {
			r.FailedOrders++
		}
	}
	return r, nil
}

// WinRate is wins over closed trades, in percent.
func (r Result) WinRate() float64 {
	if r.Trades == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Trades) * 100
}

func (r Result) Record() journal.RunRecord {
	return journal.RunRecord{
		RunID:          r.RunID,
		Created:        r.Created,
		Strategy:       r.Strategy,
		Dataset:        r.Dataset,
		Start:          r.Start,
		End:            r.End,
		StartValue:     r.StartValue,
		EndValue:       r.EndValue,
		NetPnL:         r.NetPnL,
		ReturnPct:      r.ReturnPct,
		MaxDrawdownPct: r.MaxDrawdownPct,
		Trades:         r.Trades,
		Wins:           r.Wins,
		Losses:         r.Losses,
	}
}

func PrintResult(w io.Writer, r Result) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Created:       %s\n", r.Created.Format(time.RFC3339))
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	if r.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", r.Dataset)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.DateOnly))
	fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.DateOnly))
	fmt.Fprintf(w, "Closes:        %d\n", len(r.Snapshots))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate())
	if r.Open > 0 {
		fmt.Fprintf(w, "Still Open:    %d\n", r.Open)
	}
	fmt.Fprintf(w, "Orders:        %d (%d failed)\n", r.Orders, r.FailedOrders)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Value:   %s\n", r.StartValue.StringFixed(2))
	fmt.Fprintf(w, "End Value:     %s\n", r.EndValue.StringFixed(2))
	fmt.Fprintf(w, "Net P/L:       %s\n", r.NetPnL.StringFixed(2))
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.ReturnPct)
	if r.MaxDrawdownPct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.MaxDrawdownPct)
	}

	fmt.Fprintln(w)
}
