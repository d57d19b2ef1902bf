// Package metrics exposes simulation counters through a prometheus registry
// owned by one run.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/eodsim/broker"
	"github.com/rustyeddy/eodsim/market"
	"github.com/rustyeddy/eodsim/trade"
)

const namespace = "eodsim"

type Metrics struct {
	reg *prometheus.Registry

	Ticks          *prometheus.CounterVec
	Orders         *prometheus.CounterVec
	Declines       *prometheus.CounterVec
	TradesClosed   prometheus.Counter
	TradePnL       prometheus.Histogram
	Cash           prometheus.Gauge
	PortfolioValue prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clock_ticks_total",
			Help:      "Clock advances by phase.",
		}, []string{"phase"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders by side and final status.",
		}, []string{"side", "status"}),
		Declines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_declines_total",
			Help:      "Failed orders by reason.",
		}, []string{"reason"}),
		TradesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_closed_total",
			Help:      "Trades that reached Complete.",
		}),
		TradePnL: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_pnl",
			Help:      "Profit and loss of closed trades.",
			Buckets:   []float64{-1000, -100, -10, 0, 10, 100, 1000},
		}),
		Cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cash_balance",
			Help:      "Ledger balance at the last snapshot.",
		}),
		PortfolioValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "portfolio_value",
			Help:      "Cash plus marked holdings at the last snapshot.",
		}),
	}
	m.reg.MustRegister(m.Ticks, m.Orders, m.Declines, m.TradesClosed, m.TradePnL, m.Cash, m.PortfolioValue)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// OnTick is a market.Handler.
func (m *Metrics) OnTick(t market.Tick) {
	m.Ticks.WithLabelValues(t.Phase.String()).Inc()
}

// ObserveOrder is a broker.OrderObserver.
func (m *Metrics) ObserveOrder(o *broker.Order) {
	m.Orders.WithLabelValues(o.Side.String(), o.Status().String()).Inc()
	if o.Status() == broker.Failed {
		m.Declines.WithLabelValues(o.FailureReason()).Inc()
	}
}

// OnTradeClosed satisfies trader.Listener.
func (m *Metrics) OnTradeClosed(t *trade.Trade) {
	m.TradesClosed.Inc()
	if pnl, err := t.PnL(); err == nil {
		m.TradePnL.Observe(pnl.InexactFloat64())
	}
}

func (m *Metrics) SetAccount(cash, portfolio decimal.Decimal) {
	m.Cash.Set(cash.InexactFloat64())
	m.PortfolioValue.Set(portfolio.InexactFloat64())
}

// WriteText dumps every metric in the prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
