package risk

import (
	"fmt"
	"math"
)

// Evaluate checks intent against p. Limits only bind when the trade grows
// the measured exposure, so trades that reduce risk always pass them.
func Evaluate(p Policy, intent TradeIntent, acct AccountSnapshot) Decision {
	d := Decision{Allowed: true}

	if len(intent.Legs) == 0 {
		d.add("NO_LEGS", "trade has no non-zero legs")
		return d
	}
	if p.MaxOpenTrades > 0 && acct.OpenTrades >= p.MaxOpenTrades {
		d.add("TOO_MANY_OPEN_TRADES",
			fmt.Sprintf("open trades %d >= max %d", acct.OpenTrades, p.MaxOpenTrades))
	}

	pv := acct.PortfolioValue
	if pv <= 0 {
		if p.MaxPositionPct > 0 || p.MaxGrossExposurePct > 0 || p.MaxTradeValuePct > 0 {
			d.add("NO_EQUITY", fmt.Sprintf("portfolio value %.2f is not positive", pv))
		}
		return d
	}

	var tradeValue, grossBefore, grossAfter float64
	for sym, q := range acct.Positions {
		grossBefore += math.Abs(float64(q) * intent.Prices[sym])
		if _, ok := intent.Legs[sym]; !ok {
			grossAfter += math.Abs(float64(q) * intent.Prices[sym])
		}
	}
	for sym, delta := range intent.Legs {
		price := intent.Prices[sym]
		have := acct.Positions[sym]
		after := have + delta
		tradeValue += math.Abs(float64(delta) * price)
		grossAfter += math.Abs(float64(after) * price)

		pct := math.Abs(float64(after)*price) / pv
		if p.MaxPositionPct > 0 && pct > p.MaxPositionPct && abs(after) > abs(have) {
			d.add("POSITION_TOO_LARGE",
				fmt.Sprintf("%s at %.2f%% exceeds max %.2f%%", sym, 100*pct, 100*p.MaxPositionPct))
		}
	}

	d.TradeValuePct = tradeValue / pv
	d.GrossExposurePct = grossAfter / pv

	if p.MaxTradeValuePct > 0 && d.TradeValuePct > p.MaxTradeValuePct {
		d.add("TRADE_TOO_LARGE",
			fmt.Sprintf("trade value %.2f%% exceeds max %.2f%%", 100*d.TradeValuePct, 100*p.MaxTradeValuePct))
	}
	if p.MaxGrossExposurePct > 0 && d.GrossExposurePct > p.MaxGrossExposurePct && grossAfter > grossBefore {
		d.add("EXPOSURE_TOO_HIGH",
			fmt.Sprintf("gross exposure %.2f%% exceeds max %.2f%%", 100*d.GrossExposurePct, 100*p.MaxGrossExposurePct))
	}
	return d
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
