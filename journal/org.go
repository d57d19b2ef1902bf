package journal

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"
	"time"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block. Structured
// facts go in the PROPERTIES drawer; the headings below are for notes.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s (%s)\n", t.Legs, shortID(t.TradeID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":LEGS: %s\n", t.Legs)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", ts(t.OpenTime))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", ts(t.CloseTime))
	fmt.Fprintf(&b, ":INITIAL_VALUE: %s\n", t.InitialValue.StringFixed(2))
	fmt.Fprintf(&b, ":EXIT_VALUE: %s\n", t.ExitValue.StringFixed(2))
	fmt.Fprintf(&b, ":PNL: %s\n", t.PnL.StringFixed(2))
	fmt.Fprintf(&b, ":FAILED_LEGS: %d\n", t.FailedLegs)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

var runOrgFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format(time.DateOnly) },
	"orNow": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var runOrg = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

type runOrgView struct {
	RunRecord
	TradesOrg string
}

// WriteRunOrg renders a run summary followed by its trades.
func WriteRunOrg(w io.Writer, run RunRecord, trades []TradeRecord) error {
	return runOrg.Execute(w, runOrgView{RunRecord: run, TradesOrg: FormatTradesOrg(trades)})
}

const RunOrgTemplate = `* BACKTEST: {{.Strategy}} {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:PROPERTIES:
:RUN_ID:      {{.RunID}}
:STRATEGY:    {{.Strategy}}
:START_DATE:  {{date .Start}}
:END_DATE:    {{date .End}}
:START_VALUE: {{.StartValue.StringFixed 2}}
:END_VALUE:   {{.EndValue.StringFixed 2}}
:NET_PNL:     {{.NetPnL.StringFixed 2}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDrawdownPct}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:CREATED:     [{{(orNow .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
{{- if .TradesOrg}}

{{.TradesOrg}}
{{- end}}
`

func legString(shares map[string]int) string {
	syms := make([]string, 0, len(shares))
	for s := range shares {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	parts := make([]string, len(syms))
	for i, s := range syms {
		parts[i] = fmt.Sprintf("%s:%+d", s, shares[s])
	}
	return strings.Join(parts, " ")
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
