package journal

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"
)

var orgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"day":    func(t time.Time) string { return t.Format("2006-01-02") },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

const runOrgTemplate = `* BACKTEST: {{.Run.Strategy}} {{.Run.Markets}}
:PROPERTIES:
:RUN_ID:      {{.Run.RunID}}
:STRATEGY:    {{.Run.Strategy}}
:MARKETS:     {{.Run.Markets}}
:CURRENCY:    {{.Run.BaseCurrency}}
:START_DATE:  {{day .Run.Start}}
:END_DATE:    {{day .Run.End}}
:START_EQ:    {{printf "%.2f" .Run.StartEquity}}
:END_EQ:      {{printf "%.2f" .Run.EndEquity}}
:NET_PL:      {{printf "%.2f" .Run.NetPL}}
:RETURN_PCT:  {{printf "%.2f" .Run.ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .Run.MaxDDPct}}
:TRADES:      {{.Run.Trades}}
:WINS:        {{.Run.Wins}}
:LOSSES:      {{.Run.Losses}}
:CREATED:     [{{(orTime .Run.Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Net P/L:       *{{printf "%.2f" .Run.NetPL}}*
- Return:        *{{printf "%.2f" .Run.ReturnPct}}%*
- Max Drawdown:  *{{printf "%.2f" .Run.MaxDDPct}}%*
- Win Rate:      *{{printf "%.2f" (mul100 .Run.WinRate)}}%*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Run.Wins}} |
| Losses  | {{.Run.Losses}} |
| Total   | {{.Run.Trades}} |
{{- if .Positions }}

** Positions
{{- range .Positions }}
{{ formatPosition . }}
{{- end }}
{{- end }}
`

// FormatRunOrg renders a run and its positions as an Org-mode document.
func FormatRunOrg(run Run, positions []PositionRecord) (string, error) {
	funcs := template.FuncMap{"formatPosition": FormatPositionOrg}
	for k, v := range orgFuncs {
		funcs[k] = v
	}
	t, err := template.New("run").Funcs(funcs).Parse(runOrgTemplate)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	data := struct {
		Run       Run
		Positions []PositionRecord
	}{run, positions}
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteRunOrg writes FormatRunOrg to path.
func WriteRunOrg(path string, run Run, positions []PositionRecord) error {
	s, err := FormatRunOrg(run, positions)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0o644)
}

// FormatPositionOrg renders one position as an Org heading with a
// properties drawer.
func FormatPositionOrg(p PositionRecord) string {
	closed := "open"
	if !p.ClosedDate.IsZero() {
		closed = p.ClosedDate.Format("2006-01-02")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*** %s %s %s (%s)\n", p.Direction, p.Market, p.Contract, shortID(p.ID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", p.ID)
	fmt.Fprintf(&b, ":MARKET: %s\n", p.Market)
	fmt.Fprintf(&b, ":CONTRACT: %s\n", p.Contract)
	fmt.Fprintf(&b, ":QUANTITY: %d\n", p.Quantity)
	fmt.Fprintf(&b, ":FORECAST: %.2f\n", p.Forecast)
	fmt.Fprintf(&b, ":ENTRY_DATE: %s\n", p.EntryDate.Format("2006-01-02"))
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", p.EntryPrice)
	fmt.Fprintf(&b, ":CLOSED: %s\n", closed)
	fmt.Fprintf(&b, ":REALIZED_PL: %.2f\n", p.RealizedPL)
	b.WriteString(":END:")
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
