package journal

import (
	"bytes"
	"sort"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

// Summary aggregates a set of completed trades.
type Summary struct {
	Title    string
	Start    time.Time
	End      time.Time
	Trades   int
	Wins     int
	Losses   int
	NetPnL   decimal.Decimal
	Best     decimal.Decimal
	Worst    decimal.Decimal
	ByReason []ReasonCount
}

type ReasonCount struct {
	Reason string
	Count  int
}

func (s Summary) WinRate() float64 {
	if s.Trades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Trades)
}

func Summarize(title string, trades []TradeRecord) Summary {
	s := Summary{Title: title, NetPnL: decimal.Zero}
	counts := map[string]int{}
	for i, t := range trades {
		s.Trades++
		s.NetPnL = s.NetPnL.Add(t.RealizedPnL)
		switch t.RealizedPnL.Sign() {
		case 1:
			s.Wins++
		case -1:
			s.Losses++
		}
		if i == 0 || t.RealizedPnL.GreaterThan(s.Best) {
			s.Best = t.RealizedPnL
		}
		if i == 0 || t.RealizedPnL.LessThan(s.Worst) {
			s.Worst = t.RealizedPnL
		}
		if s.Start.IsZero() || t.OpenTime.Before(s.Start) {
			s.Start = t.OpenTime
		}
		if t.CloseTime.After(s.End) {
			s.End = t.CloseTime
		}
		counts[t.Reason]++
	}
	for r, n := range counts {
		s.ByReason = append(s.ByReason, ReasonCount{Reason: r, Count: n})
	}
	sort.Slice(s.ByReason, func(i, j int) bool { return s.ByReason[i].Reason < s.ByReason[j].Reason })
	return s
}

var summaryFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"fixed":  func(d decimal.Decimal) string { return d.StringFixed(4) },
}

// FormatSummaryOrg renders s as an Org-mode section.
func FormatSummaryOrg(s Summary) (string, error) {
	t, err := template.New("summary").Funcs(summaryFuncs).Parse(summaryOrgTemplate)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const summaryOrgTemplate = `* {{if .Title}}{{.Title}}{{else}}Session{{end}}
:PROPERTIES:
:START:     {{if .Start.IsZero}}(none){{else}}{{.Start.UTC.Format "2006-01-02 15:04:05"}}{{end}}
:END_TIME:  {{if .End.IsZero}}(none){{else}}{{.End.UTC.Format "2006-01-02 15:04:05"}}{{end}}
:TRADES:    {{.Trades}}
:WINS:      {{.Wins}}
:LOSSES:    {{.Losses}}
:WIN_RATE:  {{printf "%.2f" (mul100 .WinRate)}}
:NET_PNL:   {{fixed .NetPnL}}
:END:

** Performance Summary
- Net P/L:    *{{fixed .NetPnL}}*
- Win Rate:   *{{printf "%.2f" (mul100 .WinRate)}}%*
- Best:       {{fixed .Best}}
- Worst:      {{fixed .Worst}}

** Exit Reasons
| Reason | Count |
|--------+-------|
{{- range .ByReason }}
| {{.Reason}} | {{.Count}} |
{{- end }}
`
