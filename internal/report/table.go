package report

import (
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"chanlun/internal/decision"
	"chanlun/internal/store"
)

var hundred = decimal.NewFromInt(100)

// Percent 以两位小数百分比展示收益率。
func Percent(v float64) string {
	return decimal.NewFromFloat(v).Mul(hundred).StringFixed(2) + "%"
}

// RenderOutcomes 渲染一批分类结果。onlySignals 为 true 时只输出写入了记录的行。
func RenderOutcomes(w io.Writer, outcomes []decision.Outcome, onlySignals bool) int {
	t := newTable(w)
	t.AppendHeader(table.Row{"Symbol", "Freq", "Level", "Kind", "Power", "Profit", "Reason", "Rule", "Fractal"})
	rows := 0
	for _, o := range outcomes {
		if onlySignals && o.Record == nil {
			continue
		}
		profit := ""
		if o.Kind != store.KindOther {
			profit = Percent(o.EstimatedProfit)
		}
		t.AppendRow(table.Row{o.Symbol, o.Freq, o.Level, o.Kind, o.Power, profit, o.Reason, o.Rule, formatTime(o.FractalTime)})
		rows++
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "Total", rows})
	t.Render()
	return rows
}

// RenderRecords 渲染存储中的信号记录。
func RenderRecords(w io.Writer, recs []store.SignalRecord) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Date", "Symbol", "Name", "Freq", "Level", "Kind", "Power", "Profit", "Surfaced", "Reason"})
	for _, r := range recs {
		t.AppendRow(table.Row{formatTime(r.Date), r.Symbol, r.Name, r.Freq, r.Level, r.Kind, r.Power, Percent(r.Profit), r.Surfaced, r.Reason})
	}
	t.Render()
}

// RenderSummary 按原因统计。
func RenderSummary(w io.Writer, summary map[string]int) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Reason", "Count"})
	for k, v := range summary {
		t.AppendRow(table.Row{k, v})
	}
	t.SortBy([]table.SortBy{{Name: "Reason", Mode: table.Asc}})
	t.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strings.TrimSuffix(t.UTC().Format("2006-01-02 15:04"), " 00:00")
}
