package mail

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/guregu/null/v6"

	"klinechart/internal/model"
	"klinechart/internal/reconcile"
	"klinechart/internal/worker"
)

// Entry 报告中的一只标的：最新一行派生数据，失败时 Row 为 nil。
type Entry struct {
	Code string
	Kind model.InstrumentKind
	Row  *model.DerivedRow
	Err  error
}

// Entries 取每个结果的最后一行；按比较涨跌幅降序，无值的排后，失败的最后。
func Entries(outs []worker.Outcome) []Entry {
	entries := make([]Entry, 0, len(outs))
	for _, o := range outs {
		e := Entry{Code: o.Request.Code, Kind: o.Request.Kind, Err: o.Err}
		if o.Err == nil && o.Result != nil && len(o.Result.Rows) > 0 {
			row := o.Result.Rows[len(o.Result.Rows)-1]
			e.Row = &row
		} else if e.Err == nil {
			e.Err = fmt.Errorf("%s: no rows", o.Request.Code)
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return rank(entries[i]) > rank(entries[j])
	})
	return entries
}

// rank 排序键：有比较涨跌幅按其值，无值次之，失败最后。
func rank(e Entry) float64 {
	switch {
	case e.Row == nil:
		return -2e9
	case !e.Row.ComparativeChange.Valid:
		return -1e9
	default:
		return e.Row.ComparativeChange.Float64
	}
}

func buildHTMLTable(title string, entries []Entry) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"><title>`)
	b.WriteString(html.EscapeString(title))
	b.WriteString(`</title></head><body>`)
	b.WriteString(`<h2>` + html.EscapeString(title) + `</h2><p>比较涨跌幅 = 实际涨跌幅 − 参考指数涨跌幅，按比较涨跌幅降序。</p>`)
	b.WriteString(`<table border="1" cellspacing="0" cellpadding="8" style="border-collapse: collapse; font-size: 14px;">`)
	b.WriteString(`<thead><tr style="background: #eee;"><th>代码</th><th>日期</th><th>收盘</th><th>实际涨跌幅</th><th>参考涨跌幅</th><th>比较涨跌幅</th><th>参考指数</th></tr></thead><tbody>`)
	for _, e := range entries {
		if e.Row == nil {
			msg := "无数据"
			if e.Err != nil {
				msg = e.Err.Error()
			}
			b.WriteString(fmt.Sprintf(`<tr><td>%s</td><td colspan="6">%s</td></tr>`,
				html.EscapeString(e.Code), html.EscapeString(msg)))
			continue
		}
		r := e.Row
		b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td>%s%s%s<td>%s</td></tr>",
			html.EscapeString(e.Code), html.EscapeString(r.Date), r.Close.StringFixed(2),
			rateCell(r.PrimaryRate), rateCell(r.ReferenceRate), rateCell(r.ComparativeChange),
			html.EscapeString(reference(r))))
	}
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}

// rateCell 红涨绿跌，缺失写 "-"。
func rateCell(v null.Float) string {
	if !v.Valid {
		return "<td>-</td>"
	}
	pct := reconcile.ToPercent(v).Float64
	switch {
	case pct > 0:
		return fmt.Sprintf(`<td style="color: #ec0000;">+%.2f%%</td>`, pct)
	case pct < 0:
		return fmt.Sprintf(`<td style="color: #00a03c;">%.2f%%</td>`, pct)
	default:
		return fmt.Sprintf("<td>%.2f%%</td>", pct)
	}
}

func reference(r *model.DerivedRow) string {
	switch {
	case r.ReferenceName.Valid && r.ReferenceIndex.Valid:
		return r.ReferenceName.String + "(" + r.ReferenceIndex.String + ")"
	case r.ReferenceName.Valid:
		return r.ReferenceName.String
	case r.ReferenceIndex.Valid:
		return r.ReferenceIndex.String
	default:
		return "-"
	}
}
