package render

import (
	"fmt"
	"io"

	"github.com/guregu/null/v6"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"klinechart/internal/model"
	"klinechart/internal/reconcile"
)

// 缺失值在表格中的写法
const tableMissing = "-"

// TableOptions Indicators 为额外列出的指标键；Color 时涨红跌绿。
type TableOptions struct {
	Title      string
	Indicators []string
	Color      bool
}

// Table 逐行打印派生结果，涨跌幅以百分比展示。
func Table(w io.Writer, rows []model.DerivedRow, o TableOptions) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if o.Title != "" {
		t.SetTitle(o.Title)
	}
	header := table.Row{"日期", "开盘", "收盘", "最低", "最高", "成交量", "实际涨跌幅", "参考涨跌幅", "比较涨跌幅", "参考指数"}
	for _, k := range o.Indicators {
		header = append(header, reconcile.IndicatorTitle(k))
	}
	t.AppendHeader(header)

	for i := range rows {
		r := &rows[i]
		row := table.Row{
			r.Date,
			r.Open.StringFixed(2),
			r.Close.StringFixed(2),
			r.Low.StringFixed(2),
			r.High.StringFixed(2),
			r.Volume,
			formatRate(r.PrimaryRate, o.Color),
			formatRate(r.ReferenceRate, o.Color),
			formatRate(r.ComparativeChange, o.Color),
			referenceLabel(r),
		}
		for _, k := range o.Indicators {
			row = append(row, formatAmount(r.Indicators[k]))
		}
		t.AppendRow(row)
	}
	t.Render()
}

func formatRate(v null.Float, color bool) string {
	if !v.Valid {
		return tableMissing
	}
	pct := reconcile.ToPercent(v).Float64
	s := fmt.Sprintf("%.2f%%", pct)
	if pct > 0 {
		s = "+" + s
	}
	if !color {
		return s
	}
	if pct > 0 {
		return text.FgRed.Sprint(s)
	}
	if pct < 0 {
		return text.FgGreen.Sprint(s)
	}
	return s
}

func formatAmount(v null.Float) string {
	if !v.Valid {
		return tableMissing
	}
	return fmt.Sprintf("%.0f", v.Float64)
}

func referenceLabel(r *model.DerivedRow) string {
	switch {
	case r.ReferenceName.Valid && r.ReferenceIndex.Valid:
		return r.ReferenceName.String + "(" + r.ReferenceIndex.String + ")"
	case r.ReferenceName.Valid:
		return r.ReferenceName.String
	case r.ReferenceIndex.Valid:
		return r.ReferenceIndex.String
	default:
		return tableMissing
	}
}
