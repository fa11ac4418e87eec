// Package render 把图表规格与派生行输出为 HTML（ECharts）或终端表格。
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/guregu/null/v6"

	"klinechart/internal/model"
	"klinechart/internal/reconcile"
)

// 缺失值在 ECharts 中写作 "-"，画成断点而不是 0
const echartsMissing = "-"

// 子图最小像素高度
const minPanelPx = 120

// Style 页面尺寸与涨跌配色。
type Style struct {
	Width     string // 如 "1200px"
	Height    string // 所有子图合计高度，如 "900px"
	UpColor   string
	DownColor string
}

func DefaultStyle() Style {
	return Style{Width: "1200px", Height: "900px", UpColor: "#ec0000", DownColor: "#00da3c"}
}

// HTML 按布局把每个子图渲染成一张图，纵向堆叠在同一页面；子图高度按 Panel.Height 比例分配。
func HTML(w io.Writer, spec model.ChartSpec, style Style) error {
	if len(spec.Layout.Panels) == 0 {
		return fmt.Errorf("render: %s has no panels", spec.Code)
	}
	totalPx := pixels(style.Height)
	page := components.NewPage()
	page.PageTitle = pageTitle(spec)

	byPanel := make(map[int][]model.ChartSeriesSpec, len(spec.Layout.Panels))
	for _, s := range spec.Series {
		p, ok := spec.Layout.AxisGroupToPanel[s.AxisGroup]
		if !ok {
			continue
		}
		byPanel[p] = append(byPanel[p], s)
	}
	for i, panel := range spec.Layout.Panels {
		series := byPanel[i]
		if len(series) == 0 {
			continue
		}
		initOpts := opts.Initialization{
			PageTitle: page.PageTitle,
			Width:     style.Width,
			Height:    panelPixels(totalPx, panel.Height),
		}
		page.AddCharts(panelChart(spec.Dates, panel, series, initOpts, style))
	}
	return page.Render(w)
}

func panelChart(dates []string, panel model.Panel, series []model.ChartSeriesSpec, initOpts opts.Initialization, style Style) components.Charter {
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: panel.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside", Start: 0, End: 100}),
	}
	if series[0].Percent {
		global = append(global, charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true), AxisLabel: &opts.AxisLabel{Formatter: "{value}%"}}))
	} else {
		global = append(global, charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}))
	}

	first, rest := series[0], series[1:]
	switch first.Kind {
	case model.SeriesCandlestick:
		k := charts.NewKLine()
		k.SetGlobalOptions(global...)
		k.SetXAxis(dates).AddSeries(first.Name, klineData(first), charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        style.UpColor,
			Color0:       style.DownColor,
			BorderColor:  style.UpColor,
			BorderColor0: style.DownColor,
		}))
		for _, s := range rest {
			k.Overlap(overlay(dates, s, style))
		}
		return k
	case model.SeriesBar:
		b := charts.NewBar()
		b.SetGlobalOptions(global...)
		b.SetXAxis(dates)
		for _, s := range series {
			b.AddSeries(s.Name, barData(s, style))
		}
		return b
	default:
		l := charts.NewLine()
		l.SetGlobalOptions(global...)
		l.SetXAxis(dates)
		for _, s := range series {
			l.AddSeries(s.Name, lineData(s))
		}
		return l
	}
}

// overlay 价格图上的叠加序列（均线、映射后的指标）。
func overlay(dates []string, s model.ChartSeriesSpec, style Style) charts.Overlaper {
	if s.Kind == model.SeriesBar {
		b := charts.NewBar()
		b.SetXAxis(dates).AddSeries(s.Name, barData(s, style))
		return b
	}
	l := charts.NewLine()
	l.SetXAxis(dates).AddSeries(s.Name, lineData(s))
	return l
}

func klineData(s model.ChartSeriesSpec) []opts.KlineData {
	out := make([]opts.KlineData, len(s.OHLC))
	for i, v := range s.OHLC {
		out[i] = opts.KlineData{Value: v}
	}
	return out
}

func barData(s model.ChartSeriesSpec, style Style) []opts.BarData {
	out := make([]opts.BarData, len(s.Values))
	for i, v := range s.Values {
		d := opts.BarData{Value: value(v, s.Percent)}
		if i < len(s.Directions) {
			color := style.DownColor
			if s.Directions[i] == model.DirectionUp {
				color = style.UpColor
			}
			d.ItemStyle = &opts.ItemStyle{Color: color}
		} else if v.Valid && v.Float64 < 0 {
			d.ItemStyle = &opts.ItemStyle{Color: style.DownColor}
		} else {
			d.ItemStyle = &opts.ItemStyle{Color: style.UpColor}
		}
		out[i] = d
	}
	return out
}

func lineData(s model.ChartSeriesSpec) []opts.LineData {
	out := make([]opts.LineData, len(s.Values))
	for i, v := range s.Values {
		out[i] = opts.LineData{Value: value(v, s.Percent)}
	}
	return out
}

// value 缺失写 "-"；百分比序列在此处 ×100 并保留两位。
func value(v null.Float, percent bool) any {
	if !v.Valid {
		return echartsMissing
	}
	if percent {
		return math.Round(reconcile.ToPercent(v).Float64*100) / 100
	}
	return v.Float64
}

func pageTitle(spec model.ChartSpec) string {
	if spec.Title != "" {
		return spec.Title
	}
	return spec.Code
}

// pixels 解析 "900px" 或 "900"，失败时按 900。
func pixels(s string) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	if err != nil || n <= 0 {
		return 900
	}
	return n
}

func panelPixels(totalPx int, heightPct float64) string {
	px := int(math.Round(float64(totalPx) * heightPct / 100))
	if px < minPanelPx {
		px = minPanelPx
	}
	return fmt.Sprintf("%dpx", px)
}
