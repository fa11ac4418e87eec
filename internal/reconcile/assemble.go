package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/guregu/null/v6"
	talib "github.com/markcheno/go-talib"

	"klinechart/internal/model"
)

// MaxIndicators 可同时独立展示的指标子图上限
const MaxIndicators = 5

var (
	ErrTooManyIndicators = errors.New("reconcile: too many indicators selected")
	ErrInvalidPeriod     = errors.New("reconcile: moving average period must be positive")
)

// 固定序列键
const (
	KeyPrice       = "price"
	KeyVolume      = "volume"
	KeyAmount      = "amount"
	KeyRealChange  = "real_change"
	KeyComparative = "comparative_change"
)

// 指标展示名，未列出的用键名
var indicatorTitles = map[string]string{
	"main":   "主力净流入",
	"super":  "超大单净流入",
	"large":  "大单净流入",
	"medium": "中单净流入",
	"small":  "小单净流入",

	"amplitude": "振幅",
	"turnover":  "换手率",
}

// IndicatorTitle 指标展示名。
func IndicatorTitle(key string) string {
	if t, ok := indicatorTitles[key]; ok {
		return t
	}
	return key
}

// Options 控制组装哪些序列。
type Options struct {
	Title          string
	Indicators     []string // 每个指标独立一个子图
	Overlays       []string // 线性映射到价格区间后叠加在价格图上
	MovingAverages []int
	UseAmount      bool // 量图用成交额代替成交量
}

// Assemble 把派生行组装为与渲染库无关的图表规格。
// 价格 K 线（子图 0）与量/额柱（子图 1）总是存在；实际涨跌幅、比较涨跌幅仅在至少一行有值时加子图。
func Assemble(code string, rows []model.DerivedRow, opts Options) (model.ChartSpec, error) {
	if len(opts.Indicators) > MaxIndicators {
		return model.ChartSpec{}, fmt.Errorf("%w: %d > %d", ErrTooManyIndicators, len(opts.Indicators), MaxIndicators)
	}
	for _, n := range opts.MovingAverages {
		if n <= 0 {
			return model.ChartSpec{}, fmt.Errorf("%w: %d", ErrInvalidPeriod, n)
		}
	}

	spec := model.ChartSpec{Code: code, Title: opts.Title, Dates: make([]string, len(rows))}
	for i := range rows {
		spec.Dates[i] = rows[i].Date
	}

	var panels []model.Panel
	addPanel := func(key, title string) int {
		panels = append(panels, model.Panel{Key: key, Title: title})
		return len(panels) - 1
	}

	// 子图 0：价格
	g := addPanel(KeyPrice, "K线")
	spec.Series = append(spec.Series, candlestickSeries(rows, g))
	for _, n := range opts.MovingAverages {
		spec.Series = append(spec.Series, movingAverageSeries(rows, n, g))
	}
	if lo, hi, ok := priceRange(rows); ok {
		for _, key := range opts.Overlays {
			spec.Series = append(spec.Series, model.ChartSeriesSpec{
				Name:      IndicatorTitle(key) + "(映射)",
				Key:       "overlay_" + key,
				Kind:      model.SeriesLine,
				AxisGroup: g,
				Values:    Rescale(indicatorValues(rows, key), lo, hi),
			})
		}
	}

	// 子图 1：量/额
	volKey, volTitle := KeyVolume, "成交量"
	if opts.UseAmount {
		volKey, volTitle = KeyAmount, "成交额"
	}
	g = addPanel(volKey, volTitle)
	spec.Series = append(spec.Series, volumeSeries(rows, volKey, volTitle, opts.UseAmount, g))

	if realChg := rateValues(rows, func(r *model.DerivedRow) null.Float { return r.PrimaryRate }); anyValid(realChg) {
		g = addPanel(KeyRealChange, "实际涨跌幅")
		spec.Series = append(spec.Series, model.ChartSeriesSpec{
			Name: "实际涨跌幅", Key: KeyRealChange, Kind: model.SeriesLine, AxisGroup: g, Values: realChg, Percent: true,
		})
	}
	if cmp := rateValues(rows, func(r *model.DerivedRow) null.Float { return r.ComparativeChange }); anyValid(cmp) {
		g = addPanel(KeyComparative, comparativeTitle(rows))
		spec.Series = append(spec.Series, model.ChartSeriesSpec{
			Name: "比较涨跌幅", Key: KeyComparative, Kind: model.SeriesLine, AxisGroup: g, Values: cmp, Percent: true,
		})
	}

	for _, key := range opts.Indicators {
		g = addPanel(key, IndicatorTitle(key))
		spec.Series = append(spec.Series, model.ChartSeriesSpec{
			Name: IndicatorTitle(key), Key: key, Kind: model.SeriesBar, AxisGroup: g, Values: indicatorValues(rows, key),
		})
	}

	positions := Layout(len(panels), len(opts.Indicators))
	spec.Layout = model.PanelLayout{
		PanelCount:       len(panels),
		Panels:           panels,
		AxisGroupToPanel: make(map[int]int, len(panels)),
	}
	for i := range panels {
		spec.Layout.Panels[i].Top = positions[i].Top
		spec.Layout.Panels[i].Height = positions[i].Height
		spec.Layout.AxisGroupToPanel[i] = i
	}
	return spec, nil
}

func candlestickSeries(rows []model.DerivedRow, group int) model.ChartSeriesSpec {
	s := model.ChartSeriesSpec{
		Name:       "日K",
		Key:        KeyPrice,
		Kind:       model.SeriesCandlestick,
		AxisGroup:  group,
		OHLC:       make([][4]float64, len(rows)),
		Directions: make([]model.Direction, len(rows)),
	}
	for i := range rows {
		r := &rows[i]
		s.OHLC[i] = [4]float64{r.Open.InexactFloat64(), r.Close.InexactFloat64(), r.Low.InexactFloat64(), r.High.InexactFloat64()}
		s.Directions[i] = direction(r)
	}
	return s
}

func volumeSeries(rows []model.DerivedRow, key, name string, useAmount bool, group int) model.ChartSeriesSpec {
	s := model.ChartSeriesSpec{
		Name:       name,
		Key:        key,
		Kind:       model.SeriesBar,
		AxisGroup:  group,
		Values:     make([]null.Float, len(rows)),
		Directions: make([]model.Direction, len(rows)),
	}
	for i := range rows {
		r := &rows[i]
		if useAmount {
			s.Values[i] = nullFloat(r.Amount.InexactFloat64())
		} else {
			s.Values[i] = null.FloatFrom(float64(r.Volume))
		}
		s.Directions[i] = direction(r)
	}
	return s
}

// movingAverageSeries n 日均线，预热期为 null。
func movingAverageSeries(rows []model.DerivedRow, n, group int) model.ChartSeriesSpec {
	s := model.ChartSeriesSpec{
		Name:      fmt.Sprintf("MA%d", n),
		Key:       fmt.Sprintf("ma%d", n),
		Kind:      model.SeriesLine,
		AxisGroup: group,
		Values:    make([]null.Float, len(rows)),
	}
	if len(rows) < n {
		return s
	}
	closes := make([]float64, len(rows))
	for i := range rows {
		closes[i] = rows[i].Close.InexactFloat64()
	}
	ma := talib.Sma(closes, n)
	for i := n - 1; i < len(ma); i++ {
		s.Values[i] = nullFloat(ma[i])
	}
	return s
}

func direction(r *model.DerivedRow) model.Direction {
	if r.Up() {
		return model.DirectionUp
	}
	return model.DirectionDown
}

func rateValues(rows []model.DerivedRow, pick func(*model.DerivedRow) null.Float) []null.Float {
	out := make([]null.Float, len(rows))
	for i := range rows {
		v := pick(&rows[i])
		if v.Valid {
			out[i] = nullFloat(v.Float64)
		}
	}
	return out
}

func indicatorValues(rows []model.DerivedRow, key string) []null.Float {
	out := make([]null.Float, len(rows))
	for i := range rows {
		if v, ok := rows[i].Indicators[key]; ok && v.Valid {
			out[i] = nullFloat(v.Float64)
		}
	}
	return out
}

func anyValid(values []null.Float) bool {
	for _, v := range values {
		if v.Valid {
			return true
		}
	}
	return false
}

// comparativeTitle 子图标题带上参考指数名，取最后一行的标识。
func comparativeTitle(rows []model.DerivedRow) string {
	for i := len(rows) - 1; i >= 0; i-- {
		if n := strings.TrimSpace(rows[i].ReferenceName.String); rows[i].ReferenceName.Valid && n != "" {
			return "比较涨跌幅(相对" + n + ")"
		}
	}
	return "比较涨跌幅"
}
