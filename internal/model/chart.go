package model

import "github.com/guregu/null/v6"

// SeriesKind 图表序列形态。
type SeriesKind string

const (
	SeriesCandlestick SeriesKind = "candlestick"
	SeriesBar         SeriesKind = "bar"
	SeriesLine        SeriesKind = "line"
)

// Direction 单日涨跌着色。
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ChartSeriesSpec 与渲染库无关的单条序列；Values/OHLC/Directions 与派生行一一对应。
type ChartSeriesSpec struct {
	Name       string       `json:"name"`
	Key        string       `json:"key"`
	Kind       SeriesKind   `json:"kind"`
	AxisGroup  int          `json:"axis_group"`
	Values     []null.Float `json:"values,omitempty"`
	OHLC       [][4]float64 `json:"ohlc,omitempty"` // open, close, low, high
	Directions []Direction  `json:"directions,omitempty"`
	Percent    bool         `json:"percent,omitempty"` // Values 为小数，展示时 ×100
}

// Panel 一个纵向堆叠的子图区域，Top/Height 为占整体高度的百分比。
type Panel struct {
	Key    string  `json:"key"`
	Title  string  `json:"title"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Bottom 子图下边界。
func (p Panel) Bottom() float64 { return p.Top + p.Height }

// PanelLayout 子图划分与坐标轴组到子图的映射。
type PanelLayout struct {
	PanelCount       int         `json:"panel_count"`
	Panels           []Panel     `json:"panels"`
	AxisGroupToPanel map[int]int `json:"axis_group_to_panel"`
}

// ChartSpec 一次渲染的完整声明式规格。
type ChartSpec struct {
	Code   string            `json:"code"`
	Title  string            `json:"title,omitempty"`
	Dates  []string          `json:"dates"`
	Series []ChartSeriesSpec `json:"series"`
	Layout PanelLayout       `json:"layout"`
}
