// Package model 定义 K 线主序列、辅助序列、对齐行、派生行与图表规格等数据结构。
package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// InstrumentKind 证券类型，决定默认参考指数。
type InstrumentKind string

const (
	KindStock InstrumentKind = "stock"
	KindETF   InstrumentKind = "etf"
	KindIndex InstrumentKind = "index"
	KindFund  InstrumentKind = "fund"
)

// ParseKind 宽松解析类型字符串，未知值按股票处理。
func ParseKind(s string) InstrumentKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "etf":
		return KindETF
	case "index", "idx":
		return KindIndex
	case "fund":
		return KindFund
	default:
		return KindStock
	}
}

// RateUnit 某个数据源涨跌幅字段的单位。
type RateUnit string

const (
	UnitFraction RateUnit = "fraction" // 0.0439
	UnitPercent  RateUnit = "percent"  // 4.39
)

// Valid 是否为已知单位。
func (u RateUnit) Valid() bool {
	return u == UnitFraction || u == UnitPercent
}

// PricePoint 主序列单日 K：日期、开收低高、成交量、成交额。
type PricePoint struct {
	Date   string
	Open   decimal.Decimal
	Close  decimal.Decimal
	Low    decimal.Decimal
	High   decimal.Decimal
	Volume int64
	Amount decimal.Decimal
	// Unparsed 上游有数值字段缺失或无法解析，对应字段为 0，该行在对齐时剔除
	Unparsed bool
}

// PrimarySeries 主序列及其证券标识。
type PrimarySeries struct {
	Code   string
	Kind   InstrumentKind
	Points []PricePoint
}

// 辅助序列中已知的字段名（不同生产方命名不一致）
const (
	FieldChangeRate          = "change_rate"
	FieldDailyChange         = "daily_change"
	FieldReferenceRate       = "reference_rate"
	FieldReferenceChange     = "reference_change"
	FieldReferenceChangeRate = "reference_change_rate"
	FieldReferenceName       = "reference_name"
	FieldReferenceIndex      = "reference_index"
)

// AuxiliaryPoint 辅助序列单日原始值，Fields 保留生产方原字段名，值为数字或数字字符串。
type AuxiliaryPoint struct {
	Date   string
	Fields map[string]any
}

// AuxiliarySeries 一个辅助数据源；Unit 是该源涨跌幅字段唯一的缩放口径。
type AuxiliarySeries struct {
	Source string
	Unit   RateUnit
	Points []AuxiliaryPoint
}
