package reconcile

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"klinechart/internal/model"
)

// percentScale 百分比与小数之间的换算系数
const percentScale = 100

// 各逻辑值的候选字段，按优先级排列
var (
	primaryRateFields   = []string{model.FieldChangeRate, model.FieldDailyChange}
	referenceRateFields = []string{model.FieldReferenceRate, model.FieldReferenceChange, model.FieldReferenceChangeRate}
)

// parseNumber 把数字或数字字符串转为有限浮点数；空串、非数字、NaN、Inf 一律视为缺失。
// 带 % 后缀的字符串按原数值返回，需要按涨跌幅换算时用 parseRate。
func parseNumber(v any) (float64, bool) {
	f, _, ok := parseValue(v)
	return f, ok
}

// parseRate 按数据源单位换算为小数口径；带 % 后缀的字符串总按百分比处理，与源单位无关。
func parseRate(v any, unit model.RateUnit) (float64, bool) {
	f, pct, ok := parseValue(v)
	if !ok {
		return 0, false
	}
	if pct {
		return f / percentScale, true
	}
	return toFraction(f, unit), true
}

// parseValue pct 表示字符串自带 % 后缀。
func parseValue(v any) (f float64, pct bool, ok bool) {
	switch n := v.(type) {
	case nil:
		return 0, false, false
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false, false
		}
		f = x
	case decimal.Decimal:
		f = n.InexactFloat64()
	case string:
		s := strings.TrimSpace(n)
		if strings.HasSuffix(s, "%") {
			pct = true
			s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		}
		if s == "" || s == "-" {
			return 0, false, false
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, false
		}
		f = x
	default:
		return 0, false, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, false
	}
	return f, pct, true
}

// firstRate 按字段优先级取第一个可解析的涨跌幅，已换算为小数口径。
func firstRate(fields map[string]any, names []string, unit model.RateUnit) (float64, bool) {
	for _, name := range names {
		if f, ok := parseRate(fields[name], unit); ok {
			return f, true
		}
	}
	return 0, false
}

// toFraction 按数据源单位换算为小数口径。
func toFraction(v float64, unit model.RateUnit) float64 {
	if unit == model.UnitPercent {
		return v / percentScale
	}
	return v
}

// ToPercent 展示边界：小数转百分比，缺失保持缺失。
func ToPercent(f null.Float) null.Float {
	if !f.Valid {
		return null.Float{}
	}
	return null.FloatFrom(f.Float64 * percentScale)
}

// nullFloat 构造有效值，NaN/Inf 归为缺失。
func nullFloat(v float64) null.Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

func fieldString(fields map[string]any, name string) (string, bool) {
	// 数字形式的指数代码已丢失前导零，不采用
	s, ok := fields[name].(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
