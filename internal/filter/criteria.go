// Package filter 定义 K 线行校验条件（Criterion）与组合方式（And），ValidPricePoint 为对齐前的默认校验。
package filter

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"klinechart/internal/model"
)

// 日期格式：与上游接口一致的 YYYY-MM-DD
const dateLayout = "2006-01-02"

// Criterion 单条条件：入参为一根 K，返回是否通过。
type Criterion func(*model.PricePoint) bool

func And(cs ...Criterion) Criterion {
	return func(p *model.PricePoint) bool {
		if p == nil {
			return false
		}
		for _, c := range cs {
			if c == nil {
				continue
			}
			if !c(p) {
				return false
			}
		}
		return true
	}
}

// Parsed 上游数值字段全部解析成功。
func Parsed(p *model.PricePoint) bool {
	return !p.Unparsed
}

// HasDate 日期非空。
func HasDate(p *model.PricePoint) bool {
	return strings.TrimSpace(p.Date) != ""
}

// DateParses 日期可按 YYYY-MM-DD 解析。
func DateParses(p *model.PricePoint) bool {
	_, err := time.Parse(dateLayout, strings.TrimSpace(p.Date))
	return err == nil
}

// PositivePrices 开收低高均大于 0（解析失败的字段为 0）。
func PositivePrices(p *model.PricePoint) bool {
	return p.Open.IsPositive() && p.Close.IsPositive() && p.Low.IsPositive() && p.High.IsPositive()
}

// WithinRange low ≤ open,close ≤ high。
func WithinRange(p *model.PricePoint) bool {
	if p.Low.GreaterThan(p.High) {
		return false
	}
	for _, v := range [...]decimal.Decimal{p.Open, p.Close} {
		if v.LessThan(p.Low) || v.GreaterThan(p.High) {
			return false
		}
	}
	return true
}

func NonNegativeVolume(p *model.PricePoint) bool {
	return p.Volume >= 0 && !p.Amount.IsNegative()
}

// ValidPricePoint 对齐前的默认校验：日期有效、数值均可解析、价格为正、落在高低区间、量额非负。
func ValidPricePoint() Criterion {
	return And(
		HasDate,
		Parsed,
		DateParses,
		PositivePrices,
		WithinRange,
		NonNegativeVolume,
	)
}
