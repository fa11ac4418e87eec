package reconcile

import (
	"math"

	"github.com/guregu/null/v6"

	"klinechart/internal/model"
)

// Rescale 把辅助序列线性映射到 [lo, hi]：
// scaled = lo + (v - auxMin) * ((hi - lo) / auxRange)，auxRange 为 0 时比例取 1。缺失值保持缺失。
func Rescale(values []null.Float, lo, hi float64) []null.Float {
	auxMin, auxMax := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !v.Valid {
			continue
		}
		auxMin = math.Min(auxMin, v.Float64)
		auxMax = math.Max(auxMax, v.Float64)
	}
	out := make([]null.Float, len(values))
	if math.IsInf(auxMin, 1) {
		return out
	}
	ratio := 1.0
	if auxRange := auxMax - auxMin; auxRange != 0 {
		ratio = (hi - lo) / auxRange
	}
	for i, v := range values {
		if v.Valid {
			out[i] = nullFloat(lo + (v.Float64-auxMin)*ratio)
		}
	}
	return out
}

// priceRange 价格图纵轴区间：最低价的最小值到最高价的最大值。
func priceRange(rows []model.DerivedRow) (lo, hi float64, ok bool) {
	if len(rows) == 0 {
		return 0, 0, false
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range rows {
		lo = math.Min(lo, rows[i].Low.InexactFloat64())
		hi = math.Max(hi, rows[i].High.InexactFloat64())
	}
	return lo, hi, true
}
