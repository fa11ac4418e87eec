package reconcile

import (
	"github.com/guregu/null/v6"

	"klinechart/internal/model"
)

// 非指标字段：解析指标时跳过
var reservedFields = map[string]bool{
	model.FieldChangeRate:          true,
	model.FieldDailyChange:         true,
	model.FieldReferenceRate:       true,
	model.FieldReferenceChange:     true,
	model.FieldReferenceChangeRate: true,
	model.FieldReferenceName:       true,
	model.FieldReferenceIndex:      true,
	"date":                         true,
}

// Derive 为每行解析主/参考涨跌幅并计算比较涨跌幅。
// 多个辅助源按输入顺序取第一个可解析值；各源按自身 Unit 换算为小数口径。
// 两个涨跌幅任一缺失时比较涨跌幅为 null，不补 0。
func Derive(rows []model.AlignedRow, code string, kind model.InstrumentKind) []model.DerivedRow {
	def, hasDef := DefaultReference(code, kind)
	out := make([]model.DerivedRow, len(rows))
	for i := range rows {
		out[i] = deriveRow(&rows[i], def, hasDef)
	}
	return out
}

func deriveRow(row *model.AlignedRow, def Reference, hasDef bool) model.DerivedRow {
	d := model.DerivedRow{PricePoint: row.PricePoint}
	identified := false
	for _, s := range row.Slots {
		if !s.Found {
			continue
		}
		if !d.PrimaryRate.Valid {
			if v, ok := firstRate(s.Fields, primaryRateFields, s.Unit); ok {
				d.PrimaryRate = nullFloat(v)
			}
		}
		if !d.ReferenceRate.Valid {
			if v, ok := firstRate(s.Fields, referenceRateFields, s.Unit); ok {
				d.ReferenceRate = nullFloat(v)
			}
		}
		// 名称与代码取自同一个源，避免拼出不一致的参考标识
		if !identified {
			name, okName := fieldString(s.Fields, model.FieldReferenceName)
			index, okIndex := fieldString(s.Fields, model.FieldReferenceIndex)
			if okName || okIndex {
				identified = true
				d.ReferenceName = null.NewString(name, okName)
				d.ReferenceIndex = null.NewString(index, okIndex)
			}
		}
		for k, raw := range s.Fields {
			if reservedFields[k] {
				continue
			}
			if _, seen := d.Indicators[k]; seen {
				continue
			}
			if v, ok := parseNumber(raw); ok {
				if d.Indicators == nil {
					d.Indicators = make(map[string]null.Float)
				}
				d.Indicators[k] = null.FloatFrom(v)
			}
		}
	}
	if d.PrimaryRate.Valid && d.ReferenceRate.Valid {
		d.ComparativeChange = nullFloat(d.PrimaryRate.Float64 - d.ReferenceRate.Float64)
	}
	if !identified && hasDef {
		d.ReferenceName = null.StringFrom(def.Name)
		d.ReferenceIndex = null.StringFrom(def.Code)
	}
	return d
}
