package model

import "github.com/guregu/null/v6"

// AuxiliarySlot 对齐行中某一辅助源在该日期的候选值；Found=false 表示该源当天无数据。
type AuxiliarySlot struct {
	Source string
	Unit   RateUnit
	Found  bool
	Fields map[string]any
}

// AlignedRow 一个主序列日期对应的行，Slots 与辅助输入一一对应、顺序一致。
type AlignedRow struct {
	PricePoint
	Slots []AuxiliarySlot
}

// DerivedRow 解析后的行。所有涨跌幅为小数口径（0.0439 表示 4.39%）。
type DerivedRow struct {
	PricePoint
	PrimaryRate       null.Float
	ReferenceRate     null.Float
	ComparativeChange null.Float
	ReferenceName     null.String
	ReferenceIndex    null.String
	Indicators        map[string]null.Float
}

// Up 收盘严格高于开盘；平盘算跌。
func (r *DerivedRow) Up() bool {
	return r.Close.GreaterThan(r.Open)
}
