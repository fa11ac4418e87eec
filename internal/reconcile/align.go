package reconcile

import (
	"slices"
	"strings"

	"klinechart/internal/filter"
	"klinechart/internal/model"
)

// Report 数据形态问题的汇总，只计数不报错，供调用方打日志。
type Report struct {
	DroppedPrimary   int `json:"dropped_primary"`
	DroppedAuxiliary int `json:"dropped_auxiliary"`
	DuplicateDates   int `json:"duplicate_dates"`
}

// Merge 累加另一份计数。
func (r *Report) Merge(o Report) {
	r.DroppedPrimary += o.DroppedPrimary
	r.DroppedAuxiliary += o.DroppedAuxiliary
	r.DuplicateDates += o.DuplicateDates
}

// Total 被剔除或忽略的条数。
func (r Report) Total() int {
	return r.DroppedPrimary + r.DroppedAuxiliary + r.DuplicateDates
}

// Align 以主序列日期为轴对齐所有辅助序列：每个有效主序列日期输出一行，按日期升序。
// 辅助源当天缺数据时对应 slot 的 Found=false、Fields=nil，不补 0。
func Align(primary []model.PricePoint, aux []model.AuxiliarySeries) ([]model.AlignedRow, Report) {
	var rep Report
	valid := filter.ValidPricePoint()

	points := make([]model.PricePoint, 0, len(primary))
	for i := range primary {
		p := primary[i]
		p.Date = strings.TrimSpace(p.Date)
		if !valid(&p) {
			rep.DroppedPrimary++
			continue
		}
		points = append(points, p)
	}
	// 调用方不保证有序，稳定排序防御性副本
	slices.SortStableFunc(points, func(a, b model.PricePoint) int {
		return strings.Compare(a.Date, b.Date)
	})

	indexes := make([]map[string]map[string]any, len(aux))
	for i := range aux {
		idx, r := indexByDate(aux[i].Points)
		indexes[i] = idx
		rep.Merge(r)
	}

	rows := make([]model.AlignedRow, 0, len(points))
	for i := range points {
		if i > 0 && points[i].Date == points[i-1].Date {
			rep.DuplicateDates++
			continue
		}
		row := model.AlignedRow{PricePoint: points[i], Slots: make([]model.AuxiliarySlot, len(aux))}
		for j := range aux {
			slot := model.AuxiliarySlot{Source: aux[j].Source, Unit: aux[j].Unit}
			if fields, ok := indexes[j][points[i].Date]; ok {
				slot.Found = true
				slot.Fields = fields
			}
			row.Slots[j] = slot
		}
		rows = append(rows, row)
	}
	return rows, rep
}

// indexByDate 按日期字符串建索引；同一日期出现多次时保留第一条。
func indexByDate(points []model.AuxiliaryPoint) (map[string]map[string]any, Report) {
	var rep Report
	idx := make(map[string]map[string]any, len(points))
	for _, p := range points {
		d := strings.TrimSpace(p.Date)
		if d == "" {
			rep.DroppedAuxiliary++
			continue
		}
		if _, dup := idx[d]; dup {
			rep.DuplicateDates++
			continue
		}
		fields := p.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		idx[d] = fields
	}
	return idx, rep
}
