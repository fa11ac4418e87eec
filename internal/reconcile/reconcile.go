// Package reconcile 对齐 K 线主序列与辅助序列、派生比较涨跌幅，并组装多子图图表规格。
// 整条流水线是纯计算：不做 I/O，不持有跨调用状态，同样的输入总得到同样的输出。
package reconcile

import (
	"errors"
	"fmt"

	"klinechart/internal/model"
)

// ErrMissingPrimary 未提供主序列，属于调用方编程错误。
var ErrMissingPrimary = errors.New("reconcile: primary series not provided")

// Result 一次对齐的产物。
type Result struct {
	Rows   []model.DerivedRow `json:"-"`
	Chart  model.ChartSpec    `json:"chart"`
	Report Report             `json:"report"`
}

// Reconcile 依次执行 Align → Derive → Assemble。
// 数据形态问题（缺日期、数值无法解析）只计入 Report；仅主序列缺失或选项非法时返回错误。
func Reconcile(primary *model.PrimarySeries, aux []model.AuxiliarySeries, opts Options) (*Result, error) {
	if primary == nil {
		return nil, ErrMissingPrimary
	}
	aligned, rep := Align(primary.Points, aux)
	rows := Derive(aligned, primary.Code, primary.Kind)
	chart, err := Assemble(primary.Code, rows, opts)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", primary.Code, err)
	}
	return &Result{Rows: rows, Chart: chart, Report: rep}, nil
}
