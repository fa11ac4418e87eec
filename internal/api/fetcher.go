package api

import (
	"context"
	"strings"

	"klinechart/internal/model"
)

// 辅助源名称
const (
	SourceKline     = "kline"     // 主 K 线接口内联的涨跌幅
	SourceReference = "reference" // 参考指数日涨跌幅
	SourceReal      = "real"      // 后端实际/比较涨跌幅
	SourceFundFlow  = "fundflow"  // 日资金流
)

// Request 一次取数的标的与条数。
type Request struct {
	Code  string
	Kind  model.InstrumentKind
	Limit int
}

// Fetcher 行情数据源。
type Fetcher interface {
	// Primary 返回主 K 线，以及同一响应里顺带解析出的辅助序列（可为空）。
	Primary(ctx context.Context, req Request) (*model.PrimarySeries, []model.AuxiliarySeries, error)
	// Auxiliary 按源名取一条辅助序列。
	Auxiliary(ctx context.Context, source string, req Request) (model.AuxiliarySeries, error)
	// Sources 可单独拉取的辅助源，按默认优先级排列。
	Sources() []string
	Name() string
}

const defaultLimit = 120

func (r Request) normalized() Request {
	r.Code = strings.TrimSpace(r.Code)
	if r.Limit <= 0 {
		r.Limit = defaultLimit
	}
	if r.Kind == "" {
		r.Kind = model.KindStock
	}
	return r
}
