package worker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"klinechart/internal/api"
	"klinechart/internal/model"
	"klinechart/internal/reconcile"
	"klinechart/internal/trace"
)

// ErrSuperseded 取数期间同一视图发起了更新的请求，本次结果丢弃。
var ErrSuperseded = errors.New("worker: superseded by a newer request")

// Request 一次渲染所需的取数参数与组装选项。
type Request struct {
	api.Request
	Options reconcile.Options
	Seq     int // 调用方序号，原样带回 Outcome
}

// Loader 并发拉取主序列与各辅助源，全部返回后再对齐组装。
type Loader struct {
	fetcher api.Fetcher
	gens    *Generations
	sources []string
}

// NewLoader sources 为空时使用数据源的默认辅助源；gens 为 nil 时不做代次检查。
func NewLoader(f api.Fetcher, gens *Generations, sources ...string) *Loader {
	if f == nil {
		panic("worker: fetcher must not be nil")
	}
	if len(sources) == 0 {
		sources = f.Sources()
	}
	return &Loader{fetcher: f, gens: gens, sources: sources}
}

// Load 主序列失败返回错误；辅助源失败只记日志，该源视为无数据。
// 汇合后若 tok 已过期返回 ErrSuperseded，不做对齐。
func (l *Loader) Load(ctx context.Context, tok Token, req Request) (*reconcile.Result, error) {
	ctx = trace.Ensure(ctx)
	var (
		primary *model.PrimarySeries
		inline  []model.AuxiliarySeries
		aux     = make([]model.AuxiliarySeries, len(l.sources))
		got     = make([]bool, len(l.sources))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, in, err := l.fetcher.Primary(gctx, req.Request)
		if err != nil {
			return fmt.Errorf("fetch primary %s: %w", req.Code, err)
		}
		primary, inline = p, in
		return nil
	})
	for i, src := range l.sources {
		g.Go(func() error {
			s, err := l.fetcher.Auxiliary(gctx, src, req.Request)
			if err != nil {
				trace.Warn(gctx, "worker: %s 辅助源 %s 失败，按无数据处理 err=%v", req.Code, src, err)
				return nil
			}
			aux[i], got[i] = s, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		trace.Log(ctx, "worker: load %s err=%v", req.Code, err)
		return nil, err
	}
	if l.gens != nil && !l.gens.Current(tok) {
		trace.Log(ctx, "worker: %s 视图 %s 第 %d 代已过期，丢弃结果", req.Code, tok.View, tok.Gen)
		return nil, ErrSuperseded
	}

	all := make([]model.AuxiliarySeries, 0, len(inline)+len(aux))
	all = append(all, inline...)
	for i := range aux {
		if got[i] {
			all = append(all, aux[i])
		}
	}
	res, err := reconcile.Reconcile(primary, all, req.Options)
	if err != nil {
		return nil, err
	}
	if n := res.Report.Total(); n > 0 {
		trace.Warn(ctx, "worker: %s 数据问题 %d 处 %+v", req.Code, n, res.Report)
	}
	trace.Log(ctx, "worker: %s rows=%d panels=%d sources=%d", req.Code, len(res.Rows), res.Chart.Layout.PanelCount, len(all))
	return res, nil
}
