// Package worker 负责取数编排：Loader 并发拉取并汇合后对齐，Generations 丢弃过期请求，Pool 批量处理多只标的。
package worker

import (
	"context"
	"sync"

	"klinechart/internal/reconcile"
	"klinechart/internal/trace"
)

const defaultConcurrency = 4

// Outcome 单只标的的处理结果，Err 非空时 Result 为 nil。
type Outcome struct {
	Request Request
	Result  *reconcile.Result
	Err     error
}

// Config 控制并发数。
type Config struct {
	Concurrency int
}

func DefaultConfig() Config {
	return Config{Concurrency: defaultConcurrency}
}

// Pool 从 jobs 取请求，经 Loader 取数对齐后写入 results。
type Pool struct {
	cfg    Config
	loader *Loader
	jobs   <-chan Request
	out    chan<- Outcome
}

func NewPool(cfg Config, loader *Loader, jobs <-chan Request, results chan<- Outcome) *Pool {
	if loader == nil {
		panic("worker: loader must not be nil")
	}
	if jobs == nil || results == nil {
		panic("worker: jobs and results channels must not be nil")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Pool{cfg: cfg, loader: loader, jobs: jobs, out: results}
}

// Run 阻塞到 jobs 关闭或 ctx 结束，返回前关闭 results。
func (p *Pool) Run(ctx context.Context) {
	trace.Log(ctx, "worker: Pool.Run start concurrency=%d", p.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(ctx)
		}()
	}
	wg.Wait()
	close(p.out)
	trace.Log(ctx, "worker: Pool.Run done")
}

func (p *Pool) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-p.jobs:
			if !ok {
				return
			}
			// 批量任务不绑定视图，不会被取代
			res, err := p.loader.Load(ctx, Token{}, req)
			select {
			case <-ctx.Done():
				return
			case p.out <- Outcome{Request: req, Result: res, Err: err}:
			}
		}
	}
}

// Batch 用 Pool 处理一组请求，按输入顺序返回；ctx 结束时未处理的请求 Err 为 ctx.Err()。
func Batch(ctx context.Context, cfg Config, loader *Loader, reqs []Request) []Outcome {
	jobs := make(chan Request)
	results := make(chan Outcome, len(reqs))
	pool := NewPool(cfg, loader, jobs, results)
	go pool.Run(ctx)

	go func() {
		defer close(jobs)
		for i := range reqs {
			req := reqs[i]
			req.Seq = i
			select {
			case <-ctx.Done():
				trace.Log(ctx, "worker: ctx done, produced %d jobs", i)
				return
			case jobs <- req:
			}
		}
	}()

	out := make([]Outcome, len(reqs))
	done := make([]bool, len(reqs))
	for o := range results {
		if o.Request.Seq >= 0 && o.Request.Seq < len(out) {
			out[o.Request.Seq], done[o.Request.Seq] = o, true
		}
	}
	for i := range out {
		if done[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out[i] = Outcome{Request: reqs[i], Err: err}
	}
	return out
}
