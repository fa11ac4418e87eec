// Package server 以 HTTP 方式提供图表：JSON 规格与 HTML 页面。
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"klinechart/internal/api"
	"klinechart/internal/model"
	"klinechart/internal/reconcile"
	"klinechart/internal/render"
	"klinechart/internal/trace"
	"klinechart/internal/worker"
)

const (
	defaultAddr     = ":8080"
	shutdownTimeout = 5 * time.Second
	readTimeout     = 10 * time.Second
	// 单次请求含多路上游拉取，留足余量
	writeTimeout = 60 * time.Second
)

// errBadQuery 查询参数无法解析。
var errBadQuery = errors.New("server: bad query")

type Config struct {
	Addr  string
	Title string // 为空时用代码作标题
	Limit int    // 0 表示使用数据源默认条数
	Style render.Style
}

// Server 持有 Loader 与代次表；带 view 参数的请求同一视图只保留最新一次。
type Server struct {
	cfg    Config
	loader *worker.Loader
	gens   *worker.Generations
	router *gin.Engine
}

// New gens 应与 loader 内部使用的是同一个。
func New(cfg Config, loader *worker.Loader, gens *worker.Generations) *Server {
	if loader == nil {
		panic("server: loader must not be nil")
	}
	if gens == nil {
		gens = worker.NewGenerations()
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.Style == (render.Style{}) {
		cfg.Style = render.DefaultStyle()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{cfg: cfg, loader: loader, gens: gens, router: router}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/chart/:code", s.handleChartHTML)
	g := s.router.Group("/api")
	g.GET("/chart/:code", s.handleChartJSON)
}

// Handler 供测试或外部复用。
func (s *Server) Handler() http.Handler { return s.router }

// Run 阻塞到 ctx 结束后优雅关闭。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		trace.Log(ctx, "server: listening on %s", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		trace.Log(ctx, "server: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleChartJSON(c *gin.Context) {
	res, ok := s.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"chart": res.Chart, "report": res.Report})
}

func (s *Server) handleChartHTML(c *gin.Context) {
	res, ok := s.load(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.HTML(&buf, res.Chart, s.cfg.Style); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// load 解析参数并取数；失败时已写出错误响应。
func (s *Server) load(c *gin.Context) (*reconcile.Result, bool) {
	ctx := trace.WithTraceID(c.Request.Context(), trace.NewTraceID())
	req, err := s.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	var tok worker.Token
	if view := strings.TrimSpace(c.Query("view")); view != "" {
		tok = s.gens.Next(view)
	}
	trace.Log(ctx, "server: %s %s view=%s gen=%d", c.Request.Method, c.Request.URL.Path, tok.View, tok.Gen)
	res, err := s.loader.Load(ctx, tok, req)
	if err != nil {
		status := statusFor(err)
		trace.Log(ctx, "server: %s status=%d err=%v", req.Code, status, err)
		c.JSON(status, gin.H{"error": err.Error()})
		return nil, false
	}
	return res, true
}

func (s *Server) parseRequest(c *gin.Context) (worker.Request, error) {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		return worker.Request{}, fmt.Errorf("%w: code is required", errBadQuery)
	}
	req := worker.Request{
		Request: api.Request{
			Code:  code,
			Kind:  model.ParseKind(c.Query("kind")),
			Limit: s.cfg.Limit,
		},
		Options: reconcile.Options{
			Title:      s.cfg.Title,
			Indicators: splitList(c.Query("indicators")),
			Overlays:   splitList(c.Query("overlay")),
		},
	}
	if t := strings.TrimSpace(c.Query("title")); t != "" {
		req.Options.Title = t
	}
	if req.Options.Title == "" {
		req.Options.Title = code
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return worker.Request{}, fmt.Errorf("%w: limit=%q", errBadQuery, v)
		}
		req.Limit = n
	}
	for _, p := range splitList(c.Query("ma")) {
		n, err := strconv.Atoi(p)
		if err != nil {
			return worker.Request{}, fmt.Errorf("%w: ma=%q", errBadQuery, p)
		}
		req.Options.MovingAverages = append(req.Options.MovingAverages, n)
	}
	if v := c.Query("amount"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return worker.Request{}, fmt.Errorf("%w: amount=%q", errBadQuery, v)
		}
		req.Options.UseAmount = b
	}
	return req, nil
}

// statusFor 把取数与组装错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, worker.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, reconcile.ErrTooManyIndicators), errors.Is(err, reconcile.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, api.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
