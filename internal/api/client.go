// Package api 封装行情数据源（东方财富、自建后端），含请求节流、重试与 trace 日志。
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"klinechart/internal/trace"
)

// ErrNoData 上游返回结构正确但没有可用数据。
var ErrNoData = errors.New("api: no data")

// 请求超时与重试
const (
	defaultHTTPTimeout = 5 * time.Second
	maxRetries         = 3
	retryDelay         = 500 * time.Millisecond
	retryDelay429      = 5 * time.Second
)

// 防封：请求间隔、抖动、并发上限
const (
	maxRespLogLen        = 1200
	defaultRequestGap    = 200 * time.Millisecond
	defaultRequestJitter = 150 * time.Millisecond
	defaultMaxConcurrent = 4
	maxConcurrentCap     = 20
)

// 请求头（模拟浏览器）
const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"
)

// Pacing 控制请求节奏。零值表示不限速，MaxConcurrent<=0 取默认。
type Pacing struct {
	Gap           time.Duration
	Jitter        time.Duration
	MaxConcurrent int
}

// DefaultPacing 东方财富公开接口的保守节奏。
func DefaultPacing() Pacing {
	return Pacing{Gap: defaultRequestGap, Jitter: defaultRequestJitter, MaxConcurrent: defaultMaxConcurrent}
}

// Client 带节流、并发上限与重试的 HTTP 客户端，数据源共用。
type Client struct {
	HTTPClient *http.Client
	Referer    string

	pacing  Pacing
	sem     chan struct{}
	lastMu  sync.Mutex
	lastReq time.Time
}

func NewClient(timeout time.Duration, pacing Pacing) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	n := pacing.MaxConcurrent
	if n <= 0 {
		n = defaultMaxConcurrent
	}
	if n > maxConcurrentCap {
		n = maxConcurrentCap
	}
	pacing.MaxConcurrent = n
	return &Client{
		HTTPClient: &http.Client{Timeout: timeout},
		pacing:     pacing,
		sem:        make(chan struct{}, n),
	}
}

func (c *Client) paceRequest(ctx context.Context) {
	gap, jitter := c.pacing.Gap, c.pacing.Jitter
	if gap <= 0 && jitter <= 0 {
		return
	}
	c.lastMu.Lock()
	elapsed := time.Since(c.lastReq)
	c.lastMu.Unlock()
	d := gap - elapsed
	if jitter > 0 {
		d += time.Duration(rand.Int63n(int64(jitter) + 1))
	}
	if d > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
	c.lastMu.Lock()
	c.lastReq = time.Now()
	c.lastMu.Unlock()
}

// get 发 GET 并返回完整响应体；非 200 与网络错误重试，429 退避更久。
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("api client is nil")
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	var lastErr error
	var lastStatus int
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryDelay
			if lastStatus == http.StatusTooManyRequests {
				backoff = retryDelay429
				trace.Log(ctx, "api: 429 限流，等待 %s 后重试", backoff)
			} else {
				trace.Log(ctx, "api: retry %d/%d %s", attempt, maxRetries, url)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		c.paceRequest(ctx)
		body, status, err := c.do(ctx, client, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			lastStatus = status
			continue
		}
		return body, nil
	}
	trace.Log(ctx, "api: get fail url=%s err=%v", url, lastErr)
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, client *http.Client, url string) ([]byte, int, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
	defer func() { <-c.sem }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	if c.Referer != "" {
		req.Header.Set("Referer", c.Referer)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", acceptLanguage)
	trace.Log(ctx, "api: req GET %s", url)
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	trace.Log(ctx, "api: resp status=%d len=%d body=%s", resp.StatusCode, len(body), truncateForLog(body))
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("http %d", resp.StatusCode)
	}
	return bytes.TrimSpace(body), resp.StatusCode, nil
}

func truncateForLog(b []byte) string {
	s := string(b)
	if len(b) > maxRespLogLen {
		s = s[:maxRespLogLen] + "..."
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", " "), "\n", " ")
}
