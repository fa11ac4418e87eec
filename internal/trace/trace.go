// Package trace 在 context 中传递 trace ID，Log 时每行带 TRACE=id 便于排查。
package trace

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type ctxKey int

const traceIDKey ctxKey = 0

// 短 ID 长度：取 uuid 去掉连字符后的前 8 位
const shortIDLen = 8

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:shortIDLen]
}

// Ensure ctx 已带 trace ID 时原样返回，否则补一个新的。
func Ensure(ctx context.Context) context.Context {
	if TraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, NewTraceID())
}

var logMu sync.Mutex

// Log 打日志，每行开头固定为 TRACE=id，便于一眼看到 trace 并 grep
func Log(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, "", format, args...)
}

// Warn 同 Log，带 WARN 标记；用于被跳过但不致命的数据问题。
func Warn(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, "WARN ", format, args...)
}

func emit(ctx context.Context, level, format string, args ...interface{}) {
	id := TraceID(ctx)
	if id == "" {
		id = "-"
	}
	msg := fmt.Sprintf(format, args...)
	logMu.Lock()
	log.Printf("TRACE=%s | %s%s", id, level, msg)
	logMu.Unlock()
}
