package logger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	runIDKey     ctxKey = "run_id"
	loopKey      ctxKey = "loop"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRun tags ctx for one pass of a background loop (a dispatch pass, an
// hourly refresh) so its log lines can be correlated.
func WithRun(ctx context.Context, loop string) context.Context {
	ctx = context.WithValue(ctx, loopKey, loop)
	return context.WithValue(ctx, runIDKey, uuid.NewString())
}

func RunIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey).(string); ok {
		return v
	}
	return ""
}

// FromCtx returns logger with request_id or run fields automatically added
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if runID := RunIDFrom(ctx); runID != "" {
		loop, _ := ctx.Value(loopKey).(string)
		l = l.With(zap.String("loop", loop), zap.String("run_id", runID))
	}
	return l
}
