package logctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/otel/trace"
)

const logFilePerm = 0o644

// TraceHandler decorates records with the trace_id and span_id of the span
// found in the record's context.
type TraceHandler struct {
	inner slog.Handler
}

// NewTraceHandler wraps h. It panics when h is nil.
func NewTraceHandler(h slog.Handler) *TraceHandler {
	if h == nil {
		panic("logctx: NewTraceHandler called with nil handler")
	}

	return &TraceHandler{inner: h}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	return h.inner.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{inner: h.inner.WithGroup(name)}
}

// NewLogger builds a JSON logger writing to w and, when logFile is set, to
// that file too. If the file cannot be opened the logger still writes to w
// and the open error is returned alongside it. The returned closer releases
// the file and is never nil.
func NewLogger(w io.Writer, logFile string, level slog.Level) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewJSONHandler(w, opts)}

	var (
		closer  io.Closer = nopCloser{}
		openErr error
	)

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err != nil {
			openErr = fmt.Errorf("failed to open log file %s: %w", logFile, err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
			closer = f
		}
	}

	logger := slog.New(NewTraceHandler(slogmulti.Fanout(handlers...)))

	return logger, closer, openErr
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
