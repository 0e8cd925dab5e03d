// Package observability sets up the process-wide logging pipeline: a console
// slog handler on stderr, optionally fanned out to an OpenTelemetry log
// exporter for machine-readable shipping.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// loggerName identifies this process in exported log records.
const loggerName = "claude-usage-monitor"

// Instrument installs the default slog logger. format is "text" or "json";
// exporter is "none", "stdout", "otlp-http" or "otlp-grpc". The returned
// shutdown function flushes any buffered export pipeline and must be called
// before exit; it is non-nil even when no exporter is configured.
func Instrument(level slog.Level, format, exporter string) (func(context.Context) error, error) {
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	switch format {
	case "json":
		console = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		console = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}

	if exporter == "" || exporter == "none" {
		slog.SetDefault(slog.New(console))
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(context.Background(), exporter)
	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exp), minSeverity(level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))

	otelHandler := otelslog.NewHandler(loggerName, otelslog.WithLoggerProvider(provider))
	slog.SetDefault(slog.New(newMultiHandler(console, otelHandler)))

	return provider.Shutdown, nil
}

func newExporter(ctx context.Context, kind string) (sdklog.Exporter, error) {
	switch kind {
	case "stdout":
		return stdoutlog.New()
	case "otlp-http":
		// Endpoint and headers come from the standard OTEL_EXPORTER_OTLP_*
		// environment variables.
		return otlploghttp.New(ctx)
	case "otlp-grpc":
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported log exporter: %s", kind)
	}
}

// minSeverity maps a slog level onto the minimum OTel severity to export.
func minSeverity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}

// multiHandler fans log records out to several handlers. A record is passed
// to every handler whose level admits it.
type multiHandler struct {
	handlers []slog.Handler
}

var _ slog.Handler = (*multiHandler)(nil)

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
