package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "medchat"

// InitLogger installs a JSON slog logger writing to stdout and, when logDir is set,
// to a rotating file. The returned closer flushes the file.
func InitLogger(logDir, level string) (*slog.Logger, io.Closer, error) {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		file := rotatingFile(logDir, "medchat.log")
		out = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger, closer, nil
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitTelemetry installs OpenTelemetry tracer and meter providers exporting into
// rotated files under logDir. The returned func shuts both down.
func InitTelemetry(ctx context.Context, logDir string) (func(), error) {
	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	traceFile := rotatingFile(logDir, "medchat_traces.log")
	metricsFile := rotatingFile(logDir, "medchat_metrics.log")
	closeFiles := func() {
		traceFile.Close()
		metricsFile.Close()
	}

	traceExporter, err := newTraceExporter(traceFile)
	if err != nil {
		closeFiles()
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	metricExporter, err := newMetricExporter(metricsFile)
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = traceExporter.Shutdown(shutdownCtx)
		closeFiles()
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("shutdown tracer provider", "error", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			slog.Error("shutdown meter provider", "error", err)
		}
		closeFiles()
	}
	return shutdown, nil
}

// exporter constructors, swapped in tests
var (
	newTraceExporter = func(w io.Writer) (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithWriter(w))
	}
	newMetricExporter = func(w io.Writer) (sdkmetric.Exporter, error) {
		return stdoutmetric.New(stdoutmetric.WithWriter(w))
	}
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func rotatingFile(dir, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}
