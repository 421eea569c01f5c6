package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/cyw0ng95/aggoracle/internal/log"
)

// Config holds OpenTelemetry tracing configuration.
type Config struct {
	Exporter       string // "none", "stdout"
	ServiceVersion string
	// Writer receives stdout spans; nil means os.Stdout.
	Writer io.Writer
}

// Setup initialises a TracerProvider based on cfg. The caller must call the
// returned shutdown function on exit.
//
// When Exporter is "none" (the default) a noop provider is returned.
func Setup(cfg Config) (trace.TracerProvider, func(), error) {
	switch strings.ToLower(cfg.Exporter) {
	case "", "none":
		return noop.NewTracerProvider(), func() {}, nil
	case "stdout":
	default:
		return nil, nil, fmt.Errorf("unknown otel exporter: %q (expected none or stdout)", cfg.Exporter)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("aggoracle"),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create otel resource: %w", err)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	shutdown := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("otel tracer provider shutdown error", zap.Error(err))
		}
	}

	log.Info("otel tracing enabled", zap.String("exporter", cfg.Exporter))
	return tp, shutdown, nil
}
