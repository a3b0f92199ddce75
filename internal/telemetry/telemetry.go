// Package telemetry wires OpenTelemetry tracing for licensecheck and holds the
// span helpers shared by the lookup and state packages.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	// ServiceName is reported as service.name on every span.
	ServiceName = "licensecheck"
	// DefaultEnvironment applies when no environment variable names one.
	DefaultEnvironment = "dev"
	// BatchTimeout is the span batch flush interval and the shutdown deadline.
	BatchTimeout = 5 * time.Second
	// BatchSize caps one export batch.
	BatchSize = 512

	certificateEnv = "OTEL_EXPORTER_OTLP_CERTIFICATE"
)

var environmentEnvs = []string{"LICENSECHECK_ENV", "ENVIRONMENT", "ENV"}

// Settings select where and as what spans are exported.
type Settings struct {
	// Endpoint is the OTLP HTTP collector URL. Required.
	Endpoint string
	// ServiceVersion defaults to "dev".
	ServiceVersion string
	// Environment defaults to LICENSECHECK_ENV, ENVIRONMENT or ENV, then DefaultEnvironment.
	Environment string
}

type exporterFunc func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error)

var (
	newExporter exporterFunc = newOTLPExporter

	// consoleOutput receives spans when the OTLP exporter cannot be built.
	consoleOutput io.Writer = os.Stderr
)

// Init installs a global tracer provider exporting to settings.Endpoint and
// returns an idempotent shutdown that flushes pending spans. If the OTLP
// exporter cannot be built, spans are printed to stderr instead.
func Init(ctx context.Context, settings Settings) (func(), error) {
	endpoint := strings.TrimSpace(settings.Endpoint)
	if endpoint == "" {
		return nil, errors.New("telemetry endpoint is required")
	}

	exporter, err := newExporter(ctx, endpoint)
	if err != nil {
		fmt.Fprintf(consoleOutput, "warning: OTLP exporter unavailable for %s (%v); falling back to console exporter\n", endpoint, err)
		exporter = consoleExporter{out: consoleOutput}
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", orDefault(settings.ServiceVersion, "dev")),
		attribute.String("environment", environment(settings.Environment)),
	))
	if err != nil {
		return nil, fmt.Errorf("create telemetry resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(BatchTimeout),
			sdktrace.WithMaxExportBatchSize(BatchSize),
		),
	)
	otel.SetTracerProvider(provider)

	var once sync.Once
	return func() {
		once.Do(func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), BatchTimeout)
			defer cancel()
			if err := provider.Shutdown(flushCtx); err != nil {
				otel.Handle(err)
			}
		})
	}, nil
}

func newOTLPExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	options := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	if path := strings.TrimSpace(os.Getenv(certificateEnv)); path != "" {
		tlsConfig, err := trustedTLSConfig(path)
		if err != nil {
			return nil, err
		}
		options = append(options, otlptracehttp.WithTLSClientConfig(tlsConfig))
	}
	return otlptracehttp.New(ctx, options...)
}

func trustedTLSConfig(path string) (*tls.Config, error) {
	// #nosec G304 -- path comes from OTEL_EXPORTER_OTLP_CERTIFICATE.
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read OTLP certificate %q: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("parse OTLP certificate %q: no certificates found", path)
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: pool}, nil
}

func environment(explicit string) string {
	if value := strings.TrimSpace(explicit); value != "" {
		return strings.ToLower(value)
	}
	for _, key := range environmentEnvs {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return strings.ToLower(value)
		}
	}
	return DefaultEnvironment
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

// consoleExporter prints one line per span plus its event names.
type consoleExporter struct {
	out io.Writer
}

func (e consoleExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.out == nil {
		return nil
	}
	for _, span := range spans {
		elapsed := span.EndTime().Sub(span.StartTime()).Round(time.Millisecond)
		if _, err := fmt.Fprintf(e.out, "[SPAN] %s %s %v\n", span.Name(), elapsed, span.Status().Code); err != nil {
			return err
		}
		for _, event := range span.Events() {
			if _, err := fmt.Fprintf(e.out, "  [EVENT] %s\n", event.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (consoleExporter) Shutdown(context.Context) error {
	return nil
}
