// Package metrics provides OpenTelemetry instrumentation exported in the
// Prometheus format, either over HTTP (daemon) or as a textfile (one-shot runs).
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/aravindh-murugesan/endpointsentry-go/internal/retry"
)

const meterName = "github.com/aravindh-murugesan/endpointsentry-go"

var _ retry.Observer = (*Metrics)(nil)

// Metrics owns a private Prometheus registry and the instruments recorded
// by the deploy and sweep workflows. It implements retry.Observer.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	attempts        metric.Int64Counter
	attemptDuration metric.Float64Histogram
	cleanups        metric.Int64Counter
	runs            metric.Int64Counter
	swept           metric.Int64Counter
}

// New initializes the meter provider with a Prometheus exporter bound to a
// fresh registry, so several instances (and tests) never collide.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	m := &Metrics{registry: registry, provider: provider}

	if m.attempts, err = meter.Int64Counter("endpointsentry.create.attempts",
		metric.WithDescription("Resource creation attempts by kind and outcome")); err != nil {
		return nil, err
	}
	if m.attemptDuration, err = meter.Float64Histogram("endpointsentry.create.attempt.duration",
		metric.WithDescription("Duration of a single creation attempt"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.cleanups, err = meter.Int64Counter("endpointsentry.cleanups",
		metric.WithDescription("Best-effort deletes of abandoned resources by kind and result")); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("endpointsentry.deploy.runs",
		metric.WithDescription("Deploy runs by outcome")); err != nil {
		return nil, err
	}
	if m.swept, err = meter.Int64Counter("endpointsentry.sweep.endpoints",
		metric.WithDescription("Endpoints handled by the sweep by action")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) AttemptFinished(a retry.Attempt) {
	attrs := metric.WithAttributes(
		attribute.String("kind", string(a.Kind)),
		attribute.String("outcome", a.Outcome.String()),
	)
	m.attempts.Add(context.Background(), 1, attrs)
	m.attemptDuration.Record(context.Background(), a.Duration.Seconds(), attrs)
}

func (m *Metrics) CleanupFinished(c retry.Cleanup) {
	result := "success"
	if c.Err != nil {
		result = "error"
	}
	m.cleanups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", string(c.Kind)),
		attribute.String("result", result),
	))
}

// RecordRun counts one deploy run. outcome is "success" or "failure".
func (m *Metrics) RecordRun(ctx context.Context, outcome string) {
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSweep counts n endpoints handled by the sweep with the given action
// ("deleted", "would_delete", "failed", "skipped").
func (m *Metrics) RecordSweep(ctx context.Context, action string, n int) {
	if n <= 0 {
		return
	}
	m.swept.Add(ctx, int64(n), metric.WithAttributes(attribute.String("action", action)))
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the current metrics atomically to path in the
// Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
