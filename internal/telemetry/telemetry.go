// Package telemetry installs the OpenTelemetry meter provider that the
// inference instrumentation reports to.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// DefaultExportInterval is how often metrics are pushed to the collector.
const DefaultExportInterval = 10 * time.Second

// Options configures the meter provider.
type Options struct {
	// Endpoint is the OTLP gRPC collector, e.g. localhost:4317 or
	// https://collector:4317. Empty disables export.
	Endpoint       string
	Insecure       bool
	ServiceName    string
	ExportInterval time.Duration
}

// Metrics holds the meter provider and its shutdown function.
type Metrics struct {
	MeterProvider *metric.MeterProvider
	Exporting     bool
	Shutdown      func(context.Context) error
}

// NewMetrics creates a meter provider exporting over OTLP gRPC. Without an
// endpoint the provider has no reader and records nothing.
func NewMetrics(ctx context.Context, opts Options) (*Metrics, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		mp := metric.NewMeterProvider()
		return &Metrics{MeterProvider: mp, Shutdown: mp.Shutdown}, nil
	}

	// OTLP gRPC dials host:port; any path is dropped.
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: %w", opts.Endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: missing host", opts.Endpoint)
	}

	exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(u.Host)}
	if opts.Insecure || u.Scheme != "https" {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "livecoach"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	interval := opts.ExportInterval
	if interval <= 0 {
		interval = DefaultExportInterval
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))),
	)
	return &Metrics{MeterProvider: mp, Exporting: true, Shutdown: mp.Shutdown}, nil
}

// SetGlobal makes m the global meter provider.
func (m *Metrics) SetGlobal() {
	otel.SetMeterProvider(m.MeterProvider)
}
