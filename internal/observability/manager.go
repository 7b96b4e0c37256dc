// Package observability owns the OpenTelemetry tracer and meter providers of
// the print shop and the Prometheus scrape handler.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/config"
)

const (
	serviceVersion  = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

// Module exposes the observability manager to Fx.
var Module = fx.Provide(NewManager)

// Manager holds the providers installed as otel globals while the app runs.
type Manager struct {
	cfg    config.Observability
	logger *zap.Logger

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metricsHandler http.Handler
}

// NewManager builds providers from configuration and installs them on start.
func NewManager(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	mgr, err := New(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			mgr.Install()
			return nil
		},
		OnStop: mgr.Shutdown,
	})
	return mgr, nil
}

// New builds the providers without touching otel globals.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res, err := shopResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{cfg: cfg.Observability, logger: logger}
	if cfg.Observability.EnableTracing {
		if m.tracerProvider, err = newTracerProvider(ctx, cfg.Observability, res, logger); err != nil {
			return nil, err
		}
	}
	if cfg.Observability.EnableMetrics {
		if m.meterProvider, m.metricsHandler, err = newMeterProvider(cfg.Observability, res, logger); err != nil {
			return nil, errors.Join(err, m.Shutdown(ctx))
		}
	}
	return m, nil
}

func shopResource(ctx context.Context, cfg config.Config) (*sdkresource.Resource, error) {
	return sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			semconv.ServiceName(cfg.Observability.ServiceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("service.environment", cfg.Observability.Environment),
			attribute.String("printshop.owner_id", cfg.Shop.OwnerID),
		),
	)
}

// Install registers the providers and the W3C propagators as otel globals.
func (m *Manager) Install() {
	if m.tracerProvider != nil {
		otel.SetTracerProvider(m.tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	if m.meterProvider != nil {
		otel.SetMeterProvider(m.meterProvider)
	}
}

// Shutdown flushes and stops both providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var err error
	if m.tracerProvider != nil {
		err = errors.Join(err, m.tracerProvider.Shutdown(ctx))
	}
	if m.meterProvider != nil {
		err = errors.Join(err, m.meterProvider.Shutdown(ctx))
	}
	return err
}

// TracingEnabled reports whether spans are exported.
func (m *Manager) TracingEnabled() bool {
	return m.tracerProvider != nil
}

// MetricsEnabled reports whether instruments are exported.
func (m *Manager) MetricsEnabled() bool {
	return m.meterProvider != nil
}

// MetricsHandler serves the Prometheus registry; nil unless the prometheus
// exporter is configured.
func (m *Manager) MetricsHandler() http.Handler {
	return m.metricsHandler
}

// PrometheusPath returns the configured scrape path.
func (m *Manager) PrometheusPath() string {
	return m.cfg.PrometheusPath
}

// MeterProvider returns the SDK meter provider, or nil when metrics are off.
func (m *Manager) MeterProvider() *sdkmetric.MeterProvider {
	return m.meterProvider
}
