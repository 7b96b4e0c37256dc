package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/solveprint/printshop/internal/config"
)

func TestNew_PrometheusExportsShopInstruments(t *testing.T) {
	var cfg config.Config
	cfg.Observability.ServiceName = "printshop-test"
	cfg.Observability.EnableMetrics = true
	cfg.Observability.MetricsExporter = "prometheus"
	cfg.Observability.PrometheusPath = "/metrics"

	m, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	assert.True(t, m.MetricsEnabled())
	assert.False(t, m.TracingEnabled())
	require.NotNil(t, m.MetricsHandler())

	value, err := m.MeterProvider().Meter("test").Float64Histogram("printshop.orders.value")
	require.NoError(t, err)
	value.Record(context.Background(), 42, metric.WithAttributes())

	rec := httptest.NewRecorder()
	m.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `printshop_orders_value_bucket{`)
	assert.Contains(t, string(body), `le="50"`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_DisabledProviders(t *testing.T) {
	var cfg config.Config
	cfg.Observability.EnableTracing = true
	cfg.Observability.TraceExporter = "none"
	cfg.Observability.EnableMetrics = true
	cfg.Observability.MetricsExporter = "carrier-pigeon"

	m, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, m.TracingEnabled())
	assert.False(t, m.MetricsEnabled())
	assert.Nil(t, m.MetricsHandler())
}

func TestNewManager_Lifecycle(t *testing.T) {
	var cfg config.Config
	cfg.Observability.EnableTracing = true
	cfg.Observability.TraceExporter = "stdout"
	cfg.Observability.TraceSampleRate = 0.5

	lc := fxtest.NewLifecycle(t)
	m, err := NewManager(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, m.TracingEnabled())

	lc.RequireStart()
	lc.RequireStop()
}
