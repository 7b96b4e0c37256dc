package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/solveprint/printshop/pkg/errorbank"
)

type envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta"`
	Error   struct {
		Kind    string         `json:"kind"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func run(t *testing.T, fn func(b *Builder) error) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.Response().Header().Set(echo.HeaderXRequestID, "req-1")
	require.NoError(t, fn(New(c)))

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestBuilder_Success(t *testing.T) {
	rec, env := run(t, func(b *Builder) error {
		return b.WithStatus(http.StatusCreated).WithData(map[string]int{"n": 1}).WithMeta("count", 1).Build()
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "req-1", env.Meta["request_id"])
}

func TestBuilder_AppError(t *testing.T) {
	rec, env := run(t, func(b *Builder) error {
		return b.WithError(errorbank.Conflict("cannot move backward", errorbank.WithDetail("current_status", "ready"))).Build()
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "conflict", env.Error.Kind)
	assert.Equal(t, "ready", env.Error.Details["current_status"])
}

func TestBuilder_UnexpectedErrorIsGeneric(t *testing.T) {
	rec, env := run(t, func(b *Builder) error {
		return b.WithError(errors.New("pq: connection refused")).Build()
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "action failed, please retry", env.Error.Message)
	assert.Nil(t, env.Error.Details)
}

func TestBuilder_TraceID(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xaa, 0xbb},
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
	})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	rec := httptest.NewRecorder()

	require.NoError(t, New(e.NewContext(req, rec)).WithData("ok").Build())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, sc.TraceID().String(), env.Meta["trace_id"])
}
