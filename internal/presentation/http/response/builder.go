// Package response renders the JSON envelope shared by every print shop
// endpoint.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solveprint/printshop/pkg/errorbank"
)

type successEnvelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type errorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success bool           `json:"success"`
	Error   errorBody      `json:"error"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Builder accumulates a response and writes it once with Build.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered instead of the data.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Build writes the envelope. Request and trace ids are added to meta so a
// customer report can be matched to logs.
func (b *Builder) Build() error {
	if id := b.ctx.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		b.WithMeta("request_id", id)
	}
	if sc := trace.SpanContextFromContext(b.ctx.Request().Context()); sc.HasTraceID() {
		b.WithMeta("trace_id", sc.TraceID().String())
	}
	if b.err != nil {
		return b.buildError()
	}
	return b.ctx.JSON(b.status, successEnvelope{Success: true, Data: b.data, Meta: b.meta})
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < http.StatusBadRequest {
		status = appErr.StatusCode()
	}

	body := errorBody{
		Kind:    string(appErr.Kind()),
		Message: appErr.Message(),
		Details: appErr.Details(),
	}

	span := trace.SpanFromContext(b.ctx.Request().Context())
	span.SetAttributes(attribute.String("error.kind", body.Kind))
	if status >= http.StatusInternalServerError {
		span.RecordError(b.err)
		span.SetStatus(codes.Error, body.Message)
		// Internal causes stay in logs and traces.
		body.Details = nil
	}

	return b.ctx.JSON(status, errorEnvelope{Success: false, Error: body, Meta: b.meta})
}
