package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/messaging"
)

func newEngine(t *testing.T, regs ...HandlerRegistration) *Engine {
	t.Helper()
	var cfg config.Config
	cfg.Messaging.Kafka.Topic = "orders"
	return NewEngine(Params{Logger: zaptest.NewLogger(t), Config: cfg, Registrations: regs})
}

func TestEngine_DispatchRoutesByEventType(t *testing.T) {
	var got []string
	record := func(name string) messaging.Handler {
		return func(context.Context, messaging.Message) error {
			got = append(got, name)
			return nil
		}
	}
	e := newEngine(t,
		HandlerRegistration{Topic: "orders", Handler: record("any")},
		HandlerRegistration{Topic: "orders", EventType: "order.paid", Handler: record("paid")},
		HandlerRegistration{Topic: "", Handler: record("ignored")},
	)
	ctx := context.Background()

	require.NoError(t, e.Dispatch(ctx, messaging.Message{Topic: "orders", Headers: map[string]string{messaging.EventTypeHeader: "order.paid"}}))
	require.NoError(t, e.Dispatch(ctx, messaging.Message{Topic: "orders", Headers: map[string]string{messaging.EventTypeHeader: "order.created"}}))
	require.NoError(t, e.Dispatch(ctx, messaging.Message{}))
	require.NoError(t, e.Dispatch(ctx, messaging.Message{Topic: "unknown"}))

	assert.Equal(t, []string{"paid", "any", "any"}, got)
}

func TestEngine_DispatchRecoversPanics(t *testing.T) {
	e := newEngine(t, HandlerRegistration{Topic: "orders", Handler: func(context.Context, messaging.Message) error {
		panic("boom")
	}})
	err := e.Dispatch(context.Background(), messaging.Message{Topic: "orders"})
	assert.ErrorContains(t, err, "boom")
}

func TestEngine_StartDisabled(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.start(context.Background()))
	require.NoError(t, e.stop(context.Background()))
}
