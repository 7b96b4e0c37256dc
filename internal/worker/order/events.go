package order

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/messaging"
	"github.com/solveprint/printshop/internal/queue"
	ordersvc "github.com/solveprint/printshop/internal/service/order"
	"github.com/solveprint/printshop/internal/worker"
)

var workerTracer = otel.Tracer("github.com/solveprint/printshop/worker/order")

var errMissingOrderID = errors.New("order event has no order id")

// QueueSync is the owner queue the handler keeps current.
type QueueSync interface {
	Notify()
	Cache() *queue.Cache
}

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			func(logger *zap.Logger, cfg config.Config, w *queue.Watcher) worker.HandlerRegistration {
				return NewOrderEventHandler(logger, cfg, w)
			},
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewOrderEventHandler decodes order change events, applies them to the cached
// queue and asks the watcher to refresh. Malformed events are logged and
// acknowledged so they do not block the partition.
func NewOrderEventHandler(logger *zap.Logger, cfg config.Config, q QueueSync) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var event ordersvc.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil || event.OrderID == "" {
			if err == nil {
				err = errMissingOrderID
			}
			logger.Warn("skipping malformed order event", zap.Int64("offset", msg.Offset), zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}

		span.SetAttributes(
			attribute.String("order.id", event.OrderID),
			attribute.String("order.event", string(event.Type)),
		)
		logger.Info("order event processed",
			zap.String("type", string(event.Type)),
			zap.String("order_id", event.OrderID),
			zap.String("status", string(event.Status)),
			zap.String("payment_status", string(event.PaymentStatus)),
		)
		applyEvent(q.Cache(), event)
		q.Notify()

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}

// applyEvent updates the cached copy of the order. Orders not cached yet are
// left to the reconcile, and events older than the cached copy are ignored.
func applyEvent(cache *queue.Cache, event ordersvc.OrderEvent) {
	if event.Type == ordersvc.EventDeleted {
		cache.Remove(event.OrderID)
		return
	}
	cached, ok := cache.Get(event.OrderID)
	if !ok || event.OccurredAt.Before(cached.UpdatedAt) {
		return
	}
	cached.Status = event.Status
	cached.PaymentStatus = event.PaymentStatus
	cached.UpdatedAt = event.OccurredAt
	cache.Upsert(cached)
}
