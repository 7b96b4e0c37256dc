package order

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
	"github.com/solveprint/printshop/internal/messaging"
)

// EventType names an order change.
type EventType string

const (
	EventCreated       EventType = "order.created"
	EventPaid          EventType = "order.paid"
	EventStatusChanged EventType = "order.status_changed"
	EventDeleted       EventType = "order.deleted"
)

// OrderEvent is published whenever an order changes.
type OrderEvent struct {
	Type          EventType               `json:"type"`
	OrderID       string                  `json:"order_id"`
	CustomerID    string                  `json:"customer_id"`
	PickupCode    string                  `json:"pickup_code"`
	Status        lifecycle.Status        `json:"status"`
	PaymentStatus lifecycle.PaymentStatus `json:"payment_status"`
	Amount        float64                 `json:"amount"`
	OccurredAt    time.Time               `json:"occurred_at"`
}

func newEvent(t EventType, o *entity.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          t,
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		PickupCode:    o.PickupCode,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Amount:        o.EstimatedCost,
		OccurredAt:    at.UTC(),
	}
}

// emit publishes the change and refreshes the owner queue. Publish failures
// are logged; the change itself is already durable.
func (s *Service) emit(ctx context.Context, t EventType, orders ...*entity.Order) {
	defer s.notifyQueue()
	now := s.now()

	for _, o := range orders {
		s.applyToQueue(t, o)
		if t == EventStatusChanged && s.transitions != nil {
			s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(o.Status))))
		}
		if !s.publish || s.publisher == nil {
			continue
		}
		payload, err := json.Marshal(newEvent(t, o, now))
		if err != nil {
			s.logger.Error("marshal order event", zap.String("type", string(t)), zap.Error(err))
			continue
		}
		headers := map[string]string{messaging.EventTypeHeader: string(t)}
		if err := s.publisher.Publish(ctx, []byte(o.ID), payload, headers); err != nil {
			s.logger.Warn("publish order event failed",
				zap.String("type", string(t)),
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}
}

// applyToQueue reflects a committed change in the owner queue right away. The
// following reconcile remains the source of truth.
func (s *Service) applyToQueue(t EventType, o *entity.Order) {
	if s.queue == nil {
		return
	}
	cache := s.queue.Cache()
	if t == EventDeleted {
		cache.Remove(o.ID)
		return
	}
	cache.Upsert(*o)
}
