package order

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
	"github.com/solveprint/printshop/internal/logger"
	repo "github.com/solveprint/printshop/internal/repository/order"
	"github.com/solveprint/printshop/pkg/errorbank"
)

var pickupCodePattern = regexp.MustCompile(`^[0-9]{3}$`)

func parseTarget(raw string) (lifecycle.Status, error) {
	target, err := lifecycle.ParseStatus(raw)
	if err != nil {
		return "", errorbank.BadRequest("unknown order status", errorbank.WithCause(err), errorbank.WithDetail("status", raw))
	}
	if target == lifecycle.StatusPendingPayment {
		return "", errorbank.BadRequest("orders cannot be moved back to pending_payment")
	}
	return target, nil
}

// SetStatus moves one order to an absolute target status. Re-applying the
// current status succeeds without change.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*entity.Order, error) {
	target, err := parseTarget(status)
	if err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.SetStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	var order *entity.Order
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.SetStatus(ctx, id, target, s.now().UTC())
		return err
	})
	if err != nil {
		s.logger.Warn("order status change rejected", zap.String("order_id", id), zap.String("target", string(target)), zap.Error(err))
		return nil, translate(err, "set_status")
	}

	s.logger.Info("order status set", logger.Order(order))
	s.emit(ctx, EventStatusChanged, order)
	return order, nil
}

// BatchSetStatus moves every listed order to target, or none of them.
func (s *Service) BatchSetStatus(ctx context.Context, ids []string, status string) ([]entity.Order, error) {
	target, err := parseTarget(status)
	if err != nil {
		return nil, err
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.BatchSetStatus", trace.WithAttributes(
		attribute.Int("orders.count", len(ids)),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	var orders []entity.Order
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		orders, err = s.repo.BatchSetStatus(ctx, ids, target, s.now().UTC())
		return err
	})
	if err != nil {
		var batchErr *repo.BatchError
		if errors.As(err, &batchErr) {
			s.logger.Warn("batch status change rolled back",
				zap.String("target", string(target)),
				zap.Strings("failed_ids", batchErr.FailedIDs()),
			)
		}
		return nil, translate(err, "batch_set_status")
	}
	if len(orders) == 0 {
		return orders, nil
	}

	changed := make([]*entity.Order, 0, len(orders))
	for i := range orders {
		changed = append(changed, &orders[i])
	}
	s.logger.Info("batch status set", zap.String("status", string(target)), zap.Int("count", len(orders)))
	s.emit(ctx, EventStatusChanged, changed...)
	return orders, nil
}

// Handover completes the ready order holding the pickup code. Any other
// outcome leaves every order untouched.
func (s *Service) Handover(ctx context.Context, code string) (*entity.Order, error) {
	code = strings.TrimSpace(code)
	if !pickupCodePattern.MatchString(code) {
		return nil, errorbank.BadRequest("pickup code must be three digits")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Handover")
	defer span.End()

	var ready *entity.Order
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		ready, err = s.repo.FindReadyByPickupCode(ctx, code)
		return err
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("no ready order matches this pickup code")
		}
		return nil, translate(err, "handover")
	}
	span.SetAttributes(attribute.String("order.id", ready.ID))

	return s.SetStatus(ctx, ready.ID, string(lifecycle.StatusCompleted))
}
