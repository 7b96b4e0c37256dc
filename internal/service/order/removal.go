package order

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
	repo "github.com/solveprint/printshop/internal/repository/order"
	"github.com/solveprint/printshop/pkg/errorbank"
)

// Delete removes an order together with its document, moving its revenue
// into the archive for the order's shop day. Orders that were not handed over
// need force. The document is removed first; if that fails the order row is
// kept so the delete can be retried.
func (s *Service) Delete(ctx context.Context, id string, force bool) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.Bool("force", force),
	))
	defer span.End()

	order, err := s.repo.GetFresh(ctx, id)
	if err != nil {
		return translate(err, "load_order")
	}
	if order.Status != lifecycle.StatusCompleted && !force {
		return errorbank.Conflict("order has not been handed over; confirm to delete it anyway",
			errorbank.WithDetail("current_status", order.Status))
	}

	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.store.Delete(ctx, order.FilePath)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage error")
		s.logger.Error("delete order file failed, keeping order",
			zap.String("order_id", id),
			zap.String("file", order.FilePath),
			zap.Error(err),
		)
		return errorbank.Internal(retryMessage, errorbank.WithCause(err))
	}

	day := s.day(order.CreatedAt)
	attempt := 0
	var deleted *entity.Order
	err = s.withRetry(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			// An earlier attempt may have committed before failing to report.
			if _, err := s.repo.GetFresh(ctx, id); errors.Is(err, repo.ErrNotFound) {
				return nil
			} else if err != nil {
				return err
			}
		}
		var err error
		deleted, err = s.repo.DeleteWithArchive(ctx, id, day, s.now().UTC())
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return translate(err, "delete_order")
	}
	if deleted == nil {
		s.logger.Info("order already deleted", zap.String("order_id", id))
		s.notifyQueue()
		return nil
	}

	if amount := deleted.Revenue(); amount > 0 && s.archived != nil {
		s.archived.Add(ctx, amount)
	}
	s.logger.Info("order deleted",
		zap.String("order_id", id),
		zap.String("revenue_day", day),
		zap.Float64("archived", deleted.Revenue()),
	)
	s.emit(ctx, EventDeleted, deleted)
	return nil
}
