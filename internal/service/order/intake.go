package order

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/database"
	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
	"github.com/solveprint/printshop/internal/logger"
	"github.com/solveprint/printshop/internal/pricing"
	repo "github.com/solveprint/printshop/internal/repository/order"
	"github.com/solveprint/printshop/internal/storage"
	"github.com/solveprint/printshop/pkg/errorbank"
)

// QuoteResult is the page count of a document with every price option.
type QuoteResult struct {
	Pages   int
	Options []pricing.Option
}

// CreateInput is a customer's upload request.
type CreateInput struct {
	CustomerID string
	FileName   string
	Data       []byte
	PrintType  string
	SideType   string
}

// Quote counts the pages of a document and prices every option.
func (s *Service) Quote(ctx context.Context, name string, data []byte) (QuoteResult, error) {
	_, span := serviceTracer.Start(ctx, "OrderService.Quote")
	defer span.End()

	if err := s.checkUpload(name, data); err != nil {
		return QuoteResult{}, err
	}
	pages := s.pages.Resolve(name, data)
	if err := pricing.ValidatePages(pages); err != nil {
		return QuoteResult{}, errorbank.BadRequest("document must have at least one page", errorbank.WithCause(err))
	}
	span.SetAttributes(attribute.Int("order.pages", pages))
	return QuoteResult{Pages: pages, Options: pricing.Quote(pages)}, nil
}

// Create validates an upload, prices it, stores the file and persists the
// order in pending_payment.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("customer.id", in.CustomerID)))
	defer span.End()

	if in.CustomerID == "" {
		return nil, errorbank.Unauthorized("customer identity is required")
	}
	printType, err := pricing.ParsePrintType(in.PrintType)
	if err != nil {
		return nil, errorbank.BadRequest("print_type must be BW or COLOR", errorbank.WithCause(err), errorbank.WithDetail("print_type", in.PrintType))
	}
	sideType, err := pricing.ParseSideType(in.SideType)
	if err != nil {
		return nil, errorbank.BadRequest("side_type must be SINGLE or DOUBLE", errorbank.WithCause(err), errorbank.WithDetail("side_type", in.SideType))
	}
	if err := s.checkUpload(in.FileName, in.Data); err != nil {
		return nil, err
	}

	settings, err := s.shop.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.IsOpen {
		return nil, errorbank.Unavailable("the shop is closed and is not accepting new orders")
	}

	pages := s.pages.Resolve(in.FileName, in.Data)
	if err := pricing.ValidatePages(pages); err != nil {
		return nil, errorbank.BadRequest("document must have at least one page", errorbank.WithCause(err))
	}
	cost := pricing.ComputeCost(pages, printType, sideType)

	code, err := s.allocatePickupCode(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pickup code allocation failed")
		return nil, err
	}

	now := s.now().UTC()
	order := &entity.Order{
		ID:            uuid.NewString(),
		PickupCode:    code,
		CustomerID:    in.CustomerID,
		FileName:      storage.SanitizeName(in.FileName),
		TotalPages:    pages,
		PrintType:     printType,
		SideType:      sideType,
		EstimatedCost: cost,
		PaymentStatus: lifecycle.PaymentUnpaid,
		Status:        lifecycle.StatusPendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.FilePath = path.Join("orders", order.ID, order.FileName)

	if _, err := s.store.Save(ctx, order.FilePath, bytes.NewReader(in.Data)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage error")
		s.logger.Error("store upload failed", zap.String("order_id", order.ID), zap.Error(err))
		return nil, errorbank.Internal(retryMessage, errorbank.WithCause(err))
	}

	err = s.persist(ctx, order)
	for attempt := 1; errors.Is(err, errPickupCodeTaken) && attempt < s.codeAttempts; attempt++ {
		s.logger.Info("pickup code taken concurrently, drawing another", zap.String("code", order.PickupCode))
		if order.PickupCode, err = s.allocatePickupCode(ctx); err == nil {
			err = s.persist(ctx, order)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		if !errors.Is(err, errOutcomeUnknown) {
			if delErr := s.store.Delete(context.WithoutCancel(ctx), order.FilePath); delErr != nil {
				s.logger.Error("remove orphaned upload failed", zap.String("file", order.FilePath), zap.Error(delErr))
			}
		}
		var appErr *errorbank.AppError
		switch {
		case errors.Is(err, errPickupCodeTaken):
			return nil, errorbank.Conflict(noPickupCodeMessage, errorbank.WithCause(err))
		case errors.As(err, &appErr):
			return nil, err
		default:
			return nil, errorbank.Internal(retryMessage, errorbank.WithCause(err))
		}
	}

	if s.created != nil {
		s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("print_type", string(order.PrintType))))
	}
	if s.orderValue != nil {
		s.orderValue.Record(ctx, order.EstimatedCost)
	}
	s.logger.Info("order created", logger.Order(order))
	s.emit(ctx, EventCreated, order)
	return order, nil
}

var (
	errPickupCodeTaken = errors.New("pickup code taken by a concurrent order")
	errOutcomeUnknown  = errors.New("order insert outcome unknown")
)

const noPickupCodeMessage = "no pickup code available right now, please retry shortly"

// persist inserts order. A failed insert may still have committed, so the row
// is re-read before the failure is reported. A constraint violation without a
// stored row means another order took the pickup code first.
func (s *Service) persist(ctx context.Context, order *entity.Order) error {
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, order)
	})
	if err == nil {
		return nil
	}

	stored, getErr := s.repo.GetFresh(context.WithoutCancel(ctx), order.ID)
	switch {
	case getErr == nil:
		s.logger.Warn("order insert reported failure but committed", zap.String("order_id", order.ID), zap.Error(err))
		*order = *stored
		return nil
	case !errors.Is(getErr, repo.ErrNotFound):
		s.logger.Error("order insert outcome unknown, keeping upload",
			zap.String("order_id", order.ID), zap.Error(err), zap.NamedError("lookup_error", getErr))
		return fmt.Errorf("%w: %w", errOutcomeUnknown, err)
	case database.IsConstraintViolation(err):
		return fmt.Errorf("%w: %w", errPickupCodeTaken, err)
	default:
		return err
	}
}

func (s *Service) checkUpload(name string, data []byte) error {
	if name == "" || len(data) == 0 {
		return errorbank.BadRequest("a document file is required")
	}
	if s.maxUpload > 0 && int64(len(data)) > s.maxUpload {
		return errorbank.BadRequest("document is too large", errorbank.WithDetail("max_bytes", s.maxUpload))
	}
	return nil
}

// allocatePickupCode draws random codes until one is not held by an order
// that is still awaiting handover.
func (s *Service) allocatePickupCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		code := s.nextCode()
		inUse, err := s.repo.PickupCodeInUse(ctx, code)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return "", err
			}
			return "", errorbank.Internal(retryMessage, errorbank.WithCause(err))
		}
		if !inUse {
			return code, nil
		}
	}
	s.logger.Warn("pickup codes exhausted", zap.Int("attempts", s.codeAttempts))
	return "", errorbank.Conflict(noPickupCodeMessage)
}
