package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
	"github.com/solveprint/printshop/internal/logger"
	"github.com/solveprint/printshop/internal/payment"
	"github.com/solveprint/printshop/pkg/errorbank"
)

// PaymentRequest tells the customer how much to pay and where.
type PaymentRequest struct {
	OrderID string
	Amount  float64
	VPA     string
	Payee   string
	Link    string
}

const verificationFailedMessage = "Payment could not be verified. Please ensure the screenshot clearly shows the amount and success status."

// PaymentRequest builds the UPI payment request for a customer's unpaid order.
func (s *Service) PaymentRequest(ctx context.Context, customerID, orderID string) (*PaymentRequest, error) {
	order, err := s.ownOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == lifecycle.PaymentPaid {
		return nil, errorbank.Conflict("order is already paid", errorbank.WithDetail("current_status", order.Status))
	}

	settings, err := s.shop.Current(ctx)
	if err != nil {
		return nil, err
	}
	vpa := settings.ActiveVPA()
	if vpa == "" {
		return nil, errorbank.Unavailable("the shop has not configured a payment address")
	}
	payee := s.payee
	if payee == "" {
		payee = settings.ShopName
	}

	return &PaymentRequest{
		OrderID: order.ID,
		Amount:  order.EstimatedCost,
		VPA:     vpa,
		Payee:   payee,
		Link:    payment.UPILink(vpa, payee, order.EstimatedCost, order.ID),
	}, nil
}

// VerifyPayment checks a payment screenshot for the customer's order and,
// when it shows a successful payment of the exact amount, queues the order.
// A proof that fails either check leaves the order unchanged.
func (s *Service) VerifyPayment(ctx context.Context, customerID, orderID string, proof payment.Proof) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.VerifyPayment", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	order, err := s.ownOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == lifecycle.PaymentPaid {
		return order, nil
	}
	if order.Status != lifecycle.StatusPendingPayment {
		return nil, errorbank.Conflict("order is not awaiting payment", errorbank.WithDetail("current_status", order.Status))
	}
	if len(proof.Data) == 0 {
		return nil, errorbank.BadRequest("a payment screenshot is required")
	}

	started := time.Now()
	result, err := s.verifier.Verify(ctx, proof, order.EstimatedCost)
	if s.verifyLatency != nil {
		s.verifyLatency.Record(ctx, time.Since(started).Seconds(),
			metric.WithAttributes(attribute.String("verifier", s.verifier.Name())))
	}
	switch {
	case errors.Is(err, payment.ErrManualOnly):
		return nil, errorbank.Unprocessable(payment.ErrManualOnly.Error(), errorbank.WithDetail("verification", "manual"))
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "verifier error")
		s.logger.Warn("payment verification errored", zap.String("order_id", orderID), zap.Error(err))
		return nil, errorbank.Unprocessable(verificationFailedMessage, errorbank.WithCause(err))
	case !result.Verified():
		s.logger.Info("payment proof rejected",
			zap.String("order_id", orderID),
			zap.Bool("is_successful", result.IsSuccessful),
			zap.Bool("is_match", result.IsMatch),
		)
		return nil, errorbank.Unprocessable(verificationFailedMessage,
			errorbank.WithDetail("is_successful", result.IsSuccessful),
			errorbank.WithDetail("is_match", result.IsMatch),
		)
	}

	return s.markPaid(ctx, orderID, result.TransactionRef, result.Log(), s.verifier.Name())
}

// ConfirmPaymentManually lets the owner mark an order paid after checking
// the payment themselves.
func (s *Service) ConfirmPaymentManually(ctx context.Context, ownerID, orderID, utr string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ConfirmPaymentManually", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	log := `{"confirmed_by":"owner"}`
	return s.markPaid(ctx, orderID, strings.TrimSpace(utr), log, "owner:"+ownerID)
}

func (s *Service) markPaid(ctx context.Context, orderID, utr, log, verifiedBy string) (*entity.Order, error) {
	var order *entity.Order
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.MarkPaid(ctx, orderID, utr, log, verifiedBy, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, translate(err, "mark_paid")
	}
	s.logger.Info("order paid", logger.Order(order), zap.String("verified_by", verifiedBy))
	s.emit(ctx, EventPaid, order)
	return order, nil
}

func (s *Service) ownOrder(ctx context.Context, customerID, orderID string) (*entity.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, translate(err, "load_order")
	}
	if order.CustomerID != customerID {
		return nil, errorbank.NotFound("order not found")
	}
	return order, nil
}
