package order

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/database"
	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
	"github.com/solveprint/printshop/internal/messaging"
	"github.com/solveprint/printshop/internal/pagecount"
	"github.com/solveprint/printshop/internal/payment"
	"github.com/solveprint/printshop/internal/queue"
	repo "github.com/solveprint/printshop/internal/repository/order"
	shopservice "github.com/solveprint/printshop/internal/service/shop"
	"github.com/solveprint/printshop/internal/storage"
	"github.com/solveprint/printshop/pkg/errorbank"
)

var (
	serviceTracer = otel.Tracer("github.com/solveprint/printshop/service/order")
	serviceMeter  = otel.Meter("github.com/solveprint/printshop/service/order")
)

const retryMessage = "action failed, please retry"

// Repository is the order persistence used by the service.
type Repository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	GetFresh(ctx context.Context, id string) (*entity.Order, error)
	ListQueue(ctx context.Context) ([]entity.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]entity.Order, error)
	ListRecent(ctx context.Context, limit int) ([]entity.Order, error)
	PickupCodeInUse(ctx context.Context, code string) (bool, error)
	FindReadyByPickupCode(ctx context.Context, code string) (*entity.Order, error)
	SetStatus(ctx context.Context, id string, target lifecycle.Status, at time.Time) (*entity.Order, error)
	BatchSetStatus(ctx context.Context, ids []string, target lifecycle.Status, at time.Time) ([]entity.Order, error)
	MarkPaid(ctx context.Context, id, utr, verificationLog, verifiedBy string, at time.Time) (*entity.Order, error)
	DeleteWithArchive(ctx context.Context, id, day string, at time.Time) (*entity.Order, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (float64, error)
	Archive(ctx context.Context, day string) (entity.RevenueArchive, error)
	Totals(ctx context.Context) (repo.Totals, error)
}

// ShopSettings exposes the configured shop's settings.
type ShopSettings interface {
	Current(ctx context.Context) (*entity.ShopSettings, error)
}

// PageResolver counts document pages.
type PageResolver interface {
	Resolve(name string, data []byte) int
}

// QueueView is the owner queue kept in sync with the store.
type QueueView interface {
	Notify()
	Reconcile(ctx context.Context) error
	Cache() *queue.Cache
}

// Deps lists the collaborators of Service.
type Deps struct {
	Repository Repository
	Shop       ShopSettings
	Store      storage.Store
	Pages      PageResolver
	Verifier   payment.Verifier
	Publisher  messaging.Client
	Queue      QueueView
	Logger     *zap.Logger
}

// Service is the lifecycle controller for print orders.
type Service struct {
	repo      Repository
	shop      ShopSettings
	store     storage.Store
	pages     PageResolver
	verifier  payment.Verifier
	publisher messaging.Client
	queue     QueueView
	logger    *zap.Logger

	location     *time.Location
	codeAttempts int
	maxUpload    int64
	urlTTL       time.Duration
	payee        string
	retryMax     int
	retryDelay   time.Duration
	publish      bool

	now      func() time.Time
	nextCode func() string

	created     metric.Int64Counter
	transitions metric.Int64Counter
	archived    metric.Float64Counter

	orderValue    metric.Float64Histogram
	verifyLatency metric.Float64Histogram
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Shop       *shopservice.Service
	Store      storage.Store
	Pages      *pagecount.Resolver
	Verifier   payment.Verifier
	Publisher  messaging.Client
	Watcher    *queue.Watcher
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(Deps{
		Repository: p.Repository,
		Shop:       p.Shop,
		Store:      p.Store,
		Pages:      p.Pages,
		Verifier:   p.Verifier,
		Publisher:  p.Publisher,
		Queue:      p.Watcher,
		Logger:     p.Logger,
	}, p.Config)
}

// New builds a Service from explicit collaborators.
func New(d Deps, cfg config.Config) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := cfg.Shop.Location
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		repo:         d.Repository,
		shop:         d.Shop,
		store:        d.Store,
		pages:        d.Pages,
		verifier:     d.Verifier,
		publisher:    d.Publisher,
		queue:        d.Queue,
		logger:       logger,
		location:     loc,
		codeAttempts: max(cfg.Shop.PickupCodeAttempts, 1),
		maxUpload:    cfg.Shop.MaxUploadBytes,
		urlTTL:       cfg.Storage.URLTTL,
		payee:        cfg.Payment.PayeeName,
		retryMax:     max(cfg.Retry.MaxAttempts, 1),
		retryDelay:   cfg.Retry.BaseDelay,
		publish:      cfg.Messaging.Enabled,
		now:          time.Now,
		nextCode:     randomPickupCode,
	}
	if s.urlTTL <= 0 {
		s.urlTTL = 15 * time.Minute
	}
	if s.retryDelay <= 0 {
		s.retryDelay = 100 * time.Millisecond
	}
	if s.verifier == nil {
		s.verifier = payment.ManualVerifier{}
	}
	s.initMetrics()
	return s
}

func (s *Service) initMetrics() {
	var err error
	if s.created, err = serviceMeter.Int64Counter("printshop.orders.created",
		metric.WithDescription("Orders created")); err != nil {
		s.logger.Warn("orders.created counter unavailable", zap.Error(err))
	}
	if s.transitions, err = serviceMeter.Int64Counter("printshop.orders.transitions",
		metric.WithDescription("Order status changes by target status")); err != nil {
		s.logger.Warn("orders.transitions counter unavailable", zap.Error(err))
	}
	if s.archived, err = serviceMeter.Float64Counter("printshop.revenue.archived",
		metric.WithDescription("Revenue moved to the archive on deletion"),
		metric.WithUnit("INR")); err != nil {
		s.logger.Warn("revenue.archived counter unavailable", zap.Error(err))
	}
	if s.orderValue, err = serviceMeter.Float64Histogram("printshop.orders.value",
		metric.WithDescription("Estimated cost of created orders"),
		metric.WithUnit("INR")); err != nil {
		s.logger.Warn("orders.value histogram unavailable", zap.Error(err))
	}
	if s.verifyLatency, err = serviceMeter.Float64Histogram("printshop.payment.verify.duration",
		metric.WithDescription("Time spent verifying payment proofs"),
		metric.WithUnit("s")); err != nil {
		s.logger.Warn("payment.verify.duration histogram unavailable", zap.Error(err))
	}
}

func randomPickupCode() string {
	return fmt.Sprintf("%03d", 100+rand.IntN(900))
}

// day returns the shop-local day key of t.
func (s *Service) day(t time.Time) string {
	return t.In(s.location).Format(entity.DayLayout)
}

// withRetry runs fn, retrying failures that are not domain outcomes.
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(uint64(s.retryMax-1), retry.NewExponential(s.retryDelay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && transient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func transient(err error) bool {
	var (
		transitionErr *repo.TransitionError
		batchErr      *repo.BatchError
		appErr        *errorbank.AppError
	)
	switch {
	case errors.Is(err, repo.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, lifecycle.ErrBackward),
		errors.Is(err, lifecycle.ErrPaymentRequired),
		errors.Is(err, lifecycle.ErrUnknownStatus),
		errors.As(err, &transitionErr),
		errors.As(err, &batchErr),
		errors.As(err, &appErr),
		database.IsConstraintViolation(err):
		return false
	default:
		return true
	}
}

// translate maps repository outcomes to application errors.
func translate(err error, action string) error {
	var (
		transitionErr *repo.TransitionError
		batchErr      *repo.BatchError
		appErr        *errorbank.AppError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("order not found", errorbank.WithCause(err))
	case errors.As(err, &batchErr):
		failures := make([]map[string]string, 0, len(batchErr.Failures))
		for _, f := range batchErr.Failures {
			failures = append(failures, map[string]string{"id": f.OrderID, "reason": f.Reason})
		}
		return errorbank.Conflict("no orders were updated; some orders cannot take this status",
			errorbank.WithCause(err),
			errorbank.WithDetail("failed_ids", batchErr.FailedIDs()),
			errorbank.WithDetail("failures", failures),
			errorbank.WithDetail("target_status", batchErr.Target),
		)
	case errors.As(err, &transitionErr):
		msg := "order status cannot move backward"
		if errors.Is(err, lifecycle.ErrPaymentRequired) {
			msg = "order must be paid before it can be processed"
		}
		return errorbank.Conflict(msg,
			errorbank.WithCause(err),
			errorbank.WithDetail("current_status", transitionErr.Current),
			errorbank.WithDetail("target_status", transitionErr.Target),
		)
	default:
		return errorbank.Internal(retryMessage, errorbank.WithCause(err), errorbank.WithDetail("action", action))
	}
}

func (s *Service) notifyQueue() {
	if s.queue != nil {
		s.queue.Notify()
	}
}
