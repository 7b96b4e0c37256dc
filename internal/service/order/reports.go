package order

import (
	"context"
	"errors"
	"io"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/auth"
	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
	repo "github.com/solveprint/printshop/internal/repository/order"
	"github.com/solveprint/printshop/internal/storage"
	"github.com/solveprint/printshop/pkg/errorbank"
)

// Revenue is the takings of one shop day.
type Revenue struct {
	Day            string
	Live           float64
	Archived       float64
	ArchivedOrders int
}

// Total is live plus archived revenue.
func (r Revenue) Total() float64 { return r.Live + r.Archived }

// QueueSnapshot is the owner's view of the queue.
type QueueSnapshot struct {
	Orders  []entity.Order
	Counts  lifecycle.Counts
	Version uint64
}

// PlatformStats summarises the whole platform.
type PlatformStats struct {
	Totals repo.Totals
	Recent []entity.Order
}

// RevenueToday reports revenue for the current shop day.
func (s *Service) RevenueToday(ctx context.Context) (Revenue, error) {
	return s.RevenueOn(ctx, s.day(s.now()))
}

// RevenueOn reports revenue for day (YYYY-MM-DD in the shop timezone): live
// orders created that day plus the archived value of deleted ones.
func (s *Service) RevenueOn(ctx context.Context, day string) (Revenue, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.RevenueOn")
	defer span.End()

	from, err := time.ParseInLocation(entity.DayLayout, day, s.location)
	if err != nil {
		return Revenue{}, errorbank.BadRequest("day must be formatted as YYYY-MM-DD", errorbank.WithCause(err))
	}
	to := from.AddDate(0, 0, 1)

	live, err := s.repo.RevenueBetween(ctx, from, to)
	if err != nil {
		return Revenue{}, translate(err, "revenue")
	}
	archive, err := s.repo.Archive(ctx, day)
	if err != nil {
		return Revenue{}, translate(err, "revenue_archive")
	}
	return Revenue{
		Day:            day,
		Live:           live,
		Archived:       archive.Amount,
		ArchivedOrders: archive.Orders,
	}, nil
}

// Queue returns the owner queue from the watcher's cache, loading it first
// when it was never filled.
func (s *Service) Queue(ctx context.Context) (QueueSnapshot, error) {
	if s.queue == nil {
		orders, err := s.repo.ListQueue(ctx)
		if err != nil {
			return QueueSnapshot{}, translate(err, "queue")
		}
		statuses := make([]lifecycle.Status, 0, len(orders))
		for _, o := range orders {
			statuses = append(statuses, o.Status)
		}
		return QueueSnapshot{Orders: orders, Counts: lifecycle.Tally(statuses...)}, nil
	}

	cache := s.queue.Cache()
	if !cache.Loaded() {
		if err := s.queue.Reconcile(ctx); err != nil {
			return QueueSnapshot{}, translate(err, "queue")
		}
	}
	return QueueSnapshot{
		Orders:  cache.Snapshot(),
		Counts:  cache.Counts(),
		Version: cache.Version(),
	}, nil
}

// Mine lists a customer's orders.
func (s *Service) Mine(ctx context.Context, customerID string) ([]entity.Order, error) {
	orders, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, translate(err, "list_orders")
	}
	return orders, nil
}

// Get returns an order visible to the principal. Customers see only their own.
func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (*entity.Order, error) {
	if p.Role == auth.RoleCustomer {
		return s.ownOrder(ctx, p.Subject, id)
	}
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err, "load_order")
	}
	return order, nil
}

// DownloadURL returns a time-limited link to the order's document.
func (s *Service) DownloadURL(ctx context.Context, p auth.Principal, id string) (string, time.Time, error) {
	order, err := s.Get(ctx, p, id)
	if err != nil {
		return "", time.Time{}, err
	}
	url, err := s.store.SignedURL(order.FilePath, s.urlTTL)
	if err != nil {
		s.logger.Error("sign download url failed", zap.String("order_id", id), zap.Error(err))
		return "", time.Time{}, errorbank.Internal(retryMessage, errorbank.WithCause(err))
	}
	return url, s.now().Add(s.urlTTL), nil
}

// OpenFile resolves a signed download token to the document it grants.
func (s *Service) OpenFile(ctx context.Context, token string) (io.ReadCloser, string, error) {
	key, err := s.store.VerifySignature(token)
	if err != nil {
		return nil, "", errorbank.Forbidden("download link is invalid or has expired", errorbank.WithCause(err))
	}
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", errorbank.NotFound("document no longer exists")
		}
		return nil, "", errorbank.Internal(retryMessage, errorbank.WithCause(err))
	}
	return rc, path.Base(key), nil
}

// Totals reports platform-wide statistics.
func (s *Service) Totals(ctx context.Context) (PlatformStats, error) {
	totals, err := s.repo.Totals(ctx)
	if err != nil {
		return PlatformStats{}, translate(err, "totals")
	}
	recent, err := s.repo.ListRecent(ctx, 10)
	if err != nil {
		return PlatformStats{}, translate(err, "recent_orders")
	}
	return PlatformStats{Totals: totals, Recent: recent}, nil
}
