package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solveprint/printshop/internal/database"
	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
)

var repoTracer = otel.Tracer("github.com/solveprint/printshop/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// TransitionError reports a status change rejected by the lifecycle rules.
type TransitionError struct {
	OrderID string
	Current lifecycle.Status
	Target  lifecycle.Status
	Err     error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: %s -> %s: %v", e.OrderID, e.Current, e.Target, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// BatchFailure describes one order that could not take the batch target.
type BatchFailure struct {
	OrderID string
	Reason  string
}

// BatchError is returned when a batch update was rolled back. Failures lists
// every order that blocked it; no order in the batch was changed.
type BatchError struct {
	Target   lifecycle.Status
	Failures []BatchFailure
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch update to %s rolled back: %d order(s) failed", e.Target, len(e.Failures))
}

// FailedIDs lists the ids that blocked the batch.
func (e *BatchError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.OrderID)
	}
	return ids
}

// Totals aggregates every live order.
type Totals struct {
	Orders      int
	PaidRevenue float64
	ByStatus    lifecycle.Counts
}

// Repository encapsulates read/write access for orders and the revenue archive.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.id", order.ID)))
	defer span.End()

	order.HoldPickupCode()
	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := getByID(ctx, r.reader, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
	}
	return order, err
}

// GetFresh reads an order from the writer, bypassing replica lag. Callers use
// it before retrying destructive operations.
func (r *Repository) GetFresh(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetFresh", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	return getByID(ctx, r.writer, id)
}

func getByID(ctx context.Context, db bun.IDB, id string) (*entity.Order, error) {
	order := new(entity.Order)
	err := db.NewSelect().Model(order).Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListQueue returns every order visible to the owner, newest first. Orders
// still awaiting payment are abandoned checkouts until paid and are excluded.
func (r *Repository) ListQueue(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListQueue")
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("o.status != ?", lifecycle.StatusPendingPayment).
		Order("o.created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListByCustomer returns a customer's orders, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID string) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByCustomer", trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("o.customer_id = ?", customerID).
		Order("o.created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}

// ListRecent returns the latest orders across all customers.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Order("o.created_at DESC").
		Limit(limit).
		Scan(ctx)
	return orders, err
}

// PickupCodeInUse reports whether an order that has not been handed over
// holds the code.
func (r *Repository) PickupCodeInUse(ctx context.Context, code string) (bool, error) {
	return r.writer.NewSelect().Model((*entity.Order)(nil)).
		Where("o.pickup_code = ?", code).
		Where("o.status != ?", lifecycle.StatusCompleted).
		Exists(ctx)
}

// FindReadyByPickupCode returns the ready order holding the code.
func (r *Repository) FindReadyByPickupCode(ctx context.Context, code string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FindReadyByPickupCode")
	defer span.End()

	order := new(entity.Order)
	err := r.writer.NewSelect().Model(order).
		Where("o.pickup_code = ?", code).
		Where("o.status = ?", lifecycle.StatusReady).
		Order("o.created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// SetStatus moves a single order to an absolute target status.
func (r *Repository) SetStatus(ctx context.Context, id string, target lifecycle.Status, at time.Time) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SetStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	var updated *entity.Order
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		order, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := applyStatus(ctx, tx, order, target, at); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "set status failed")
		return nil, err
	}
	return updated, nil
}

// BatchSetStatus applies one target status to every order in ids inside a
// single transaction. Either every order takes the target or none does, in
// which case a *BatchError names the blocking orders. Duplicate ids are
// collapsed; an empty set is a no-op.
func (r *Repository) BatchSetStatus(ctx context.Context, ids []string, target lifecycle.Status, at time.Time) ([]entity.Order, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, span := repoTracer.Start(ctx, "OrderRepository.BatchSetStatus", trace.WithAttributes(
		attribute.Int("orders.count", len(ids)),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	var updated []entity.Order
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var orders []entity.Order
		if err := tx.NewSelect().Model(&orders).Where("o.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
			return err
		}
		byID := make(map[string]*entity.Order, len(orders))
		for i := range orders {
			byID[orders[i].ID] = &orders[i]
		}

		batchErr := &BatchError{Target: target}
		for _, id := range ids {
			order, ok := byID[id]
			if !ok {
				batchErr.Failures = append(batchErr.Failures, BatchFailure{OrderID: id, Reason: ErrNotFound.Error()})
				continue
			}
			if err := lifecycle.CanTransition(order.Status, target, order.PaymentStatus == lifecycle.PaymentPaid); err != nil {
				batchErr.Failures = append(batchErr.Failures, BatchFailure{OrderID: id, Reason: err.Error()})
			}
		}
		if len(batchErr.Failures) > 0 {
			return batchErr
		}

		updated = make([]entity.Order, 0, len(ids))
		for _, id := range ids {
			order := byID[id]
			if err := applyStatus(ctx, tx, order, target, at); err != nil {
				return err
			}
			updated = append(updated, *order)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch update failed")
		return nil, err
	}
	return updated, nil
}

// MarkPaid records a verified payment and queues the order. Applying it to
// an order that is already paid returns the order unchanged.
func (r *Repository) MarkPaid(ctx context.Context, id, utr, verificationLog, verifiedBy string, at time.Time) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.MarkPaid", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	var updated *entity.Order
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		order, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if order.PaymentStatus == lifecycle.PaymentPaid {
			updated = order
			return nil
		}
		if order.Status != lifecycle.StatusPendingPayment {
			return &TransitionError{OrderID: id, Current: order.Status, Target: lifecycle.StatusQueued, Err: lifecycle.ErrBackward}
		}

		order.PaymentStatus = lifecycle.PaymentPaid
		order.Status = lifecycle.StatusQueued
		order.UTRID = utr
		order.VerificationLog = verificationLog
		order.VerifiedBy = verifiedBy
		order.UpdatedAt = at
		_, err = tx.NewUpdate().Model(order).
			Column("payment_status", "status", "utr_id", "verification_log", "verified_by", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark paid failed")
		return nil, err
	}
	return updated, nil
}

// DeleteWithArchive removes an order and, in the same transaction, adds its
// revenue to the archive row for day. The returned order is the row as it was
// just before deletion.
func (r *Repository) DeleteWithArchive(ctx context.Context, id, day string, at time.Time) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.DeleteWithArchive", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("revenue.day", day),
	))
	defer span.End()

	var deleted *entity.Order
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		order, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}

		if amount := order.Revenue(); amount > 0 {
			if err := addToArchive(ctx, tx, day, amount, at); err != nil {
				return fmt.Errorf("archive revenue: %w", err)
			}
		}

		res, err := tx.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		deleted = order
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete failed")
		}
		return nil, err
	}
	return deleted, nil
}

// RevenueBetween sums revenue of live orders created in [from, to).
func (r *Repository) RevenueBetween(ctx context.Context, from, to time.Time) (float64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.RevenueBetween")
	defer span.End()

	q := r.reader.NewSelect().Model((*entity.Order)(nil)).
		Where("o.created_at >= ?", from.UTC()).
		Where("o.created_at < ?", to.UTC()).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("o.payment_status = ?", lifecycle.PaymentPaid).
				WhereOr("o.status IN (?)", bun.In(lifecycle.OperationalStatuses()))
		})
	sum, err := sumCost(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sum failed")
		return 0, err
	}
	return sum, nil
}

// Archive returns the archive row for day, or an empty row when nothing was
// archived.
func (r *Repository) Archive(ctx context.Context, day string) (entity.RevenueArchive, error) {
	archive := entity.RevenueArchive{Day: day}
	err := r.reader.NewSelect().Model(&archive).WherePK().Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.RevenueArchive{Day: day}, nil
	}
	return archive, err
}

// Totals aggregates all live orders.
func (r *Repository) Totals(ctx context.Context) (Totals, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Totals")
	defer span.End()

	var rows []struct {
		Status lifecycle.Status `bun:"status"`
		Count  int              `bun:"count"`
	}
	err := r.reader.NewSelect().Model((*entity.Order)(nil)).
		ColumnExpr("o.status AS status").
		ColumnExpr("COUNT(*) AS count").
		Group("o.status").
		Scan(ctx, &rows)
	if err != nil {
		return Totals{}, err
	}

	totals := Totals{ByStatus: make(lifecycle.Counts, len(rows))}
	for _, row := range rows {
		totals.ByStatus[row.Status] = row.Count
		totals.Orders += row.Count
	}

	totals.PaidRevenue, err = sumCost(ctx, r.reader.NewSelect().Model((*entity.Order)(nil)).
		Where("o.payment_status = ?", lifecycle.PaymentPaid))
	if err != nil {
		return Totals{}, err
	}
	return totals, nil
}

// sumCost totals estimated_cost over q. SUM over no rows is NULL, which reads
// as zero.
func sumCost(ctx context.Context, q *bun.SelectQuery) (float64, error) {
	var sum sql.NullFloat64
	if err := q.ColumnExpr("SUM(o.estimated_cost)").Scan(ctx, &sum); err != nil {
		return 0, err
	}
	return sum.Float64, nil
}

func applyStatus(ctx context.Context, tx bun.Tx, order *entity.Order, target lifecycle.Status, at time.Time) error {
	paid := order.PaymentStatus == lifecycle.PaymentPaid
	if err := lifecycle.CanTransition(order.Status, target, paid); err != nil {
		return &TransitionError{OrderID: order.ID, Current: order.Status, Target: target, Err: err}
	}
	if order.Status == target {
		return nil
	}

	order.Status = target
	order.UpdatedAt = at
	order.HoldPickupCode()
	_, err := tx.NewUpdate().Model(order).
		Column("status", "updated_at", "active_pickup_code").
		WherePK().
		Exec(ctx)
	return err
}

func addToArchive(ctx context.Context, tx bun.Tx, day string, amount float64, at time.Time) error {
	res, err := tx.NewUpdate().Model((*entity.RevenueArchive)(nil)).
		Set("amount = amount + ?", amount).
		Set("orders = orders + 1").
		Set("updated_at = ?", at).
		Where("day = ?", day).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = tx.NewInsert().Model(&entity.RevenueArchive{
		Day:       day,
		Amount:    amount,
		Orders:    1,
		UpdatedAt: at,
	}).Exec(ctx)
	return err
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
