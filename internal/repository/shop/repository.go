package shop

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/solveprint/printshop/internal/database"
	"github.com/solveprint/printshop/internal/entity"
)

var repoTracer = otel.Tracer("github.com/solveprint/printshop/repository/shop")

// ErrNotFound is returned when the owner has never saved settings.
var ErrNotFound = errors.New("shop settings not found")

// Repository persists shop settings.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Get loads the settings of an owner.
func (r *Repository) Get(ctx context.Context, ownerID string) (*entity.ShopSettings, error) {
	ctx, span := repoTracer.Start(ctx, "ShopRepository.Get", trace.WithAttributes(attribute.String("shop.owner_id", ownerID)))
	defer span.End()

	settings := &entity.ShopSettings{OwnerID: ownerID}
	err := r.reader.NewSelect().Model(settings).WherePK().Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return settings, nil
}

// Upsert writes the full settings row for its owner.
func (r *Repository) Upsert(ctx context.Context, settings *entity.ShopSettings) error {
	if settings == nil || settings.OwnerID == "" {
		return errors.New("shop settings require an owner")
	}
	ctx, span := repoTracer.Start(ctx, "ShopRepository.Upsert", trace.WithAttributes(attribute.String("shop.owner_id", settings.OwnerID)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(settings).
			Column("shop_name", "is_open", "primary_vpa", "backup_vpa", "active_vpa_type", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(settings).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
	}
	return err
}
