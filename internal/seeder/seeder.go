package seeder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/database"
	"github.com/solveprint/printshop/internal/entity"
	"github.com/solveprint/printshop/internal/lifecycle"
	"github.com/solveprint/printshop/internal/pricing"
)

// Module provides the Seeder to Fx.
var Module = fx.Provide(New)

var seedNamespace = uuid.MustParse("5b0f3d0e-8a51-4a53-9a37-0d2c1f7a9e11")

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	cfg    config.Config
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, cfg config.Config, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, cfg: cfg, logger: logger}
}

// Shop seeds the configured owner's settings if they are missing.
func (s *Seeder) Shop(ctx context.Context) error {
	settings := &entity.ShopSettings{
		OwnerID:       s.cfg.Shop.OwnerID,
		ShopName:      s.cfg.Shop.DefaultName,
		IsOpen:        true,
		PrimaryVPA:    "solveprint@okaxis",
		BackupVPA:     "solveprint@ybl",
		ActiveVPAType: entity.VPAPrimary,
		UpdatedAt:     time.Now().UTC(),
	}
	_, err := s.db.NewInsert().Model(settings).Ignore().Exec(ctx)
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("seeded shop settings", zap.String("owner_id", settings.OwnerID))
	}
	return nil
}

// Orders seeds example orders across the lifecycle if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []struct {
		name   string
		code   string
		pages  int
		pt     pricing.PrintType
		st     pricing.SideType
		status lifecycle.Status
	}{
		{"lab-report.pdf", "101", 12, pricing.PrintBW, pricing.SideDouble, lifecycle.StatusPendingPayment},
		{"resume.pdf", "202", 2, pricing.PrintColor, pricing.SideSingle, lifecycle.StatusQueued},
		{"thesis.docx", "303", 120, pricing.PrintBW, pricing.SideDouble, lifecycle.StatusPrinting},
		{"poster.pdf", "404", 1, pricing.PrintColor, pricing.SideSingle, lifecycle.StatusReady},
	}

	for i, sample := range samples {
		payment := lifecycle.PaymentUnpaid
		if lifecycle.ImpliesPaid(sample.status) {
			payment = lifecycle.PaymentPaid
		}
		id := uuid.NewSHA1(seedNamespace, []byte(sample.name)).String()
		created := now.Add(-time.Duration(len(samples)-i) * time.Minute)
		order := &entity.Order{
			ID:            id,
			PickupCode:    sample.code,
			CustomerID:    "demo-customer",
			FilePath:      "orders/" + id + "/" + sample.name,
			FileName:      sample.name,
			TotalPages:    sample.pages,
			PrintType:     sample.pt,
			SideType:      sample.st,
			EstimatedCost: pricing.ComputeCost(sample.pages, sample.pt, sample.st),
			PaymentStatus: payment,
			Status:        sample.status,
			CreatedAt:     created,
			UpdatedAt:     created,
		}
		order.HoldPickupCode()
		if _, err := s.db.NewInsert().Model(order).Ignore().Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}
