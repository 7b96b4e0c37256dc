package seeder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/database/dbtest"
	"github.com/solveprint/printshop/internal/entity"
)

func TestSeeder_Idempotent(t *testing.T) {
	conns := dbtest.New(t)
	var cfg config.Config
	cfg.Shop.OwnerID = "owner"
	cfg.Shop.DefaultName = "Solve Print"
	s := New(conns, cfg, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, s.Shop(ctx))
		require.NoError(t, s.Orders(ctx))
	}

	count, err := conns.Writer.NewSelect().Model((*entity.Order)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	var settings entity.ShopSettings
	require.NoError(t, conns.Writer.NewSelect().Model(&settings).Where("owner_id = ?", "owner").Scan(ctx))
	assert.Equal(t, "solveprint@okaxis", settings.ActiveVPA())
}
