package migration

import (
	"context"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/database"
)

func TestMigrator_UpStatusDown(t *testing.T) {
	dbCfg := config.Database{Driver: "sqlite", WriterDSN: "file:migrations_test?mode=memory&cache=shared"}
	conns, err := database.Open(dbCfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })
	db := conns.Writer

	mig, err := New(config.Config{Database: dbCfg}, conns, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mig.Up(ctx))
	require.NoError(t, mig.Up(ctx))

	for _, table := range []string{"orders", "shop_settings", "revenue_archive"} {
		var count int
		err := db.NewSelect().TableExpr(table).ColumnExpr("COUNT(*)").Scan(ctx, &count)
		assert.NoError(t, err, table)
	}

	statuses, err := mig.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	for _, s := range statuses {
		assert.True(t, s.Applied, s.Path)
	}

	require.NoError(t, mig.Down(ctx, 1, false))
	statuses, err = mig.Status(ctx)
	require.NoError(t, err)
	assert.False(t, statuses[2].Applied)

	require.NoError(t, mig.Down(ctx, 0, true))
	_, err = db.NewSelect().TableExpr("orders").ColumnExpr("COUNT(*)").Exec(ctx)
	assert.Error(t, err)

	require.NoError(t, mig.Down(ctx, 1, false))
}

func TestGooseDialect(t *testing.T) {
	d, err := gooseDialect("pg")
	require.NoError(t, err)
	assert.Equal(t, goose.DialectPostgres, d)

	_, err = gooseDialect("oracle")
	assert.Error(t, err)
}
