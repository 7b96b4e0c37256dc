package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/entity"
)

func sqliteConfig(name string) config.Config {
	var cfg config.Config
	cfg.Database.Driver = "sqlite"
	cfg.Database.WriterDSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	return cfg
}

func TestNew_SqliteLifecycle(t *testing.T) {
	cfg := sqliteConfig("database_lifecycle")
	lc := fxtest.NewLifecycle(t)

	conns, err := New(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Same(t, conns.Writer, conns.Reader)

	lc.RequireStart()
	for _, model := range Tables() {
		_, err := conns.Writer.NewCreateTable().Model(model).IfNotExists().Exec(context.Background())
		require.NoError(t, err)
	}
	count, err := conns.Reader.NewSelect().Model((*entity.Order)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	lc.RequireStop()
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.Database{Driver: "oracle", WriterDSN: "x"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Open(config.Database{Driver: "sqlite"}, zap.NewNop())
	assert.ErrorContains(t, err, "empty DSN")
}

func TestSlowQueryHook(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := sqliteConfig("database_slow_hook").Database
	cfg.SlowQuery = time.Nanosecond

	conns, err := Open(cfg, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	var one int
	require.NoError(t, conns.Writer.NewSelect().ColumnExpr("1").Scan(context.Background(), &one))
	assert.NotZero(t, logs.FilterMessage("slow query").Len())

	_, err = conns.Writer.NewSelect().Table("missing_table").Exec(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("query failed").Len())
}

func TestIsConstraintViolation(t *testing.T) {
	cfg := sqliteConfig("database_constraints")
	lc := fxtest.NewLifecycle(t)
	conns, err := New(lc, cfg, zap.NewNop())
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(lc.RequireStop)

	ctx := context.Background()
	_, err = conns.Writer.NewCreateTable().Model((*entity.ShopSettings)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)

	settings := &entity.ShopSettings{OwnerID: "owner", ShopName: "Solve Print", UpdatedAt: time.Now()}
	_, err = conns.Writer.NewInsert().Model(settings).Exec(ctx)
	require.NoError(t, err)

	_, err = conns.Writer.NewInsert().Model(settings).Exec(ctx)
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(fmt.Errorf("insert shop: %w", err)))

	_, err = conns.Writer.NewSelect().Table("missing_table").Exec(ctx)
	require.Error(t, err)
	assert.False(t, IsConstraintViolation(err))
	assert.False(t, IsConstraintViolation(nil))
	assert.False(t, IsConstraintViolation(context.DeadlineExceeded))
}
