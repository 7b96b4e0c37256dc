package shop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solveprint/printshop/internal/cache"
	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/database/dbtest"
	"github.com/solveprint/printshop/internal/entity"
	repo "github.com/solveprint/printshop/internal/repository/shop"
	"github.com/solveprint/printshop/pkg/errorbank"
)

func newService(t *testing.T) (*Service, cache.Store) {
	t.Helper()
	var cfg config.Config
	cfg.Shop.OwnerID = "owner-1"
	cfg.Shop.DefaultName = "Solve Print"
	cfg.Cache.DefaultTTL = time.Minute
	store := cache.NewMemoryStore(time.Minute)
	return New(repo.NewRepository(dbtest.New(t)), store, cfg, zaptest.NewLogger(t)), store
}

func ptr[T any](v T) *T { return &v }

func TestService_GetDefaults(t *testing.T) {
	svc, _ := newService(t)
	settings, err := svc.Get(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Solve Print", settings.ShopName)
	assert.True(t, settings.IsOpen)
	assert.Equal(t, entity.VPAPrimary, settings.ActiveVPAType)
}

func TestService_UpdateInvalidatesCache(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "owner-1", UpdateInput{PrimaryVPA: ptr("Shop@okaxis")})
	require.NoError(t, err)

	first, err := svc.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "shop@okaxis", first.PrimaryVPA)

	_, err = svc.SetOpen(ctx, "owner-1", false)
	require.NoError(t, err)

	open, err := svc.IsOpen(ctx)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestService_UpdateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   UpdateInput
	}{
		{"bad_vpa_type", UpdateInput{ActiveVPAType: ptr("tertiary")}},
		{"bad_vpa", UpdateInput{PrimaryVPA: ptr("not-an-address")}},
		{"empty_name", UpdateInput{ShopName: ptr("  ")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, "owner-1", tt.in)
			assert.True(t, errorbank.IsKind(err, errorbank.KindBadRequest), "got %v", err)
		})
	}
}

func TestService_SwitchToBackup(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	settings, err := svc.Update(ctx, "owner-1", UpdateInput{
		PrimaryVPA:    ptr("main@upi"),
		BackupVPA:     ptr("spare@upi"),
		ActiveVPAType: ptr("BACKUP"),
	})
	require.NoError(t, err)
	assert.Equal(t, "spare@upi", settings.ActiveVPA())
}
