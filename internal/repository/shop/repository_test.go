package shop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solveprint/printshop/internal/database/dbtest"
	"github.com/solveprint/printshop/internal/entity"
)

func TestRepository_Upsert(t *testing.T) {
	r := NewRepository(dbtest.New(t))
	ctx := context.Background()

	_, err := r.Get(ctx, "owner-1")
	assert.ErrorIs(t, err, ErrNotFound)

	settings := &entity.ShopSettings{
		OwnerID:       "owner-1",
		ShopName:      "Campus Prints",
		IsOpen:        true,
		PrimaryVPA:    "shop@upi",
		ActiveVPAType: entity.VPAPrimary,
	}
	require.NoError(t, r.Upsert(ctx, settings))

	settings.IsOpen = false
	settings.BackupVPA = "backup@upi"
	settings.ActiveVPAType = entity.VPABackup
	require.NoError(t, r.Upsert(ctx, settings))

	got, err := r.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Campus Prints", got.ShopName)
	assert.False(t, got.IsOpen)
	assert.Equal(t, "backup@upi", got.ActiveVPA())
}

func TestRepository_UpsertRequiresOwner(t *testing.T) {
	r := NewRepository(dbtest.New(t))
	assert.Error(t, r.Upsert(context.Background(), &entity.ShopSettings{}))
}
