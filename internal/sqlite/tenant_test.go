package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/supportbill/internal/domain/tenant"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTenantRepository_Upsert(t *testing.T) {
	repo := NewTenantRepository(NewTestDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, "tenant-1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	rate := decimal.RequireFromString("45.00")
	settings := &tenant.Settings{
		TenantID:      "tenant-1",
		FallbackRate:  &rate,
		DefaultRegion: "NSW",
		DefaultTier:   "standard",
	}
	require.NoError(t, repo.Upsert(ctx, settings))
	require.False(t, settings.UpdatedAt.IsZero())

	got, err := repo.Get(ctx, "tenant-1")
	require.NoError(t, err)
	require.NotNil(t, got.FallbackRate)
	require.Equal(t, "45.00", got.FallbackRate.StringFixed(2))
	require.False(t, got.CatalogueDefaults)
	require.Equal(t, "NSW", string(got.DefaultRegion))

	settings.FallbackRate = nil
	settings.CatalogueDefaults = true
	require.NoError(t, repo.Upsert(ctx, settings))

	got, err = repo.Get(ctx, "tenant-1")
	require.NoError(t, err)
	require.Nil(t, got.FallbackRate)
	require.True(t, got.CatalogueDefaults)
}

func TestTenantRepository_KeepsCallerTimestamp(t *testing.T) {
	repo := NewTenantRepository(NewTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &tenant.Settings{TenantID: "tenant-1", DefaultTier: "standard", UpdatedAt: testNow}))

	got, err := repo.Get(ctx, "tenant-1")
	require.NoError(t, err)
	require.True(t, got.UpdatedAt.Equal(testNow))
	require.Equal(t, "", string(got.DefaultRegion))
}

func TestTenantRepository_IsolatesTenants(t *testing.T) {
	repo := NewTenantRepository(NewTestDB(t))
	ctx := context.Background()

	rate := decimal.RequireFromString("30.00")
	require.NoError(t, repo.Upsert(ctx, &tenant.Settings{TenantID: "tenant-1", FallbackRate: &rate, DefaultTier: "standard"}))
	require.NoError(t, repo.Upsert(ctx, &tenant.Settings{TenantID: "tenant-2", CatalogueDefaults: true, DefaultTier: "standard", UpdatedAt: time.Now()}))

	one, err := repo.Get(ctx, "tenant-1")
	require.NoError(t, err)
	require.False(t, one.CatalogueDefaults)
	require.NotNil(t, one.FallbackRate)

	two, err := repo.Get(ctx, "tenant-2")
	require.NoError(t, err)
	require.True(t, two.CatalogueDefaults)
	require.Nil(t, two.FallbackRate)
}
