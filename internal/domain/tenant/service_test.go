package tenant_test

import (
	"context"
	"testing"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/tenant"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/rpggio/supportbill/internal/repository/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var defaults = tenant.Defaults{Region: "NSW", Tier: catalogue.TierStandard}

func TestGetReturnsDefaultsWhenUnset(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TenantRepository{}
	repo.On("Get", ctx, "t1").Return(nil, repository.ErrNotFound)

	svc := tenant.NewService(repo, nil, defaults, nil)
	settings, err := svc.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, catalogue.Region("NSW"), settings.DefaultRegion)
	require.Nil(t, settings.FallbackRate)

	_, ok, err := svc.FallbackRate(ctx, "t1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetFallbackRate(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TenantRepository{}
	auditor := &mocks.Auditor{}
	repo.On("Get", ctx, "t1").Return(nil, repository.ErrNotFound).Once()
	repo.On("Upsert", ctx, mock.MatchedBy(func(s *tenant.Settings) bool {
		return s.TenantID == "t1" && s.FallbackRate != nil && s.FallbackRate.Equal(decimal.NewFromInt(45))
	})).Return(nil)
	auditor.On("Record", ctx, mock.Anything).Return()

	svc := tenant.NewService(repo, auditor, defaults, nil)
	rate := decimal.NewFromInt(45)
	settings, err := svc.SetFallbackRate(ctx, "t1", &rate, "admin")
	require.NoError(t, err)
	require.True(t, settings.FallbackRate.Equal(rate))
	repo.AssertExpectations(t)
	auditor.AssertNumberOfCalls(t, "Record", 1)
}

func TestSetFallbackRateRejectsNonPositive(t *testing.T) {
	svc := tenant.NewService(&mocks.TenantRepository{}, nil, defaults, nil)
	zero := decimal.Zero
	_, err := svc.SetFallbackRate(context.Background(), "t1", &zero, "admin")
	require.ErrorIs(t, err, tenant.ErrInvalidInput)
}

func TestSeedSkipsConfiguredTenants(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TenantRepository{}
	existing := decimal.NewFromInt(30)
	repo.On("Get", ctx, "t1").Return(&tenant.Settings{TenantID: "t1", FallbackRate: &existing}, nil)

	svc := tenant.NewService(repo, nil, defaults, nil)
	require.NoError(t, svc.Seed(ctx, map[string]decimal.Decimal{"t1": decimal.NewFromInt(50)}))
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestSetDefaultsValidatesTier(t *testing.T) {
	svc := tenant.NewService(&mocks.TenantRepository{}, nil, defaults, nil)
	_, err := svc.SetDefaults(context.Background(), "t1", "VIC", "extreme", "admin")
	require.ErrorIs(t, err, tenant.ErrInvalidInput)
}

func TestPricingPolicy(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.TenantRepository{}
	rate := decimal.NewFromInt(42)
	repo.On("Get", ctx, "t1").Return(&tenant.Settings{TenantID: "t1", FallbackRate: &rate, CatalogueDefaults: true}, nil)
	repo.On("Get", ctx, "t2").Return(nil, repository.ErrNotFound)

	svc := tenant.NewService(repo, nil, defaults, nil)
	policy, err := svc.PricingPolicy(ctx, "t1")
	require.NoError(t, err)
	require.True(t, policy.CatalogueDefaults)
	require.True(t, policy.FallbackRate.Equal(rate))

	policy, err = svc.PricingPolicy(ctx, "t2")
	require.NoError(t, err)
	require.False(t, policy.CatalogueDefaults)
	require.Nil(t, policy.FallbackRate)
}
