package catalogue_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/rpggio/supportbill/internal/repository/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCapFallsBackToStandardTier(t *testing.T) {
	item := catalogue.SupportItem{Code: "X", Unit: catalogue.UnitHour}
	item.SetCap(catalogue.TierStandard, "NSW", decimal.RequireFromString("62.17"))

	amount, ok := item.Cap("NSW", catalogue.TierHighIntensity)
	require.True(t, ok)
	require.Equal(t, "62.17", amount.StringFixed(2))

	item.SetCap(catalogue.TierHighIntensity, "NSW", decimal.RequireFromString("70.00"))
	amount, ok = item.Cap("NSW", catalogue.TierHighIntensity)
	require.True(t, ok)
	require.Equal(t, "70.00", amount.StringFixed(2))

	_, ok = item.Cap("VIC", catalogue.TierStandard)
	require.False(t, ok)
}

func TestGetItemMapsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.CatalogueRepository{}
	repo.On("GetItem", ctx, "missing").Return(nil, repository.ErrNotFound)
	repo.On("GetItem", ctx, "broken").Return(nil, errors.New("disk gone"))

	svc := catalogue.NewService(repo, nil, nil)

	_, err := svc.GetItem(ctx, "missing")
	require.ErrorIs(t, err, catalogue.ErrItemNotFound)

	_, err = svc.GetItem(ctx, "broken")
	require.Error(t, err)
	require.NotErrorIs(t, err, catalogue.ErrItemNotFound)
}

func TestImportValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.CatalogueRepository{}
	svc := catalogue.NewService(repo, nil, nil)

	_, err := svc.Import(ctx, []catalogue.SupportItem{
		{Code: "A", Name: "ok", Unit: catalogue.UnitHour},
		{Code: "B", Name: "bad", Unit: "fortnight"},
	})
	require.ErrorIs(t, err, catalogue.ErrInvalidInput)
	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestImportUpsertsAll(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.CatalogueRepository{}
	repo.On("Upsert", ctx, mock.AnythingOfType("*catalogue.SupportItem")).Return(nil).Twice()
	svc := catalogue.NewService(repo, nil, nil)

	n, err := svc.Import(ctx, []catalogue.SupportItem{
		{Code: "A", Name: "one", Unit: catalogue.UnitHour},
		{Code: "B", Name: "two", Unit: catalogue.UnitEach},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	repo.AssertExpectations(t)
}

func TestSearchRequiresQuery(t *testing.T) {
	svc := catalogue.NewService(&mocks.CatalogueRepository{}, nil, nil)
	_, err := svc.Search(context.Background(), "  ", 0)
	require.ErrorIs(t, err, catalogue.ErrInvalidInput)
}

func TestParseYAML(t *testing.T) {
	doc := `
items:
  - code: 01_011_0107_1_1
    name: Assistance With Self-Care Activities - Standard - Weekday Daytime
    unit: hour
    caps:
      - {tier: standard, region: NSW, amount: "67.56"}
      - {tier: high_intensity, region: NSW, amount: "72.08"}
  - code: 07_001_0106_8_3
    name: Support Coordination
    unit: each
    quote_required: true
    caps:
      - {region: remote, amount: "100.14"}
`
	items, err := catalogue.ParseYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Equal(t, catalogue.UnitHour, items[0].Unit)
	hi, ok := items[0].Cap("NSW", catalogue.TierHighIntensity)
	require.True(t, ok)
	require.Equal(t, "72.08", hi.StringFixed(2))

	require.True(t, items[1].QuoteRequired)
	remote, ok := items[1].Cap("remote", catalogue.TierStandard)
	require.True(t, ok)
	require.Equal(t, "100.14", remote.StringFixed(2))
}

func TestParseYAMLRejectsBadAmount(t *testing.T) {
	_, err := catalogue.ParseYAML(strings.NewReader("items:\n  - code: X\n    name: x\n    unit: hour\n    caps:\n      - {region: NSW, amount: abc}\n"))
	require.ErrorIs(t, err, catalogue.ErrInvalidInput)
}
