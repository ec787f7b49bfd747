package pricing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/repository/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func capped(code, amount string) *catalogue.SupportItem {
	item := &catalogue.SupportItem{Code: code, Name: code, Unit: catalogue.UnitHour}
	item.SetCap(catalogue.TierStandard, "R", dec(amount))
	return item
}

func line(code, qty, price string) lineitem.LineItem {
	q, p := dec(qty), dec(price)
	return lineitem.LineItem{
		ID:         code + "-" + qty + "-" + price,
		ItemCode:   code,
		Quantity:   q,
		Rate:       p,
		UnitPrice:  p,
		TotalPrice: lineitem.Total(q, p),
		Region:     "R",
		Tier:       catalogue.TierStandard,
	}
}

func TestValidateEmptyBatchIsFullyCompliant(t *testing.T) {
	v := pricing.NewValidator(&mocks.CatalogueLookup{}, nil)
	res := v.ValidateBatch(context.Background(), nil, "R", catalogue.TierStandard)
	require.True(t, res.IsValid)
	require.Empty(t, res.Items)
	require.Equal(t, "100", res.Summary.CompliancePercentage.String())
}

func TestValidateAllAtCap(t *testing.T) {
	lookup := &mocks.CatalogueLookup{}
	lookup.On("GetItem", mock.Anything, "A").Return(capped("A", "50"), nil)
	items := []lineitem.LineItem{line("A", "1", "50"), line("A", "2.5", "50")}

	res := pricing.NewValidator(lookup, nil).ValidateBatch(context.Background(), items, "R", catalogue.TierStandard)
	require.True(t, res.IsValid)
	require.Equal(t, "100", res.Summary.CompliancePercentage.String())
	require.Equal(t, "175.00", res.Summary.TotalAmount.StringFixed(2))
	lookup.AssertNumberOfCalls(t, "GetItem", 1)
}

func TestValidateOneItemAtDoubleCap(t *testing.T) {
	lookup := &mocks.CatalogueLookup{}
	lookup.On("GetItem", mock.Anything, "A").Return(capped("A", "50"), nil)
	items := []lineitem.LineItem{line("A", "1", "50"), line("A", "1", "100"), line("A", "1", "50")}

	res := pricing.NewValidator(lookup, nil).ValidateBatch(context.Background(), items, "R", catalogue.TierStandard)
	require.False(t, res.IsValid)
	require.Len(t, res.Items, 3)

	require.True(t, res.Items[0].Valid)
	require.False(t, res.Items[1].Valid)
	require.Equal(t, pricing.IssueExceedsCap, res.Items[1].Issues[0].Code)
	require.Contains(t, res.Items[1].Issues[0].Message, "100.00 exceeds the standard cap of 50.00")
	require.Equal(t, "50.00", res.Items[1].CompliantAmount.StringFixed(2))

	pct := res.Summary.CompliancePercentage
	require.True(t, pct.GreaterThan(decimal.Zero) && pct.LessThan(decimal.NewFromInt(100)))
	want := res.Summary.CompliantAmount.Div(res.Summary.TotalAmount).Mul(decimal.NewFromInt(100)).Round(2)
	require.True(t, pct.Equal(want))
	require.Equal(t, "75", pct.String())
	require.Equal(t, 2, res.Summary.ValidItems)
	require.Equal(t, 1, res.Summary.InvalidItems)
}

func TestValidateStructuralChecksAreIndependent(t *testing.T) {
	lookup := &mocks.CatalogueLookup{}
	lookup.On("GetItem", mock.Anything, "A").Return(capped("A", "50"), nil)
	bad := line("A", "0", "80")
	noCode := line("", "1", "10")

	res := pricing.NewValidator(lookup, nil).ValidateBatch(context.Background(), []lineitem.LineItem{bad, noCode}, "R", catalogue.TierStandard)
	codes := func(r pricing.ItemResult) []pricing.IssueCode {
		var out []pricing.IssueCode
		for _, is := range r.Issues {
			out = append(out, is.Code)
		}
		return out
	}
	require.ElementsMatch(t, []pricing.IssueCode{pricing.IssueInvalidQuantity, pricing.IssueExceedsCap}, codes(res.Items[0]))
	require.ElementsMatch(t, []pricing.IssueCode{pricing.IssueMissingItemCode}, codes(res.Items[1]))
	require.Equal(t, 0, res.Items[0].Index)
	require.Equal(t, 1, res.Items[1].Index)
}

func TestValidateNotFoundAndQuoteRequired(t *testing.T) {
	lookup := &mocks.CatalogueLookup{}
	quoted := capped("Q", "200")
	quoted.QuoteRequired = true
	lookup.On("GetItem", mock.Anything, "Q").Return(quoted, nil)
	lookup.On("GetItem", mock.Anything, "GONE").Return(nil, catalogue.ErrItemNotFound)

	res := pricing.NewValidator(lookup, nil).ValidateBatch(context.Background(),
		[]lineitem.LineItem{line("Q", "1", "150"), line("GONE", "1", "20")}, "R", catalogue.TierStandard)

	require.True(t, res.Items[0].Valid, "quote_required is a warning")
	require.Equal(t, pricing.IssueQuoteRequired, res.Items[0].Issues[0].Code)
	require.Equal(t, pricing.SeverityWarning, res.Items[0].Issues[0].Severity)

	require.False(t, res.Items[1].Valid)
	require.Equal(t, pricing.IssueItemNotFound, res.Items[1].Issues[0].Code)
	require.True(t, res.Items[1].CompliantAmount.IsZero())
}

func TestValidateUsesDefaultsWhenItemHasNoRegion(t *testing.T) {
	lookup := &mocks.CatalogueLookup{}
	lookup.On("GetItem", mock.Anything, "A").Return(capped("A", "50"), nil)
	it := line("A", "1", "60")
	it.Region = ""
	it.Tier = ""

	res := pricing.NewValidator(lookup, nil).ValidateBatch(context.Background(), []lineitem.LineItem{it}, "R", catalogue.TierStandard)
	require.Equal(t, pricing.IssueExceedsCap, res.Items[0].Issues[0].Code)
}

func TestValidateSkipsCapChecksForExpenses(t *testing.T) {
	lookup := &mocks.CatalogueLookup{}
	exp := line("E", "1", "300")
	exp.Source = lineitem.Source{Kind: lineitem.SourceExpense, ID: "e1"}

	res := pricing.NewValidator(lookup, nil).ValidateBatch(context.Background(), []lineitem.LineItem{exp}, "R", catalogue.TierStandard)
	require.True(t, res.IsValid)
	lookup.AssertNotCalled(t, "GetItem", mock.Anything, mock.Anything)
}

func TestValidateDegradesWhenCatalogueUnavailable(t *testing.T) {
	lookup := &mocks.CatalogueLookup{}
	lookup.On("GetItem", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	items := []lineitem.LineItem{line("A", "1", "500"), line("B", "0", "10")}
	res := pricing.NewValidator(lookup, nil).ValidateBatch(context.Background(), items, "R", catalogue.TierStandard)

	require.True(t, res.Degraded)
	require.Len(t, res.Warnings, 1)
	require.True(t, res.Items[0].Valid)
	require.False(t, res.Items[1].Valid)
	require.Equal(t, pricing.IssueInvalidQuantity, res.Items[1].Issues[0].Code)
	lookup.AssertNumberOfCalls(t, "GetItem", 1)
}
