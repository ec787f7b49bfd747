package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
)

// IssueCode identifies a validation finding.
type IssueCode string

const (
	IssueInvalidQuantity  IssueCode = "invalid_quantity"
	IssueInvalidUnitPrice IssueCode = "invalid_unit_price"
	IssueMissingItemCode  IssueCode = "missing_item_code"
	IssueExceedsCap       IssueCode = "exceeds_cap"
	IssueItemNotFound     IssueCode = "item_not_found"
	IssueQuoteRequired    IssueCode = "quote_required"
)

// Severity separates blocking issues from warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one actionable finding about a line item.
type Issue struct {
	Code     IssueCode `json:"code"`
	Severity Severity  `json:"severity"`
	Field    string    `json:"field,omitempty"`
	Message  string    `json:"message"`
}

// ItemResult is the validation outcome for the line item at the same index.
type ItemResult struct {
	Index           int              `json:"index"`
	LineItemID      string           `json:"line_item_id,omitempty"`
	ItemCode        string           `json:"item_code"`
	Valid           bool             `json:"valid"`
	Cap             *decimal.Decimal `json:"cap,omitempty"`
	CompliantAmount decimal.Decimal  `json:"compliant_amount"`
	Issues          []Issue          `json:"issues,omitempty"`
}

// Summary aggregates a validated batch.
type Summary struct {
	TotalItems           int             `json:"total_items"`
	ValidItems           int             `json:"valid_items"`
	InvalidItems         int             `json:"invalid_items"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	CompliantAmount      decimal.Decimal `json:"compliant_amount"`
	CompliancePercentage decimal.Decimal `json:"compliance_percentage"`
}

// BatchResult pairs each input line item with its result by index.
type BatchResult struct {
	IsValid  bool         `json:"is_valid"`
	Items    []ItemResult `json:"items"`
	Summary  Summary      `json:"summary"`
	Degraded bool         `json:"degraded"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Validator checks line items structurally and against catalogue caps.
type Validator struct {
	catalogue CatalogueLookup
	logger    *slog.Logger
}

// NewValidator creates a validator.
func NewValidator(lookup CatalogueLookup, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{catalogue: lookup, logger: logger}
}

// ValidateBatch validates items. Result.Items[i] always describes items[i]. If
// the catalogue cannot be read, cap checks are skipped for the rest of the
// batch and a warning is attached.
func (v *Validator) ValidateBatch(ctx context.Context, items []lineitem.LineItem, defaultRegion catalogue.Region, defaultTier catalogue.Tier) BatchResult {
	results := make([]ItemResult, len(items))
	out := BatchResult{IsValid: true, Items: results}
	total := decimal.Zero
	compliant := decimal.Zero
	cache := make(map[string]*catalogue.SupportItem)

	for i, item := range items {
		r := ItemResult{Index: i, LineItemID: item.ID, ItemCode: item.ItemCode}
		r.Issues = structuralIssues(item)

		if !out.Degraded && !item.IsExpense() && strings.TrimSpace(item.ItemCode) != "" {
			issues, capAmount, err := v.capIssues(ctx, item, defaultRegion, defaultTier, cache)
			if err != nil {
				out.Degraded = true
				out.Warnings = append(out.Warnings,
					fmt.Sprintf("catalogue unavailable, cap checks skipped from item %d onward: %v", i, err))
				v.logger.Warn("price validation degraded to structural checks", "error", err)
			} else {
				r.Issues = append(r.Issues, issues...)
				r.Cap = capAmount
			}
		}

		r.Valid = !hasErrors(r.Issues)
		r.CompliantAmount = compliantAmount(item, r)

		total = total.Add(item.TotalPrice)
		compliant = compliant.Add(r.CompliantAmount)
		if r.Valid {
			out.Summary.ValidItems++
		} else {
			out.Summary.InvalidItems++
			out.IsValid = false
		}
		results[i] = r
	}

	out.Summary.TotalItems = len(items)
	out.Summary.TotalAmount = lineitem.Round(total)
	out.Summary.CompliantAmount = lineitem.Round(compliant)
	out.Summary.CompliancePercentage = lineitem.Percentage(compliant, total)
	return out
}

func structuralIssues(item lineitem.LineItem) []Issue {
	var issues []Issue
	if !item.Quantity.IsPositive() {
		issues = append(issues, Issue{
			Code: IssueInvalidQuantity, Severity: SeverityError, Field: "quantity",
			Message: fmt.Sprintf("quantity must be greater than 0, got %s", item.Quantity.String()),
		})
	}
	if !item.UnitPrice.IsPositive() {
		issues = append(issues, Issue{
			Code: IssueInvalidUnitPrice, Severity: SeverityError, Field: "unit_price",
			Message: fmt.Sprintf("unit price must be greater than 0, got %s", item.UnitPrice.StringFixed(2)),
		})
	}
	if strings.TrimSpace(item.ItemCode) == "" {
		issues = append(issues, Issue{
			Code: IssueMissingItemCode, Severity: SeverityError, Field: "item_code",
			Message: "item code is required",
		})
	}
	return issues
}

func (v *Validator) capIssues(ctx context.Context, item lineitem.LineItem, defaultRegion catalogue.Region, defaultTier catalogue.Tier, cache map[string]*catalogue.SupportItem) ([]Issue, *decimal.Decimal, error) {
	entry, seen := cache[item.ItemCode]
	if !seen {
		found, err := v.catalogue.GetItem(ctx, item.ItemCode)
		switch {
		case err == nil:
			entry = found
		case errors.Is(err, catalogue.ErrItemNotFound), errors.Is(err, repository.ErrNotFound):
			entry = nil
		default:
			return nil, nil, err
		}
		cache[item.ItemCode] = entry
	}

	if entry == nil {
		return []Issue{{
			Code: IssueItemNotFound, Severity: SeverityError, Field: "item_code",
			Message: fmt.Sprintf("support item %s not found in catalogue", item.ItemCode),
		}}, nil, nil
	}

	var issues []Issue
	if entry.QuoteRequired {
		issues = append(issues, Issue{
			Code: IssueQuoteRequired, Severity: SeverityWarning, Field: "item_code",
			Message: fmt.Sprintf("support item %s requires a quote", item.ItemCode),
		})
	}

	region := item.Region
	if region == "" {
		region = defaultRegion
	}
	tier := item.Tier
	if tier == "" {
		tier = defaultTier
	}
	capAmount, ok := entry.Cap(region, tier)
	if !ok {
		return issues, nil, nil
	}

	rate := item.CheckedRate()
	if rate.GreaterThan(capAmount) {
		issues = append(issues, Issue{
			Code: IssueExceedsCap, Severity: SeverityError, Field: "unit_price",
			Message: fmt.Sprintf("price %s exceeds the %s cap of %s for %s in region %s",
				rate.StringFixed(2), tier, capAmount.StringFixed(2), item.ItemCode, region),
		})
	}
	return issues, &capAmount, nil
}

// compliantAmount is the item total clamped to its cap. Items that cannot be
// billed at all contribute nothing.
func compliantAmount(item lineitem.LineItem, r ItemResult) decimal.Decimal {
	for _, is := range r.Issues {
		if is.Severity == SeverityError && is.Code != IssueExceedsCap {
			return decimal.Zero
		}
	}
	rate := item.CheckedRate()
	if r.Cap == nil || !rate.GreaterThan(*r.Cap) || rate.IsZero() {
		return item.TotalPrice
	}
	return lineitem.Round(item.TotalPrice.Mul(*r.Cap).Div(rate))
}

func hasErrors(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}
