package mcp

import (
	"time"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/shopspring/decimal"
)

// Tool inputs. Money is accepted as JSON numbers; fields without omitempty
// are required by the inferred input schema.

type GenerateInvoiceParams struct {
	SubjectID        string `json:"subject_id" jsonschema:"subject (participant) to bill"`
	StartDate        string `json:"start_date" jsonschema:"first day of the billing period as YYYY-MM-DD"`
	EndDate          string `json:"end_date" jsonschema:"last day of the billing period as YYYY-MM-DD (inclusive)"`
	SessionID        string `json:"session_id,omitempty" jsonschema:"open generation session to continue; omit to start a new one"`
	SkipPricePrompts bool   `json:"skip_price_prompts,omitempty" jsonschema:"drop unpriced items instead of raising price prompts"`
	ExcludeExpenses  bool   `json:"exclude_expenses,omitempty" jsonschema:"leave reimbursable expenses off the invoice"`
	RequesterID      string `json:"requester_id,omitempty" jsonschema:"acting user; defaults to the transport requester"`
}

type BulkSubjectParams struct {
	SubjectID string `json:"subject_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type GenerateBulkInvoicesParams struct {
	Subjects         []BulkSubjectParams `json:"subjects" jsonschema:"subjects with their billing periods"`
	BatchSize        int                 `json:"batch_size,omitempty" jsonschema:"subjects processed concurrently per batch (1 to 50)"`
	SkipPricePrompts bool                `json:"skip_price_prompts,omitempty"`
	RequesterID      string              `json:"requester_id,omitempty"`
}

type ResolvePriceParams struct {
	ItemCode  string `json:"item_code" jsonschema:"support item code"`
	SubjectID string `json:"subject_id,omitempty" jsonschema:"subject whose overrides apply; omit for tenant pricing"`
	Region    string `json:"region,omitempty" jsonschema:"pricing region; defaults to the tenant default"`
	Tier      string `json:"tier,omitempty" jsonschema:"standard or high_intensity; defaults to the tenant default"`
	Date      string `json:"date,omitempty" jsonschema:"service date as YYYY-MM-DD; defaults to today"`
}

type LineItemParams struct {
	ID         string   `json:"id,omitempty"`
	ItemCode   string   `json:"item_code"`
	Date       string   `json:"date,omitempty" jsonschema:"service date as YYYY-MM-DD"`
	Hours      *float64 `json:"hours,omitempty"`
	Quantity   float64  `json:"quantity"`
	Rate       *float64 `json:"rate,omitempty" jsonschema:"per-unit rate checked against the cap; defaults to unit_price"`
	UnitPrice  float64  `json:"unit_price"`
	TotalPrice *float64 `json:"total_price,omitempty" jsonschema:"defaults to quantity times unit_price"`
	Region     string   `json:"region,omitempty"`
	Tier       string   `json:"tier,omitempty"`
	Expense    bool     `json:"expense,omitempty" jsonschema:"true for reimbursable expenses which skip cap checks"`
}

type ValidateLineItemsParams struct {
	LineItems []LineItemParams `json:"line_items"`
	Region    string           `json:"region,omitempty" jsonschema:"region for items without one; defaults to the tenant default"`
	Tier      string           `json:"tier,omitempty" jsonschema:"tier for items without one; defaults to the tenant default"`
}

// CreatePricePromptParams leaves every field optional in the schema so that
// the service can report all missing fields in one error.
type CreatePricePromptParams struct {
	SessionID      string   `json:"session_id,omitempty"`
	SubjectEmail   string   `json:"subject_email,omitempty"`
	ItemCode       string   `json:"item_code,omitempty"`
	SubjectID      string   `json:"subject_id,omitempty"`
	ItemName       string   `json:"item_name,omitempty"`
	Region         string   `json:"region,omitempty"`
	Tier           string   `json:"tier,omitempty"`
	SuggestedPrice *float64 `json:"suggested_price,omitempty"`
	Cap            *float64 `json:"cap,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	RequesterID    string   `json:"requester_id,omitempty"`
}

type ListPendingPromptsParams struct {
	SessionID string `json:"session_id" jsonschema:"generation session whose prompts to list"`
}

type PromptIDParams struct {
	PromptID string `json:"prompt_id"`
}

type ResolvePricePromptParams struct {
	PromptID             string  `json:"prompt_id"`
	Price                float64 `json:"price" jsonschema:"agreed unit price, 0 or more"`
	SaveAsTenantPricing  bool    `json:"save_as_tenant_pricing,omitempty" jsonschema:"also store the price as a tenant-wide override"`
	SaveAsSubjectPricing bool    `json:"save_as_subject_pricing,omitempty" jsonschema:"also store the price as an override for the prompt's subject"`
	Notes                string  `json:"notes,omitempty"`
	RequesterID          string  `json:"requester_id,omitempty"`
}

type CancelPricePromptParams struct {
	PromptID string `json:"prompt_id"`
	Reason   string `json:"reason,omitempty"`
}

type SessionIDParams struct {
	SessionID   string `json:"session_id"`
	RequesterID string `json:"requester_id,omitempty"`
}

type ListOverridesParams struct {
	SubjectID  string `json:"subject_id,omitempty" jsonschema:"only overrides for this subject"`
	TenantOnly bool   `json:"tenant_only,omitempty" jsonschema:"only tenant-wide overrides"`
	ItemCode   string `json:"item_code,omitempty"`
	Approval   string `json:"approval,omitempty" jsonschema:"pending, approved or rejected"`
	ActiveOnly bool   `json:"active_only,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

type OverrideIDParams struct {
	OverrideID string `json:"override_id"`
}

type SetOverrideParams struct {
	ItemCode    string  `json:"item_code"`
	Price       float64 `json:"price" jsonschema:"fixed unit price, 0 or more"`
	SubjectID   string  `json:"subject_id,omitempty" jsonschema:"subject to price; omit for a tenant-wide price"`
	Region      string  `json:"region,omitempty" jsonschema:"region whose cap decides whether approval is needed"`
	Tier        string  `json:"tier,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	RequesterID string  `json:"requester_id,omitempty"`
}

type SetOverrideApprovalParams struct {
	OverrideID  string `json:"override_id"`
	Approval    string `json:"approval" jsonschema:"approved or rejected"`
	Reason      string `json:"reason,omitempty"`
	RequesterID string `json:"requester_id,omitempty"`
}

type DeactivateOverrideParams struct {
	OverrideID  string `json:"override_id"`
	Reason      string `json:"reason,omitempty"`
	RequesterID string `json:"requester_id,omitempty"`
}

type GetTenantSettingsParams struct{}

type SetFallbackRateParams struct {
	Rate        *float64 `json:"rate,omitempty" jsonschema:"flat hourly rate; omit to clear"`
	RequesterID string   `json:"requester_id,omitempty"`
}

type SetCatalogueDefaultsParams struct {
	Enabled     bool   `json:"enabled" jsonschema:"bill items without an override at the catalogue cap"`
	RequesterID string `json:"requester_id,omitempty"`
}

type SearchCatalogueParams struct {
	Query string `json:"query" jsonschema:"words or item code fragments"`
	Limit int    `json:"limit,omitempty"`
}

type GetCatalogueItemParams struct {
	ItemCode string `json:"item_code"`
}

type GetAuditLogParams struct {
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Action     string `json:"action,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// OverrideView flattens an override's mode for clients.
type OverrideView struct {
	ID            string                 `json:"id"`
	TenantID      string                 `json:"tenant_id"`
	SubjectID     string                 `json:"subject_id,omitempty"`
	ItemCode      string                 `json:"item_code"`
	Mode          pricing.ModeKind       `json:"mode"`
	Price         *decimal.Decimal       `json:"price,omitempty"`
	Factor        *decimal.Decimal       `json:"factor,omitempty"`
	BasedOnTier   catalogue.Tier         `json:"based_on_tier,omitempty"`
	EffectiveFrom time.Time              `json:"effective_from"`
	EffectiveTo   *time.Time             `json:"effective_to,omitempty"`
	Approval      pricing.Approval       `json:"approval"`
	Active        bool                   `json:"active"`
	Version       int64                  `json:"version"`
	CreatedBy     string                 `json:"created_by"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	History       []pricing.HistoryEntry `json:"history,omitempty"`
}

func newOverrideView(o *pricing.Override) OverrideView {
	v := OverrideView{
		ID:            o.ID,
		TenantID:      o.Scope.TenantID,
		SubjectID:     o.Scope.SubjectID,
		ItemCode:      o.ItemCode,
		EffectiveFrom: o.EffectiveFrom,
		EffectiveTo:   o.EffectiveTo,
		Approval:      o.Approval,
		Active:        o.Active,
		Version:       o.Version,
		CreatedBy:     o.CreatedBy,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		History:       o.History,
	}
	switch m := o.Mode.(type) {
	case pricing.Fixed:
		v.Mode = pricing.ModeFixed
		v.Price = &m.Amount
	case pricing.Multiplier:
		v.Mode = pricing.ModeMultiplier
		v.Factor = &m.Factor
		v.BasedOnTier = m.BasedOnTier
	}
	return v
}

func newOverrideViews(overrides []pricing.Override) []OverrideView {
	out := make([]OverrideView, 0, len(overrides))
	for i := range overrides {
		out = append(out, newOverrideView(&overrides[i]))
	}
	return out
}

// OverrideChangeView is one override written by a tool call.
type OverrideChangeView struct {
	Outcome  pricing.Outcome `json:"outcome"`
	Override OverrideView    `json:"override"`
}

// ResolvePromptResponse is returned by resolve_price_prompt.
type ResolvePromptResponse struct {
	Prompt    *prompt.Prompt       `json:"prompt"`
	Overrides []OverrideChangeView `json:"overrides,omitempty"`
}

// CompleteSessionResponse is returned by complete_session.
type CompleteSessionResponse struct {
	SessionID   string     `json:"session_id"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`
}

// CatalogueItemView lists caps as rows instead of nested maps.
type CatalogueItemView struct {
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	Unit          catalogue.Unit `json:"unit"`
	QuoteRequired bool           `json:"quote_required"`
	Caps          []CapView      `json:"caps"`
}

type CapView struct {
	Tier   catalogue.Tier   `json:"tier"`
	Region catalogue.Region `json:"region"`
	Amount decimal.Decimal  `json:"amount"`
}
