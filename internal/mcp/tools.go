package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/domain/generation"
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/shopspring/decimal"
)

const (
	dateLayout         = "2006-01-02"
	defaultSearchLimit = 20
)

// toolFunc handles one tool call for an authenticated tenant.
type toolFunc[In any] func(ctx context.Context, tenantID string, in In) (any, error)

// addTool registers a tool whose result is returned as JSON text. Domain
// errors are reported as tool errors carrying an APIError payload.
func addTool[In any](server *sdkmcp.Server, logger *slog.Logger, name, description string, fn toolFunc[In]) {
	tool := &sdkmcp.Tool{Name: name, Description: description}
	sdkmcp.AddTool(server, tool, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
		tenantID := getTenantID(ctx)
		if tenantID == "" {
			return errorResult(MapError(ErrUnauthorized)), nil, nil
		}

		out, err := fn(ctx, tenantID, in)
		if err != nil {
			apiErr := MapError(err)
			if apiErr.Code == "INTERNAL" {
				logger.Error("tool failed", "tool", name, "tenant_id", tenantID, "error", err)
			} else {
				logger.Debug("tool rejected", "tool", name, "tenant_id", tenantID, "code", apiErr.Code, "error", err)
			}
			return errorResult(apiErr), nil, nil
		}
		return jsonResult(out)
	})
}

func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func errorResult(apiErr *APIError) *sdkmcp.CallToolResult {
	data, err := json.Marshal(apiErr)
	if err != nil {
		data = []byte(apiErr.Error())
	}
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}

func registerTools(server *sdkmcp.Server, svc Services, logger *slog.Logger) {
	h := &toolHandlers{svc: svc}

	addTool(server, logger, "generate_invoice",
		"Generate priced line items for one subject over an inclusive date range. Unpriced items raise price prompts in a generation session.",
		h.generateInvoice)
	addTool(server, logger, "generate_bulk_invoices",
		"Generate line items for many subjects in concurrent batches. Per-subject failures are reported without stopping the run.",
		h.generateBulk)
	addTool(server, logger, "resolve_price",
		"Walk the pricing cascade for one item: subject override, tenant override, catalogue cap, fallback rate.",
		h.resolvePrice)
	addTool(server, logger, "validate_line_items",
		"Check line items for structural problems and against catalogue price caps.",
		h.validateLineItems)

	addTool(server, logger, "create_price_prompt",
		"Ask a human for a price the cascade could not resolve.",
		h.createPrompt)
	addTool(server, logger, "list_pending_prompts",
		"List the pending price prompts of a generation session, oldest first.",
		h.listPendingPrompts)
	addTool(server, logger, "get_price_prompt",
		"Get a price prompt by id.",
		h.getPrompt)
	addTool(server, logger, "resolve_price_prompt",
		"Answer a pending price prompt, optionally saving the price as a tenant or subject override.",
		h.resolvePrompt)
	addTool(server, logger, "cancel_price_prompt",
		"Cancel a pending price prompt.",
		h.cancelPrompt)

	addTool(server, logger, "get_generation_session",
		"Get a generation session by id.",
		h.getSession)
	addTool(server, logger, "complete_session",
		"Complete a generation session. Fails while any of its prompts are pending.",
		h.completeSession)

	addTool(server, logger, "list_pricing_overrides",
		"List pricing overrides for the tenant.",
		h.listOverrides)
	addTool(server, logger, "get_pricing_override",
		"Get a pricing override with its change history.",
		h.getOverride)
	addTool(server, logger, "set_pricing_override",
		"Set a fixed tenant-wide or subject price for an item. Prices above the catalogue cap need approval.",
		h.setOverride)
	addTool(server, logger, "set_override_approval",
		"Approve or reject a pricing override.",
		h.setOverrideApproval)
	addTool(server, logger, "deactivate_pricing_override",
		"Deactivate a pricing override.",
		h.deactivateOverride)

	addTool(server, logger, "get_tenant_settings",
		"Get the tenant's billing defaults.",
		h.getTenantSettings)
	addTool(server, logger, "set_fallback_rate",
		"Set or clear the tenant's flat last-resort hourly rate.",
		h.setFallbackRate)
	addTool(server, logger, "set_catalogue_defaults",
		"Enable or disable billing items without an override at the catalogue cap.",
		h.setCatalogueDefaults)

	addTool(server, logger, "search_catalogue",
		"Full-text search of support items by name or code.",
		h.searchCatalogue)
	addTool(server, logger, "get_catalogue_item",
		"Get a support item with its price caps.",
		h.getCatalogueItem)
	addTool(server, logger, "get_audit_log",
		"List audit events for the tenant, newest first.",
		h.getAuditLog)
}

type toolHandlers struct {
	svc Services
}

func (h *toolHandlers) generateInvoice(ctx context.Context, tenantID string, p GenerateInvoiceParams) (any, error) {
	return h.svc.Generation.Generate(ctx, generation.Request{
		TenantID:         tenantID,
		SubjectID:        p.SubjectID,
		RequesterID:      getRequesterID(ctx, p.RequesterID),
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		SessionID:        p.SessionID,
		SkipPricePrompts: p.SkipPricePrompts,
		ExcludeExpenses:  p.ExcludeExpenses,
	})
}

func (h *toolHandlers) generateBulk(ctx context.Context, tenantID string, p GenerateBulkInvoicesParams) (any, error) {
	subjects := make([]generation.BulkSubject, 0, len(p.Subjects))
	for _, s := range p.Subjects {
		subjects = append(subjects, generation.BulkSubject{
			SubjectID: s.SubjectID,
			StartDate: s.StartDate,
			EndDate:   s.EndDate,
		})
	}
	return h.svc.Generation.GenerateBulk(ctx, generation.BulkRequest{
		TenantID:         tenantID,
		RequesterID:      getRequesterID(ctx, p.RequesterID),
		Subjects:         subjects,
		BatchSize:        p.BatchSize,
		SkipPricePrompts: p.SkipPricePrompts,
	})
}

func (h *toolHandlers) resolvePrice(ctx context.Context, tenantID string, p ResolvePriceParams) (any, error) {
	settings, err := h.svc.Tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	at, err := parseOptionalDate("date", p.Date)
	if err != nil {
		return nil, err
	}
	return h.svc.Resolver.Resolve(ctx, pricing.ResolveRequest{
		ItemCode:  p.ItemCode,
		TenantID:  tenantID,
		SubjectID: p.SubjectID,
		Region:    orRegion(p.Region, settings.DefaultRegion),
		Tier:      orTier(p.Tier, settings.DefaultTier),
		At:        at,
	})
}

func (h *toolHandlers) validateLineItems(ctx context.Context, tenantID string, p ValidateLineItemsParams) (any, error) {
	settings, err := h.svc.Tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	items := make([]lineitem.LineItem, 0, len(p.LineItems))
	for i, in := range p.LineItems {
		item, err := in.toLineItem(i)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return h.svc.Validator.ValidateBatch(ctx, items,
		orRegion(p.Region, settings.DefaultRegion),
		orTier(p.Tier, settings.DefaultTier)), nil
}

func (p LineItemParams) toLineItem(index int) (lineitem.LineItem, error) {
	date, err := parseOptionalDate(fmt.Sprintf("line_items[%d].date", index), p.Date)
	if err != nil {
		return lineitem.LineItem{}, err
	}
	quantity := decimal.NewFromFloat(p.Quantity)
	unitPrice := decimal.NewFromFloat(p.UnitPrice)
	item := lineitem.LineItem{
		ID:        p.ID,
		Date:      date,
		ItemCode:  strings.TrimSpace(p.ItemCode),
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Region:    catalogue.Region(p.Region),
		Tier:      catalogue.Tier(p.Tier),
	}
	if p.Hours != nil {
		item.Hours = decimal.NewFromFloat(*p.Hours)
	}
	if p.Rate != nil {
		item.Rate = decimal.NewFromFloat(*p.Rate)
	}
	if p.TotalPrice != nil {
		item.TotalPrice = decimal.NewFromFloat(*p.TotalPrice)
	} else {
		item.TotalPrice = lineitem.Total(quantity, unitPrice)
	}
	if p.Expense {
		item.Source = lineitem.Source{Kind: lineitem.SourceExpense, ID: p.ID}
		item.Provenance = lineitem.ProvenanceExpense
	}
	return item, nil
}

func (h *toolHandlers) createPrompt(ctx context.Context, tenantID string, p CreatePricePromptParams) (any, error) {
	req := prompt.CreateRequest{
		SessionID:    p.SessionID,
		TenantID:     tenantID,
		RequesterID:  getRequesterID(ctx, p.RequesterID),
		SubjectEmail: p.SubjectEmail,
		ItemCode:     p.ItemCode,
		SubjectID:    p.SubjectID,
		ItemName:     p.ItemName,
		Region:       catalogue.Region(p.Region),
		Tier:         catalogue.Tier(p.Tier),
		Reason:       p.Reason,
	}
	if p.SuggestedPrice != nil {
		price, err := prompt.ValidatePrice(*p.SuggestedPrice)
		if err != nil {
			return nil, err
		}
		req.SuggestedPrice = &price
	}
	if p.Cap != nil {
		limit := decimal.NewFromFloat(*p.Cap)
		req.Cap = &limit
	}
	h.fillFromCatalogue(ctx, tenantID, &req)
	return h.svc.Prompts.Create(ctx, req)
}

// fillFromCatalogue supplies the item name and cap when the caller left them
// out. Lookup failures leave the request unchanged.
func (h *toolHandlers) fillFromCatalogue(ctx context.Context, tenantID string, req *prompt.CreateRequest) {
	if req.ItemCode == "" || (req.ItemName != "" && req.Cap != nil) {
		return
	}
	item, err := h.svc.Catalogue.GetItem(ctx, req.ItemCode)
	if err != nil {
		return
	}
	if req.ItemName == "" {
		req.ItemName = item.Name
	}
	if req.Cap != nil {
		return
	}
	region, tier := req.Region, req.Tier
	if region == "" || tier == "" {
		settings, err := h.svc.Tenants.Get(ctx, tenantID)
		if err != nil {
			return
		}
		region = orRegion(string(region), settings.DefaultRegion)
		tier = orTier(string(tier), settings.DefaultTier)
	}
	if limit, ok := item.Cap(region, tier); ok {
		req.Cap = &limit
	}
}

func (h *toolHandlers) listPendingPrompts(ctx context.Context, tenantID string, p ListPendingPromptsParams) (any, error) {
	prompts, err := h.svc.Prompts.ListPending(ctx, tenantID, p.SessionID)
	if err != nil {
		return nil, err
	}
	if prompts == nil {
		prompts = []prompt.Prompt{}
	}
	return map[string]any{"prompts": prompts, "count": len(prompts)}, nil
}

func (h *toolHandlers) getPrompt(ctx context.Context, tenantID string, p PromptIDParams) (any, error) {
	return h.svc.Prompts.Get(ctx, tenantID, p.PromptID)
}

func (h *toolHandlers) resolvePrompt(ctx context.Context, tenantID string, p ResolvePricePromptParams) (any, error) {
	res, err := h.svc.Prompts.Resolve(ctx, tenantID, p.PromptID, prompt.ResolveRequest{
		Price:                p.Price,
		SaveAsTenantPricing:  p.SaveAsTenantPricing,
		SaveAsSubjectPricing: p.SaveAsSubjectPricing,
		Notes:                p.Notes,
		ResolvedBy:           getRequesterID(ctx, p.RequesterID),
	})
	if err != nil {
		return nil, err
	}
	out := ResolvePromptResponse{Prompt: res.Prompt}
	for _, change := range res.Overrides {
		out.Overrides = append(out.Overrides, OverrideChangeView{
			Outcome:  change.Outcome,
			Override: newOverrideView(change.Override),
		})
	}
	return out, nil
}

func (h *toolHandlers) cancelPrompt(ctx context.Context, tenantID string, p CancelPricePromptParams) (any, error) {
	return h.svc.Prompts.Cancel(ctx, tenantID, p.PromptID, p.Reason)
}

func (h *toolHandlers) getSession(ctx context.Context, tenantID string, p SessionIDParams) (any, error) {
	return h.svc.Sessions.Get(ctx, tenantID, p.SessionID)
}

func (h *toolHandlers) completeSession(ctx context.Context, tenantID string, p SessionIDParams) (any, error) {
	sess, err := h.svc.Sessions.Complete(ctx, tenantID, p.SessionID, getRequesterID(ctx, p.RequesterID))
	if err != nil {
		return nil, err
	}
	return CompleteSessionResponse{
		SessionID:   sess.ID,
		Status:      string(sess.Status),
		CompletedAt: sess.CompletedAt,
		CompletedBy: sess.CompletedBy,
	}, nil
}

func (h *toolHandlers) listOverrides(ctx context.Context, tenantID string, p ListOverridesParams) (any, error) {
	opts := pricing.ListOverridesOptions{
		ItemCode:   p.ItemCode,
		ActiveOnly: p.ActiveOnly,
		Limit:      p.Limit,
		Offset:     p.Offset,
	}
	switch {
	case p.TenantOnly && p.SubjectID != "":
		return nil, fmt.Errorf("%w: subject_id and tenant_only are exclusive", errInvalidArgument)
	case p.TenantOnly:
		tenantWide := ""
		opts.SubjectID = &tenantWide
	case p.SubjectID != "":
		opts.SubjectID = &p.SubjectID
	}
	if p.Approval != "" {
		approval, err := parseApproval(p.Approval)
		if err != nil {
			return nil, err
		}
		opts.Approval = &approval
	}

	overrides, err := h.svc.Overrides.List(ctx, tenantID, opts)
	if err != nil {
		return nil, err
	}
	views := newOverrideViews(overrides)
	return map[string]any{"overrides": views, "count": len(views)}, nil
}

func (h *toolHandlers) getOverride(ctx context.Context, tenantID string, p OverrideIDParams) (any, error) {
	o, err := h.svc.Overrides.Get(ctx, tenantID, p.OverrideID)
	if err != nil {
		return nil, err
	}
	return newOverrideView(o), nil
}

func (h *toolHandlers) setOverride(ctx context.Context, tenantID string, p SetOverrideParams) (any, error) {
	price, err := prompt.ValidatePrice(p.Price)
	if err != nil {
		return nil, err
	}
	item, err := h.svc.Catalogue.GetItem(ctx, p.ItemCode)
	if err != nil {
		return nil, err
	}
	settings, err := h.svc.Tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	req := pricing.UpsertRequest{
		Scope:    pricing.Scope{TenantID: tenantID, SubjectID: p.SubjectID},
		ItemCode: item.Code,
		Price:    price,
		Actor:    getRequesterID(ctx, p.RequesterID),
		Reason:   p.Reason,
	}
	if limit, ok := item.Cap(orRegion(p.Region, settings.DefaultRegion), orTier(p.Tier, settings.DefaultTier)); ok {
		req.Cap = &limit
	}

	o, outcome, err := h.svc.Overrides.Upsert(ctx, req)
	if err != nil {
		return nil, err
	}
	return OverrideChangeView{Outcome: outcome, Override: newOverrideView(o)}, nil
}

func (h *toolHandlers) setOverrideApproval(ctx context.Context, tenantID string, p SetOverrideApprovalParams) (any, error) {
	approval, err := parseApproval(p.Approval)
	if err != nil {
		return nil, err
	}
	o, err := h.svc.Overrides.SetApproval(ctx, tenantID, p.OverrideID, approval, getRequesterID(ctx, p.RequesterID), p.Reason)
	if err != nil {
		return nil, err
	}
	return newOverrideView(o), nil
}

func (h *toolHandlers) deactivateOverride(ctx context.Context, tenantID string, p DeactivateOverrideParams) (any, error) {
	o, err := h.svc.Overrides.Deactivate(ctx, tenantID, p.OverrideID, getRequesterID(ctx, p.RequesterID), p.Reason)
	if err != nil {
		return nil, err
	}
	return newOverrideView(o), nil
}

func (h *toolHandlers) getTenantSettings(ctx context.Context, tenantID string, _ GetTenantSettingsParams) (any, error) {
	return h.svc.Tenants.Get(ctx, tenantID)
}

func (h *toolHandlers) setFallbackRate(ctx context.Context, tenantID string, p SetFallbackRateParams) (any, error) {
	var rate *decimal.Decimal
	if p.Rate != nil {
		r, err := prompt.ValidatePrice(*p.Rate)
		if err != nil {
			return nil, err
		}
		rate = &r
	}
	return h.svc.Tenants.SetFallbackRate(ctx, tenantID, rate, getRequesterID(ctx, p.RequesterID))
}

func (h *toolHandlers) setCatalogueDefaults(ctx context.Context, tenantID string, p SetCatalogueDefaultsParams) (any, error) {
	return h.svc.Tenants.SetCatalogueDefaults(ctx, tenantID, p.Enabled, getRequesterID(ctx, p.RequesterID))
}

func (h *toolHandlers) searchCatalogue(ctx context.Context, _ string, p SearchCatalogueParams) (any, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	results, err := h.svc.Catalogue.Search(ctx, p.Query, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []catalogue.SearchResult{}
	}
	return map[string]any{"results": results, "count": len(results)}, nil
}

func (h *toolHandlers) getCatalogueItem(ctx context.Context, _ string, p GetCatalogueItemParams) (any, error) {
	item, err := h.svc.Catalogue.GetItem(ctx, p.ItemCode)
	if err != nil {
		return nil, err
	}
	return newCatalogueItemView(item), nil
}

func newCatalogueItemView(item *catalogue.SupportItem) CatalogueItemView {
	v := CatalogueItemView{
		Code:          item.Code,
		Name:          item.Name,
		Unit:          item.Unit,
		QuoteRequired: item.QuoteRequired,
		Caps:          []CapView{},
	}
	for _, tier := range []catalogue.Tier{catalogue.TierStandard, catalogue.TierHighIntensity} {
		regions := item.Caps[tier]
		for _, region := range slices.Sorted(maps.Keys(regions)) {
			v.Caps = append(v.Caps, CapView{Tier: tier, Region: region, Amount: regions[region]})
		}
	}
	return v
}

func (h *toolHandlers) getAuditLog(ctx context.Context, tenantID string, p GetAuditLogParams) (any, error) {
	opts := audit.ListOptions{
		EntityType: p.EntityType,
		EntityID:   p.EntityID,
		Limit:      p.Limit,
		Offset:     p.Offset,
	}
	if p.Action != "" {
		action := audit.Action(p.Action)
		opts.Action = &action
	}
	events, err := h.svc.Audit.List(ctx, tenantID, opts)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []audit.Event{}
	}
	return map[string]any{"events": events, "count": len(events)}, nil
}

func parseOptionalDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, &extract.DateError{Field: field, Value: value}
	}
	return t, nil
}

func parseApproval(value string) (pricing.Approval, error) {
	approval := pricing.Approval(strings.ToLower(strings.TrimSpace(value)))
	if !approval.Valid() {
		return "", fmt.Errorf("%w: approval must be pending, approved or rejected", errInvalidArgument)
	}
	return approval, nil
}

func orRegion(value string, fallback catalogue.Region) catalogue.Region {
	if value = strings.TrimSpace(value); value != "" {
		return catalogue.Region(value)
	}
	return fallback
}

func orTier(value string, fallback catalogue.Tier) catalogue.Tier {
	if value = strings.TrimSpace(value); value != "" {
		return catalogue.Tier(value)
	}
	return fallback
}
