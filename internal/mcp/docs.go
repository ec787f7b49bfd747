package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `supportbill turns rostered support time and approved expenses into priced invoice line items.

Core concepts:
- Subject: the person receiving support. Invoices are generated per subject over an inclusive date range.
- Support item: a catalogue entry (code, unit, caps per region and tier).
- Pricing cascade: subject override, then tenant override, then catalogue cap (when the tenant enables catalogue defaults), then the tenant fallback rate.
- Price prompt: raised when the cascade finds no price. Resolve it with a price to finish the invoice.
- Generation session: groups the prompts of one generation. Complete it once no prompts are pending.

Default workflow:
1) generate_invoice (or generate_bulk_invoices) for the period.
2) If status is awaiting_prices, call list_pending_prompts with the session_id.
3) resolve_price_prompt for each, saving as tenant or subject pricing when the price should stick.
4) generate_invoice again with the same session_id; the saved prices now apply.
5) complete_session when every prompt is resolved or cancelled.

Transport notes:
- HTTP: authenticate with a bearer api key; pass the acting user in the X-Requester-Id header.
- Stdio: pass the acting user via _meta.requester_id. Tools that write also accept requester_id.

Docs:
- supportbill://docs/index
- supportbill://docs/pricing
- supportbill://docs/workflows/price-prompts
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "supportbill://docs/index",
		Name:        "docs_index",
		Title:       "supportbill docs index",
		Description: "Entry point: what each tool group does and which doc to read next.",
		Content: `# supportbill: Agent Docs Index

## Tool groups

- Generation: ` + "`generate_invoice`" + `, ` + "`generate_bulk_invoices`" + `.
- Pricing: ` + "`resolve_price`" + `, ` + "`validate_line_items`" + `, ` + "`list_pricing_overrides`" + `, ` + "`set_pricing_override`" + `, ` + "`set_override_approval`" + `, ` + "`deactivate_pricing_override`" + `.
- Prompts: ` + "`list_pending_prompts`" + `, ` + "`resolve_price_prompt`" + `, ` + "`cancel_price_prompt`" + `, ` + "`complete_session`" + `.
- Tenant: ` + "`get_tenant_settings`" + `, ` + "`set_fallback_rate`" + `, ` + "`set_catalogue_defaults`" + `.
- Reference: ` + "`search_catalogue`" + `, ` + "`get_catalogue_item`" + `, ` + "`get_audit_log`" + `.

## Docs

- ` + "`supportbill://docs/pricing`" + ` explains the cascade, caps and approval.
- ` + "`supportbill://docs/workflows/price-prompts`" + ` walks through resolving missing prices.

## Errors

Tool errors are JSON objects with ` + "`code`" + `, ` + "`message`" + ` and usually ` + "`recovery_hint`" + `.
VALIDATION_ERROR lists every failing field in ` + "`details.fields`" + `.
`,
	},
	{
		URI:         "supportbill://docs/pricing",
		Name:        "docs_pricing",
		Title:       "Pricing cascade",
		Description: "How a price is chosen for an item, and how caps and approval work.",
		Content: `# Pricing cascade

For each item the first tier that yields a price wins:

1. Subject override: active, approved, effective on the service date.
2. Tenant override: same rules, tenant-wide.
3. Catalogue default: the cap for the region and tier, only when the tenant enabled catalogue defaults.
4. Fallback rate: the tenant's flat hourly rate, if set.

Otherwise the item is missing a price and a prompt is raised.

## Caps

Each catalogue item has caps per region and tier. A missing high_intensity cap falls back to standard.
Overrides above the cap are stored pending approval and are not used until approved.
` + "`validate_line_items`" + ` reports issue code ` + "`exceeds_cap`" + ` and the compliant amount (total clamped to the cap).

## Overrides

Setting the same price again is a no-op. A different price bumps the version and adds a history entry.
There is at most one active override per scope and item.
`,
	},
	{
		URI:         "supportbill://docs/workflows/price-prompts",
		Name:        "docs_workflow_price_prompts",
		Title:       "Workflow: price prompts",
		Description: "Resolving missing prices and completing a generation session.",
		Content: `# Workflow: price prompts

1. A generation result with status awaiting_prices lists its prompts and a session_id.
2. Each prompt covers one item code, region and tier. Its cap, when known, is a ceiling for the price.
3. ` + "`resolve_price_prompt`" + ` with ` + "`save_as_subject_pricing`" + ` stores the price for that subject only.
   ` + "`save_as_tenant_pricing`" + ` stores it for every subject of the tenant.
4. Re-run ` + "`generate_invoice`" + ` with the same session_id. Prompts are not raised twice for the same item.
5. ` + "`complete_session`" + ` fails with PENDING_PROMPTS while any prompt is pending; cancel prompts that should not be billed.

Resolving an already-resolved prompt with the same price succeeds without changes. A different price fails with INVALID_TRANSITION.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
