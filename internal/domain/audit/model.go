package audit

import "time"

// Action names an audited billing event.
type Action string

const (
	ActionInvoiceGenerated     Action = "invoice_generated"
	ActionBulkGenerated        Action = "bulk_invoices_generated"
	ActionPromptCreated        Action = "price_prompt_created"
	ActionPromptResolved       Action = "price_prompt_resolved"
	ActionPromptCancelled      Action = "price_prompt_cancelled"
	ActionOverrideCreated      Action = "pricing_override_created"
	ActionOverrideUpdated      Action = "pricing_override_updated"
	ActionOverrideApproval     Action = "pricing_override_approval"
	ActionOverrideDeactivated  Action = "pricing_override_deactivated"
	ActionSessionCompleted     Action = "generation_session_completed"
	ActionTenantSettingsChange Action = "tenant_settings_changed"
)

// Event is an entry in the append-only audit log.
type Event struct {
	ID         int64          `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Action     Action         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Actor      string         `json:"actor"`
	OldValues  map[string]any `json:"old_values,omitempty"`
	NewValues  map[string]any `json:"new_values,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
