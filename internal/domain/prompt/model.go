package prompt

import (
	"time"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a price prompt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// Prompt asks a human for a price the cascade could not resolve.
type Prompt struct {
	ID             string           `json:"id"`
	SessionID      string           `json:"session_id"`
	TenantID       string           `json:"tenant_id"`
	SubjectID      string           `json:"subject_id,omitempty"`
	RequesterID    string           `json:"requester_id"`
	SubjectEmail   string           `json:"subject_email"`
	ItemCode       string           `json:"item_code"`
	ItemName       string           `json:"item_name,omitempty"`
	Region         catalogue.Region `json:"region,omitempty"`
	Tier           catalogue.Tier   `json:"tier,omitempty"`
	SuggestedPrice *decimal.Decimal `json:"suggested_price,omitempty"`
	Cap            *decimal.Decimal `json:"cap,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	Status         Status           `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
	Resolution     *Resolution      `json:"resolution,omitempty"`
	CancelReason   string           `json:"cancel_reason,omitempty"`
}

// Resolution is the human-supplied answer to a prompt.
type Resolution struct {
	Price                decimal.Decimal `json:"price"`
	SaveAsTenantPricing  bool            `json:"save_as_tenant_pricing"`
	SaveAsSubjectPricing bool            `json:"save_as_subject_pricing"`
	Notes                string          `json:"notes,omitempty"`
	ResolvedBy           string          `json:"resolved_by,omitempty"`
}
