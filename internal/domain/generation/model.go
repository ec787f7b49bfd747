package generation

import (
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/shopspring/decimal"
)

// Status describes whether a generation result can be invoiced as is.
type Status string

const (
	StatusReady          Status = "ready"
	StatusAwaitingPrices Status = "awaiting_prices"
)

// Request asks for one subject's line items over a date range.
type Request struct {
	TenantID         string `json:"tenant_id" validate:"required"`
	SubjectID        string `json:"subject_id" validate:"required"`
	RequesterID      string `json:"requester_id" validate:"required"`
	StartDate        string `json:"start_date" validate:"required"`
	EndDate          string `json:"end_date" validate:"required"`
	SessionID        string `json:"session_id"`
	SkipPricePrompts bool   `json:"skip_price_prompts"`
	ExcludeExpenses  bool   `json:"exclude_expenses"`
}

// Summary breaks a result down by service and expense origin.
type Summary struct {
	ItemCount        int             `json:"item_count"`
	ServiceItemCount int             `json:"service_item_count"`
	ExpenseItemCount int             `json:"expense_item_count"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ServiceAmount    decimal.Decimal `json:"service_amount"`
	ExpenseAmount    decimal.Decimal `json:"expense_amount"`
	TotalHours       decimal.Decimal `json:"total_hours"`
	UnpricedCount    int             `json:"unpriced_count"`
	DroppedCount     int             `json:"dropped_count"`
}

// Result is the outcome of a single-subject run. LineItems holds only priced
// items; items awaiting a price are listed in Unpriced and covered by Prompts.
type Result struct {
	SessionID  string              `json:"session_id"`
	TenantID   string              `json:"tenant_id"`
	SubjectID  string              `json:"subject_id"`
	StartDate  string              `json:"start_date"`
	EndDate    string              `json:"end_date"`
	Status     Status              `json:"status"`
	LineItems  []lineitem.LineItem `json:"line_items"`
	Unpriced   []lineitem.LineItem `json:"unpriced,omitempty"`
	Validation pricing.BatchResult `json:"validation"`
	Summary    Summary             `json:"summary"`
	Prompts    []prompt.Prompt     `json:"prompts,omitempty"`
}

func summarize(items []lineitem.LineItem) Summary {
	s := Summary{
		TotalAmount:   decimal.Zero,
		ServiceAmount: decimal.Zero,
		ExpenseAmount: decimal.Zero,
		TotalHours:    decimal.Zero,
	}
	for _, it := range items {
		s.ItemCount++
		s.TotalAmount = s.TotalAmount.Add(it.TotalPrice)
		if it.IsExpense() {
			s.ExpenseItemCount++
			s.ExpenseAmount = s.ExpenseAmount.Add(it.TotalPrice)
			continue
		}
		s.ServiceItemCount++
		s.ServiceAmount = s.ServiceAmount.Add(it.TotalPrice)
		s.TotalHours = s.TotalHours.Add(it.Hours)
	}
	return s
}

// BulkSubject is one subject of a bulk run.
type BulkSubject struct {
	SubjectID string `json:"subject_id" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

// BulkRequest asks for many subjects to be generated in batches. A zero
// BatchSize uses the configured default.
type BulkRequest struct {
	TenantID         string        `json:"tenant_id" validate:"required"`
	RequesterID      string        `json:"requester_id" validate:"required"`
	Subjects         []BulkSubject `json:"subjects" validate:"required,min=1,dive"`
	BatchSize        int           `json:"batch_size"`
	SkipPricePrompts bool          `json:"skip_price_prompts"`
}

// SubjectSuccess summarizes one subject that generated.
type SubjectSuccess struct {
	SubjectID      string          `json:"subject_id"`
	SessionID      string          `json:"session_id"`
	Status         Status          `json:"status"`
	ItemCount      int             `json:"item_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	ServiceAmount  decimal.Decimal `json:"service_amount"`
	ExpenseAmount  decimal.Decimal `json:"expense_amount"`
	PendingPrompts int             `json:"pending_prompts"`
	DroppedItems   int             `json:"dropped_items"`
	Compliance     decimal.Decimal `json:"compliance_percentage"`
}

// SubjectFailure records why a subject did not generate.
type SubjectFailure struct {
	SubjectID string `json:"subject_id"`
	Error     string `json:"error"`
}

// BulkSummary totals succeeded subjects only.
type BulkSummary struct {
	TotalItems     int             `json:"total_items"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	ServiceAmount  decimal.Decimal `json:"service_amount"`
	ExpenseAmount  decimal.Decimal `json:"expense_amount"`
	PendingPrompts int             `json:"pending_prompts"`
	Batches        int             `json:"batches"`
}

// BulkResult aggregates a bulk run. Success is false only when the run itself
// could not proceed; per-subject failures are reported in Failures.
type BulkResult struct {
	Success   bool             `json:"success"`
	Processed int              `json:"processed"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Successes []SubjectSuccess `json:"successes"`
	Failures  []SubjectFailure `json:"failures"`
	Summary   BulkSummary      `json:"summary"`
}
