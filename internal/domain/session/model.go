package session

import "time"

// SessionStatus represents the lifecycle status of a generation session
type SessionStatus string

const (
	StatusOpen      SessionStatus = "open"
	StatusCompleted SessionStatus = "completed"
)

// Session groups the price prompts raised by one generation attempt
type Session struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenant_id"`
	SubjectID   string        `json:"subject_id,omitempty"`
	RequesterID string        `json:"requester_id"`
	StartDate   string        `json:"start_date,omitempty"`
	EndDate     string        `json:"end_date,omitempty"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CompletedBy string        `json:"completed_by,omitempty"`
}

// ListOptions provides filtering options for listing sessions
type ListOptions struct {
	SubjectID string
	Status    *SessionStatus
	Limit     int
	Offset    int
}
