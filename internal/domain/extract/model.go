package extract

import (
	"time"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/shopspring/decimal"
)

// DateLayout is the layout of dates in requests and storage.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d's calendar date lies within the range.
func (r DateRange) Contains(d time.Time) bool {
	day := civil(d)
	return !day.Before(civil(r.Start)) && !day.After(civil(r.End))
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDateRange parses two YYYY-MM-DD dates; start must not be after end.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, &DateError{Field: "start_date", Value: start}
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, &DateError{Field: "end_date", Value: end}
	}
	if s.After(e) {
		return DateRange{}, ErrStartAfterEnd
	}
	return DateRange{Start: s, End: e}, nil
}

// Subject is a client receiving billed services.
type Subject struct {
	ID       string           `json:"id"`
	TenantID string           `json:"tenant_id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Region   catalogue.Region `json:"region,omitempty"`
}

// Assignment links a subject to a service with a designated item code.
type Assignment struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenant_id"`
	SubjectID string           `json:"subject_id"`
	ItemCode  string           `json:"item_code"`
	Region    catalogue.Region `json:"region,omitempty"`
	Active    bool             `json:"active"`
	Schedule  []ScheduleEntry  `json:"schedule,omitempty"`
}

// ScheduleEntry is a planned or actual service occurrence.
type ScheduleEntry struct {
	ID            string    `json:"id"`
	AssignmentID  string    `json:"assignment_id"`
	Date          time.Time `json:"date"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	BreakMinutes  int       `json:"break_minutes"`
	HighIntensity bool      `json:"high_intensity"`
	ItemCode      string    `json:"item_code,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// WorkedTime is a raw time record for an assignment.
type WorkedTime struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	Date         time.Time `json:"date"`
	Start        string    `json:"start"`
	End          string    `json:"end"`
	BreakMinutes int       `json:"break_minutes"`
	Notes        string    `json:"notes,omitempty"`
}

// Expense is an approved, reimbursable expense from the expense feed.
type Expense struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	SubjectID   string          `json:"subject_id"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ItemCode    string          `json:"item_code,omitempty"`
}
