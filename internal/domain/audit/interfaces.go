package audit

import "context"

// Recorder is the append-only audit log writer.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// Repository provides persistence operations for audit events.
type Repository interface {
	Recorder
	List(ctx context.Context, tenantID string, opts ListOptions) ([]Event, error)
}
