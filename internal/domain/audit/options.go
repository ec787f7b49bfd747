package audit

// ListOptions provides filtering options for listing audit events.
type ListOptions struct {
	EntityType string
	EntityID   string
	Action     *Action
	Limit      int
	Offset     int
}
