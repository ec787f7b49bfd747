package pricing

// ListOverridesOptions filters override listings.
type ListOverridesOptions struct {
	SubjectID  *string
	ItemCode   string
	Approval   *Approval
	ActiveOnly bool
	Limit      int
	Offset     int
}
