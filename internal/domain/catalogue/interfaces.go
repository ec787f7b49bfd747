package catalogue

import "context"

// Lookup is read-only access to the reference catalogue. GetItem returns
// ErrItemNotFound (or repository.ErrNotFound) when the code is unknown; any
// other error means the catalogue is unreachable.
type Lookup interface {
	GetItem(ctx context.Context, code string) (*SupportItem, error)
}

// Repository persists the catalogue.
type Repository interface {
	Lookup
	Upsert(ctx context.Context, item *SupportItem) error
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}
