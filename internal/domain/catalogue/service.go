package catalogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rpggio/supportbill/internal/repository"
)

const defaultSearchLimit = 20

// Service exposes catalogue reads and imports.
type Service struct {
	items  Repository
	lookup Lookup
	logger *slog.Logger
}

// NewService creates a catalogue service. Reads go through lookup, which may be
// a cache in front of items; pass nil to read from items directly.
func NewService(items Repository, lookup Lookup, logger *slog.Logger) *Service {
	if lookup == nil {
		lookup = items
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{items: items, lookup: lookup, logger: logger}
}

// GetItem returns a support item by code.
func (s *Service) GetItem(ctx context.Context, code string) (*SupportItem, error) {
	item, err := s.lookup.GetItem(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("getting support item: %w", err)
	}
	return item, nil
}

// Search runs a full-text search over item codes and names.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.items.Search(ctx, query, limit)
}

// Import validates and upserts items, returning how many were written.
func (s *Service) Import(ctx context.Context, items []SupportItem) (int, error) {
	for i := range items {
		if err := validateItem(items[i]); err != nil {
			return 0, fmt.Errorf("item %d (%s): %w", i, items[i].Code, err)
		}
	}
	for i := range items {
		if err := s.items.Upsert(ctx, &items[i]); err != nil {
			return i, fmt.Errorf("importing %s: %w", items[i].Code, err)
		}
	}
	s.logger.Info("catalogue imported", "items", len(items))
	return len(items), nil
}

func validateItem(item SupportItem) error {
	if strings.TrimSpace(item.Code) == "" || strings.TrimSpace(item.Name) == "" {
		return ErrInvalidInput
	}
	if !item.Unit.Valid() {
		return fmt.Errorf("%w: unknown unit %q", ErrInvalidInput, item.Unit)
	}
	for tier, regions := range item.Caps {
		if !tier.Valid() {
			return fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, tier)
		}
		for region, amount := range regions {
			if amount.IsNegative() {
				return fmt.Errorf("%w: negative cap for %s/%s", ErrInvalidInput, tier, region)
			}
		}
	}
	return nil
}
