package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/shopspring/decimal"
)

// CatalogueRepository implements catalogue.Repository for SQLite
type CatalogueRepository struct {
	db *DB
}

// NewCatalogueRepository creates a new CatalogueRepository
func NewCatalogueRepository(db *DB) *CatalogueRepository {
	return &CatalogueRepository{db: db}
}

// GetItem returns a support item with all of its caps
func (r *CatalogueRepository) GetItem(ctx context.Context, code string) (*catalogue.SupportItem, error) {
	var item catalogue.SupportItem
	err := r.db.QueryRowContext(ctx,
		`SELECT code, name, unit, quote_required FROM support_items WHERE code = ?`, code,
	).Scan(&item.Code, &item.Name, &item.Unit, &item.QuoteRequired)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get support item: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT tier, region, amount FROM support_item_caps WHERE item_code = ?`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load caps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tier catalogue.Tier
		var region catalogue.Region
		var amount decimal.Decimal
		if err := rows.Scan(&tier, &region, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan cap: %w", err)
		}
		item.SetCap(tier, region, amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating caps: %w", err)
	}

	return &item, nil
}

// Upsert inserts or replaces an item and its caps
func (r *CatalogueRepository) Upsert(ctx context.Context, item *catalogue.SupportItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO support_items (code, name, unit, quote_required, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			quote_required = excluded.quote_required,
			updated_at = excluded.updated_at
	`, item.Code, item.Name, item.Unit, boolInt(item.QuoteRequired))
	if err != nil {
		if isCheckViolation(err) {
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to upsert support item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM support_item_caps WHERE item_code = ?`, item.Code); err != nil {
		return fmt.Errorf("failed to clear caps: %w", err)
	}
	for tier, regions := range item.Caps {
		for region, amount := range regions {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO support_item_caps (item_code, tier, region, amount) VALUES (?, ?, ?, ?)`,
				item.Code, tier, region, amount.String())
			if err != nil {
				if isCheckViolation(err) {
					return repository.ErrInvalidInput
				}
				return fmt.Errorf("failed to insert cap: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit support item: %w", err)
	}
	return nil
}

// Search runs a full-text query over item codes and names
func (r *CatalogueRepository) Search(ctx context.Context, query string, limit int) ([]catalogue.SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return []catalogue.SearchResult{}, nil
	}

	q := `
		SELECT
			i.code, i.name, i.unit,
			bm25(support_items_fts) AS rank,
			snippet(support_items_fts, 1, '[', ']', '…', 8) AS snippet
		FROM support_items_fts
		JOIN support_items i ON i.rowid = support_items_fts.rowid
		WHERE support_items_fts MATCH ?
		ORDER BY rank
	`
	args := []interface{}{match}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search catalogue: %w", err)
	}
	defer rows.Close()

	results := []catalogue.SearchResult{}
	for rows.Next() {
		var res catalogue.SearchResult
		if err := rows.Scan(&res.Code, &res.Name, &res.Unit, &res.Rank, &res.Snippet); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}
	return results, nil
}

// ftsQuery turns free text into an FTS5 prefix query, quoting each term so
// punctuation in item codes is not parsed as syntax.
func ftsQuery(text string) string {
	fields := strings.Fields(text)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"*`)
	}
	return strings.Join(terms, " ")
}
