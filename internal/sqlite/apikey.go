package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/supportbill/internal/repository"
)

// ErrUnknownAPIKey indicates the token does not match a stored key.
var ErrUnknownAPIKey = fmt.Errorf("unknown api key: %w", repository.ErrNotFound)

// APIKeyRepository maps bearer tokens to tenants. Only token hashes are stored.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Add stores a key for a tenant
func (r *APIKeyRepository) Add(ctx context.Context, token, tenantID, description string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, tenant_id, created_at, description) VALUES (?, ?, ?, ?)`,
		hashToken(token), tenantID, time.Now(), description)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to add api key: %w", err)
	}
	return nil
}

// ResolveTenant returns the tenant owning token and records its use
func (r *APIKeyRepository) ResolveTenant(ctx context.Context, token string) (string, error) {
	hash := hashToken(token)
	var tenantID string
	err := r.db.QueryRowContext(ctx, `SELECT tenant_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && tenantID == "") {
		return "", ErrUnknownAPIKey
	}
	if err != nil {
		return "", fmt.Errorf("resolving api key: %w", err)
	}
	_, _ = r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now(), hash)
	return tenantID, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
