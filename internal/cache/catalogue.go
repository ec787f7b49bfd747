// Package cache puts a Redis read-through cache in front of the support
// catalogue.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/metrics"
)

const keyPrefix = "supportbill:catalogue:"

// DefaultTTL is used when NewCatalogueCache is given a non-positive ttl.
const DefaultTTL = 10 * time.Minute

// CatalogueCache implements catalogue.Repository. Item reads are served from
// Redis when possible; any Redis failure falls through to the wrapped
// repository so the cache never fails a lookup on its own.
type CatalogueCache struct {
	next   catalogue.Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewClient creates a Redis client for addr.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})
}

// NewCatalogueCache wraps next. A nil client disables caching.
func NewCatalogueCache(next catalogue.Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CatalogueCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CatalogueCache{next: next, client: client, ttl: ttl, logger: logger}
}

func key(code string) string {
	return keyPrefix + code
}

// GetItem returns the cached item or loads and caches it.
func (c *CatalogueCache) GetItem(ctx context.Context, code string) (*catalogue.SupportItem, error) {
	if c.client == nil {
		return c.next.GetItem(ctx, code)
	}

	raw, err := c.client.Get(ctx, key(code)).Bytes()
	switch {
	case err == nil:
		var item catalogue.SupportItem
		if err := json.Unmarshal(raw, &item); err == nil {
			metrics.CatalogueCache.WithLabelValues("hit").Inc()
			return &item, nil
		}
		c.logger.Warn("discarding corrupt catalogue cache entry", "code", code)
	case errors.Is(err, redis.Nil):
		metrics.CatalogueCache.WithLabelValues("miss").Inc()
	default:
		metrics.CatalogueCache.WithLabelValues("error").Inc()
		c.logger.Warn("catalogue cache unavailable", "code", code, "error", err)
		return c.next.GetItem(ctx, code)
	}

	item, err := c.next.GetItem(ctx, code)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(item); err == nil {
		if err := c.client.Set(ctx, key(code), raw, c.ttl).Err(); err != nil {
			c.logger.Warn("failed to cache support item", "code", code, "error", err)
		}
	}
	return item, nil
}

// Upsert writes through and evicts the cached copy.
func (c *CatalogueCache) Upsert(ctx context.Context, item *catalogue.SupportItem) error {
	if err := c.next.Upsert(ctx, item); err != nil {
		return err
	}
	if c.client != nil {
		if err := c.client.Del(ctx, key(item.Code)).Err(); err != nil {
			c.logger.Warn("failed to evict support item", "code", item.Code, "error", err)
		}
	}
	return nil
}

// Search is not cached.
func (c *CatalogueCache) Search(ctx context.Context, query string, limit int) ([]catalogue.SearchResult, error) {
	return c.next.Search(ctx, query, limit)
}
