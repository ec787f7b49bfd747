// Package app wires repositories, services and transports into a running
// billing server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/rpggio/supportbill/internal/cache"
	"github.com/rpggio/supportbill/internal/config"
	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/extract"
	"github.com/rpggio/supportbill/internal/domain/generation"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/domain/session"
	"github.com/rpggio/supportbill/internal/domain/tenant"
	"github.com/rpggio/supportbill/internal/mcp"
	"github.com/rpggio/supportbill/internal/sqlite"
	"github.com/rpggio/supportbill/internal/transport"
)

// mcpSessionTimeout closes idle streamable HTTP sessions.
const mcpSessionTimeout = 30 * time.Minute

// App holds every wired service.
type App struct {
	DB         *sqlite.DB
	Catalogue  *catalogue.Service
	Tenants    *tenant.Service
	Audit      *audit.Service
	Overrides  *pricing.Service
	Resolver   *pricing.Resolver
	Validator  *pricing.Validator
	Prompts    *prompt.Service
	Sessions   *session.Service
	Generation *generation.Service
	Roster     *sqlite.RosterRepository
	Expenses   *sqlite.ExpenseRepository
	APIKeys    *sqlite.APIKeyRepository

	cfg    config.Config
	redis  *redis.Client
	logger *slog.Logger
}

// New wires services over db and seeds configured fallback rates. The schema
// must already be migrated.
func New(ctx context.Context, db *sqlite.DB, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	a := &App{
		DB:       db,
		Roster:   sqlite.NewRosterRepository(db),
		Expenses: sqlite.NewExpenseRepository(db),
		APIKeys:  sqlite.NewAPIKeyRepository(db),
		cfg:      cfg,
		logger:   logger,
	}

	var items catalogue.Repository = sqlite.NewCatalogueRepository(db)
	if cfg.Cache.Addr != "" {
		a.redis = cache.NewClient(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("catalogue cache unreachable, reads fall through to sqlite", "addr", cfg.Cache.Addr, "error", err)
		}
		items = cache.NewCatalogueCache(items, a.redis, cfg.Cache.TTL, logger)
	}

	a.Audit = audit.NewService(sqlite.NewAuditRepository(db), logger)
	a.Catalogue = catalogue.NewService(items, items, logger)
	a.Tenants = tenant.NewService(sqlite.NewTenantRepository(db), a.Audit, tenant.Defaults{
		Region:            catalogue.Region(cfg.Billing.DefaultRegion),
		Tier:              catalogue.Tier(cfg.Billing.DefaultTier),
		CatalogueDefaults: cfg.Billing.CatalogueDefaults,
	}, logger)

	overrideRepo := sqlite.NewOverrideRepository(db)
	a.Overrides = pricing.NewService(overrideRepo, a.Audit, logger)
	a.Resolver = pricing.NewResolver(items, overrideRepo, a.Tenants, logger)
	a.Validator = pricing.NewValidator(items, logger)

	a.Prompts = prompt.NewService(sqlite.NewPromptRepository(db), a.Overrides, a.Audit, logger)
	a.Sessions = session.NewService(sqlite.NewSessionRepository(db), a.Prompts, a.Audit, logger)

	a.Generation = generation.NewService(generation.Dependencies{
		Roster:    a.Roster,
		Expenses:  a.Expenses,
		Extractor: extract.NewExtractor(logger),
		Mapper:    extract.NewExpenseMapper(cfg.Billing.ExpenseCodes, items, logger),
		Resolver:  a.Resolver,
		Validator: a.Validator,
		Prompts:   a.Prompts,
		Sessions:  a.Sessions,
		Settings:  a.Tenants,
		Audit:     a.Audit,
	}, cfg.Billing.BatchSize, logger)

	rates, err := cfg.Billing.Rates()
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.Tenants.Seed(ctx, rates); err != nil {
		a.Close()
		return nil, fmt.Errorf("seeding tenant settings: %w", err)
	}

	return a, nil
}

// MCPServer builds the MCP server over the wired services.
func (a *App) MCPServer() *sdkmcp.Server {
	return mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Generation: a.Generation,
			Resolver:   a.Resolver,
			Validator:  a.Validator,
			Prompts:    a.Prompts,
			Sessions:   a.Sessions,
			Overrides:  a.Overrides,
			Tenants:    a.Tenants,
			Catalogue:  a.Catalogue,
			Audit:      a.Audit,
		},
		Resolver:      a.APIKeys,
		AuthEnabled:   a.cfg.Auth.Enabled,
		TransportMode: a.cfg.Transport.Mode,
		DefaultTenant: a.cfg.Auth.DefaultTenant,
		Logger:        a.logger,
	})
}

// HTTPHandler serves server over streamable HTTP at /mcp, next to /health
// and /metrics.
func (a *App) HTTPHandler(server *sdkmcp.Server) http.Handler {
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: mcpSessionTimeout},
	)

	opts := transport.Options{
		Metrics: a.cfg.Metrics.Enabled,
		Logger:  a.logger,
	}
	if a.cfg.Auth.Enabled {
		opts.Auth = transport.AuthMiddleware(a.APIKeys)
	}
	return transport.NewRouter(mcpHandler, opts)
}

// Close releases the cache client. The database is owned by the caller.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}
