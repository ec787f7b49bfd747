package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/supportbill/internal/domain/audit"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/generation"
	"github.com/rpggio/supportbill/internal/domain/lineitem"
	"github.com/rpggio/supportbill/internal/domain/pricing"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/domain/session"
	"github.com/rpggio/supportbill/internal/domain/tenant"
	"github.com/shopspring/decimal"
)

// GenerationService defines invoice generation needed by MCP.
type GenerationService interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
	GenerateBulk(ctx context.Context, req generation.BulkRequest) (*generation.BulkResult, error)
}

// PriceResolver walks the pricing cascade for one item.
type PriceResolver interface {
	Resolve(ctx context.Context, req pricing.ResolveRequest) (pricing.Resolution, error)
}

// PriceValidator validates a batch of priced line items.
type PriceValidator interface {
	ValidateBatch(ctx context.Context, items []lineitem.LineItem, defaultRegion catalogue.Region, defaultTier catalogue.Tier) pricing.BatchResult
}

// PromptService defines price prompt operations needed by MCP.
type PromptService interface {
	Create(ctx context.Context, req prompt.CreateRequest) (*prompt.Prompt, error)
	Resolve(ctx context.Context, tenantID, id string, req prompt.ResolveRequest) (*prompt.ResolveResult, error)
	Cancel(ctx context.Context, tenantID, id, reason string) (*prompt.Prompt, error)
	Get(ctx context.Context, tenantID, id string) (*prompt.Prompt, error)
	ListPending(ctx context.Context, tenantID, sessionID string) ([]prompt.Prompt, error)
}

// SessionService defines generation session operations needed by MCP.
type SessionService interface {
	Get(ctx context.Context, tenantID, id string) (*session.Session, error)
	Complete(ctx context.Context, tenantID, id, actor string) (*session.Session, error)
}

// OverrideService defines pricing override operations needed by MCP.
type OverrideService interface {
	Upsert(ctx context.Context, req pricing.UpsertRequest) (*pricing.Override, pricing.Outcome, error)
	Get(ctx context.Context, tenantID, id string) (*pricing.Override, error)
	List(ctx context.Context, tenantID string, opts pricing.ListOverridesOptions) ([]pricing.Override, error)
	SetApproval(ctx context.Context, tenantID, id string, approval pricing.Approval, actor, reason string) (*pricing.Override, error)
	Deactivate(ctx context.Context, tenantID, id, actor, reason string) (*pricing.Override, error)
}

// TenantService defines tenant settings operations needed by MCP.
type TenantService interface {
	Get(ctx context.Context, tenantID string) (*tenant.Settings, error)
	SetFallbackRate(ctx context.Context, tenantID string, rate *decimal.Decimal, actor string) (*tenant.Settings, error)
	SetCatalogueDefaults(ctx context.Context, tenantID string, enabled bool, actor string) (*tenant.Settings, error)
}

// CatalogueService defines catalogue reads needed by MCP.
type CatalogueService interface {
	GetItem(ctx context.Context, code string) (*catalogue.SupportItem, error)
	Search(ctx context.Context, query string, limit int) ([]catalogue.SearchResult, error)
}

// AuditService defines audit log reads needed by MCP.
type AuditService interface {
	List(ctx context.Context, tenantID string, opts audit.ListOptions) ([]audit.Event, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Generation GenerationService
	Resolver   PriceResolver
	Validator  PriceValidator
	Prompts    PromptService
	Sessions   SessionService
	Overrides  OverrideService
	Tenants    TenantService
	Catalogue  CatalogueService
	Audit      AuditService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      TenantResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	DefaultTenant string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = "default"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "supportbill",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is local only and never authenticates.
	if cfg.TransportMode == "stdio" || !cfg.AuthEnabled {
		server.AddReceivingMiddleware(noAuthMiddleware(cfg.DefaultTenant))
	} else {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	}
	server.AddReceivingMiddleware(requesterMiddleware())
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services, cfg.Logger)

	return server
}
