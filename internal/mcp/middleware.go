package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/rpggio/supportbill/internal/transport"
)

// ErrUnauthorized is returned for requests without a valid bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// RequesterHeader carries the acting user over HTTP. Stdio clients use
// _meta.requester_id instead.
const RequesterHeader = "X-Requester-Id"

const defaultRequester = "mcp"

type contextKey int

const (
	tenantIDKey contextKey = iota
	requesterIDKey
)

func getTenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantIDKey).(string)
	return v
}

// getRequesterID picks the acting user: an explicit tool argument, then the
// identity bound by requesterMiddleware, then "mcp".
func getRequesterID(ctx context.Context, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if v, _ := ctx.Value(requesterIDKey).(string); v != "" {
		return v
	}
	return defaultRequester
}

// TenantResolver resolves a tenant ID from an api key.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, token string) (string, error)
}

// handshake reports methods that carry no tenant data.
func handshake(method string) bool {
	return method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/")
}

// authMiddleware binds the tenant owning the request's api key.
func authMiddleware(resolver TenantResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if handshake(method) {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("%w: missing headers", ErrUnauthorized)
			}
			token := transport.BearerToken(extra.Header)
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
			}

			tenantID, err := resolver.ResolveTenant(ctx, token)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("resolving api key: %w", err)
			}
			if err != nil || tenantID == "" {
				return nil, fmt.Errorf("%w: invalid bearer token", ErrUnauthorized)
			}
			return next(context.WithValue(ctx, tenantIDKey, tenantID), method, req)
		}
	}
}

// noAuthMiddleware binds a fixed tenant. Used for stdio and when auth is off.
func noAuthMiddleware(defaultTenant string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(context.WithValue(ctx, tenantIDKey, defaultTenant), method, req)
		}
	}
}

func requesterMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if requesterID := requesterFrom(req); requesterID != "" {
				ctx = context.WithValue(ctx, requesterIDKey, requesterID)
			}
			return next(ctx, method, req)
		}
	}
}

// requesterFrom reads the X-Requester-Id header, falling back to
// _meta.requester_id.
func requesterFrom(req sdkmcp.Request) (requesterID string) {
	if extra := req.GetExtra(); extra != nil && extra.Header != nil {
		if v := strings.TrimSpace(extra.Header.Get(RequesterHeader)); v != "" {
			return v
		}
	}

	params := req.GetParams()
	if params == nil {
		return ""
	}
	// GetMeta panics on typed-nil params such as those of "initialized".
	defer func() {
		if recover() != nil {
			requesterID = ""
		}
	}()
	if rid, ok := params.GetMeta()["requester_id"].(string); ok {
		return strings.TrimSpace(rid)
	}
	return ""
}
