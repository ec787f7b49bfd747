package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rpggio/supportbill/internal/repository"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyHeader is accepted in place of an Authorization header for clients
// that cannot set one.
const APIKeyHeader = "X-Api-Key"

type tenantKey struct{}

// TenantResolver resolves a tenant ID from an api key. Unknown keys wrap
// repository.ErrNotFound or ErrUnauthorized; any other error is a lookup
// failure.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, token string) (string, error)
}

// TenantFromContext returns the tenant ID bound by AuthMiddleware.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantKey{}).(string)
	return tenantID, ok
}

// BearerToken extracts the api key from h. The scheme is matched
// case-insensitively.
func BearerToken(h http.Header) string {
	if scheme, token, ok := strings.Cut(strings.TrimSpace(h.Get("Authorization")), " "); ok && strings.EqualFold(scheme, "bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	return strings.TrimSpace(h.Get(APIKeyHeader))
}

// AuthMiddleware binds the tenant owning the request's api key, answering 401
// for missing or unknown keys and 503 when the key store cannot be read.
func AuthMiddleware(resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}

			tenantID, err := resolver.ResolveTenant(r.Context(), token)
			if err != nil && !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, ErrUnauthorized) {
				writeAuthError(w, http.StatusServiceUnavailable, "DOWNSTREAM_UNAVAILABLE", "api key lookup failed")
				return
			}
			if err != nil || tenantID == "" {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey{}, tenantID)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="supportbill"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
