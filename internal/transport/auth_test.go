package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpggio/supportbill/internal/repository"
	"github.com/stretchr/testify/require"
)

type keyResolver struct {
	keys map[string]string
	err  error
}

func (r *keyResolver) ResolveTenant(_ context.Context, token string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	tenantID, ok := r.keys[token]
	if !ok {
		return "", repository.ErrNotFound
	}
	return tenantID, nil
}

func serveAuth(t *testing.T, resolver TenantResolver, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	handler := AuthMiddleware(resolver)(echoTenant())

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeAuthError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthMiddlewareBindsTenant(t *testing.T) {
	resolver := &keyResolver{keys: map[string]string{"key-1": "acme"}}

	for name, header := range map[string]http.Header{
		"bearer":         {"Authorization": {"Bearer key-1"}},
		"lowercase":      {"Authorization": {"bearer key-1"}},
		"api key header": {APIKeyHeader: {"key-1"}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := serveAuth(t, resolver, header)
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "acme", rec.Body.String())
		})
	}
}

func TestAuthMiddlewareRejectsUnknownKey(t *testing.T) {
	rec := serveAuth(t, &keyResolver{}, http.Header{"Authorization": {"Bearer nope"}})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid bearer token", decodeAuthError(t, rec)["message"])
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	for name, header := range map[string]http.Header{
		"none":         {},
		"basic scheme": {"Authorization": {"Basic dXNlcjpwdw=="}},
		"empty bearer": {"Authorization": {"Bearer   "}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := serveAuth(t, &keyResolver{}, header)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			body := decodeAuthError(t, rec)
			require.Equal(t, "UNAUTHORIZED", body["code"])
			require.Equal(t, "missing bearer token", body["message"])
		})
	}
}

func TestAuthMiddlewareLookupFailure(t *testing.T) {
	rec := serveAuth(t, &keyResolver{err: errors.New("database is locked")}, http.Header{"Authorization": {"Bearer key-1"}})

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Empty(t, rec.Header().Get("WWW-Authenticate"))
	require.Equal(t, "DOWNSTREAM_UNAVAILABLE", decodeAuthError(t, rec)["code"])
}
