package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/supportbill/internal/domain/catalogue"
	"github.com/rpggio/supportbill/internal/domain/prompt"
	"github.com/rpggio/supportbill/internal/domain/tenant"
	"github.com/rpggio/supportbill/internal/repository"
	"github.com/rpggio/supportbill/internal/repository/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubTenants struct{}

func (stubTenants) Get(_ context.Context, tenantID string) (*tenant.Settings, error) {
	return &tenant.Settings{TenantID: tenantID, DefaultRegion: "NSW", DefaultTier: catalogue.TierStandard}, nil
}

func (s stubTenants) SetFallbackRate(ctx context.Context, tenantID string, rate *decimal.Decimal, _ string) (*tenant.Settings, error) {
	settings, _ := s.Get(ctx, tenantID)
	settings.FallbackRate = rate
	return settings, nil
}

func (s stubTenants) SetCatalogueDefaults(ctx context.Context, tenantID string, enabled bool, _ string) (*tenant.Settings, error) {
	settings, _ := s.Get(ctx, tenantID)
	settings.CatalogueDefaults = enabled
	return settings, nil
}

type stubCatalogue struct {
	items map[string]*catalogue.SupportItem
}

func (c stubCatalogue) GetItem(_ context.Context, code string) (*catalogue.SupportItem, error) {
	if item, ok := c.items[code]; ok {
		return item, nil
	}
	return nil, catalogue.ErrItemNotFound
}

func (c stubCatalogue) Search(context.Context, string, int) ([]catalogue.SearchResult, error) {
	return nil, nil
}

type testEnv struct {
	session *sdkmcp.ClientSession
	prompts *mocks.PromptRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	item := &catalogue.SupportItem{Code: "01_011", Name: "Self-Care", Unit: catalogue.UnitHour}
	item.SetCap(catalogue.TierStandard, "NSW", decimal.RequireFromString("67.56"))

	promptRepo := &mocks.PromptRepository{}
	auditor := &mocks.Auditor{}
	auditor.On("Record", mock.Anything, mock.Anything).Return().Maybe()

	server := NewServer(Config{
		Services: Services{
			Prompts:   prompt.NewService(promptRepo, nil, auditor, nil),
			Tenants:   stubTenants{},
			Catalogue: stubCatalogue{items: map[string]*catalogue.SupportItem{item.Code: item}},
		},
		TransportMode: "stdio",
		DefaultTenant: "tenant-1",
	})

	ctx := context.Background()
	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return &testEnv{session: session, prompts: promptRepo}
}

func (e *testEnv) call(t *testing.T, params *sdkmcp.CallToolParams) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := e.session.CallTool(ctx, params)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	return text.Text, result.IsError
}

func TestListTools(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	for _, want := range []string{
		"generate_invoice", "generate_bulk_invoices", "resolve_price", "validate_line_items",
		"create_price_prompt", "list_pending_prompts", "get_price_prompt", "resolve_price_prompt",
		"cancel_price_prompt", "get_generation_session", "complete_session",
		"list_pricing_overrides", "get_pricing_override", "set_pricing_override",
		"set_override_approval", "deactivate_pricing_override",
		"get_tenant_settings", "set_fallback_rate", "set_catalogue_defaults",
		"search_catalogue", "get_catalogue_item", "get_audit_log",
	} {
		require.Contains(t, names, want)
	}
}

func TestCreatePromptReportsEveryMissingField(t *testing.T) {
	env := newTestEnv(t)

	text, isError := env.call(t, &sdkmcp.CallToolParams{Name: "create_price_prompt", Arguments: map[string]any{}})
	require.True(t, isError)

	var apiErr struct {
		Code    string `json:"code"`
		Details struct {
			Fields []struct {
				Field string `json:"field"`
				Rule  string `json:"rule"`
			} `json:"fields"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &apiErr))
	require.Equal(t, "VALIDATION_ERROR", apiErr.Code)

	var fields []string
	for _, f := range apiErr.Details.Fields {
		require.Equal(t, "required", f.Rule)
		fields = append(fields, f.Field)
	}
	require.ElementsMatch(t, []string{"session_id", "subject_email", "item_code"}, fields)
	env.prompts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreatePromptUsesMetaRequesterAndCatalogue(t *testing.T) {
	env := newTestEnv(t)
	env.prompts.On("Create", mock.Anything, mock.AnythingOfType("*prompt.Prompt")).Return(nil)

	text, isError := env.call(t, &sdkmcp.CallToolParams{
		Meta:      sdkmcp.Meta{"requester_id": "carol"},
		Name:      "create_price_prompt",
		Arguments: map[string]any{
			"session_id":    "sess-1",
			"subject_email": "sam@example.com",
			"item_code":     "01_011",
		},
	})
	require.False(t, isError, text)

	var p prompt.Prompt
	require.NoError(t, json.Unmarshal([]byte(text), &p))
	require.Equal(t, "tenant-1", p.TenantID)
	require.Equal(t, "carol", p.RequesterID)
	require.Equal(t, "Self-Care", p.ItemName)
	require.NotNil(t, p.Cap)
	require.True(t, p.Cap.Equal(decimal.RequireFromString("67.56")))
	require.Equal(t, prompt.StatusPending, p.Status)
}

func TestGetPromptNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.prompts.On("Get", mock.Anything, "tenant-1", "missing").Return(nil, repository.ErrNotFound)

	text, isError := env.call(t, &sdkmcp.CallToolParams{
		Name:      "get_price_prompt",
		Arguments: map[string]any{"prompt_id": "missing"},
	})
	require.True(t, isError)

	var apiErr APIError
	require.NoError(t, json.Unmarshal([]byte(text), &apiErr))
	require.Equal(t, "PROMPT_NOT_FOUND", apiErr.Code)
	require.NotEmpty(t, apiErr.RecoveryHint)
}

func TestSetFallbackRateRejectsNegative(t *testing.T) {
	env := newTestEnv(t)

	text, isError := env.call(t, &sdkmcp.CallToolParams{
		Name:      "set_fallback_rate",
		Arguments: map[string]any{"rate": -5},
	})
	require.True(t, isError)
	require.Contains(t, text, "INVALID_PRICE")

	text, isError = env.call(t, &sdkmcp.CallToolParams{
		Name:      "set_fallback_rate",
		Arguments: map[string]any{"rate": 45.5},
	})
	require.False(t, isError, text)

	var settings tenant.Settings
	require.NoError(t, json.Unmarshal([]byte(text), &settings))
	require.True(t, settings.FallbackRate.Equal(decimal.RequireFromString("45.5")))
}

func TestDocResourcesAreReadable(t *testing.T) {
	env := newTestEnv(t)

	for _, doc := range docResources {
		res, err := env.session.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: doc.URI})
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)
		require.Equal(t, doc.Content, res.Contents[0].Text)
	}
}

type mapResolver map[string]string

func (m mapResolver) ResolveTenant(_ context.Context, token string) (string, error) {
	if tenantID, ok := m[token]; ok {
		return tenantID, nil
	}
	return "", repository.ErrNotFound
}

func callToolRequest(header http.Header) *sdkmcp.CallToolRequest {
	return &sdkmcp.CallToolRequest{
		Params: &sdkmcp.CallToolParamsRaw{Name: "get_tenant_settings"},
		Extra:  &sdkmcp.RequestExtra{Header: header},
	}
}

func TestAuthMiddleware(t *testing.T) {
	var seenTenant string
	next := func(ctx context.Context, _ string, _ sdkmcp.Request) (sdkmcp.Result, error) {
		seenTenant = getTenantID(ctx)
		return nil, nil
	}
	handler := authMiddleware(mapResolver{"good": "tenant-1"})(next)

	_, err := handler(context.Background(), "tools/call", callToolRequest(http.Header{"Authorization": {"Bearer good"}}))
	require.NoError(t, err)
	require.Equal(t, "tenant-1", seenTenant)

	_, err = handler(context.Background(), "tools/call", callToolRequest(http.Header{"Authorization": {"Bearer bad"}}))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = handler(context.Background(), "tools/call", callToolRequest(http.Header{}))
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = handler(context.Background(), "initialize", callToolRequest(http.Header{}))
	require.NoError(t, err)
}

type failingResolver struct{}

func (failingResolver) ResolveTenant(context.Context, string) (string, error) {
	return "", errors.New("database is locked")
}

func TestAuthMiddlewareLookupFailure(t *testing.T) {
	next := func(context.Context, string, sdkmcp.Request) (sdkmcp.Result, error) {
		t.Fatal("handler must not run")
		return nil, nil
	}
	handler := authMiddleware(failingResolver{})(next)

	_, err := handler(context.Background(), "tools/call", callToolRequest(http.Header{"Authorization": {"Bearer good"}}))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnauthorized)
}

func TestRequesterMiddleware(t *testing.T) {
	var seen string
	next := func(ctx context.Context, _ string, _ sdkmcp.Request) (sdkmcp.Result, error) {
		seen = getRequesterID(ctx, "")
		return nil, nil
	}
	handler := requesterMiddleware()(next)

	_, err := handler(context.Background(), "tools/call", callToolRequest(http.Header{RequesterHeader: {"dana"}}))
	require.NoError(t, err)
	require.Equal(t, "dana", seen)

	_, err = handler(context.Background(), "tools/call", callToolRequest(http.Header{}))
	require.NoError(t, err)
	require.Equal(t, defaultRequester, seen)
}

func TestGetRequesterIDPrefersExplicit(t *testing.T) {
	ctx := context.WithValue(context.Background(), requesterIDKey, "from-header")
	require.Equal(t, "explicit", getRequesterID(ctx, " explicit "))
	require.Equal(t, "from-header", getRequesterID(ctx, ""))
}
