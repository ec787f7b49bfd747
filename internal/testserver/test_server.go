// Package testserver runs the full billing server over httptest for
// end-to-end tests.
package testserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/supportbill/internal/app"
	"github.com/rpggio/supportbill/internal/config"
	"github.com/rpggio/supportbill/internal/sqlite"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	Server   *httptest.Server
	App      *app.App
	DB       *sqlite.DB
	Token    string
	TenantID string
}

// New starts a server with auth enabled and one api key for tenantID.
// configure may adjust the configuration before services are wired.
func New(t *testing.T, token, tenantID string, configure ...func(*config.Config)) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	cfg := config.Default()
	cfg.DB.Path = dsn
	cfg.Auth.Enabled = true
	cfg.Billing.DefaultRegion = "NSW"
	cfg.Metrics.Enabled = false
	for _, fn := range configure {
		fn(&cfg)
	}

	ctx := context.Background()
	a, err := app.New(ctx, db, cfg, nil)
	require.NoError(t, err)

	server := httptest.NewServer(a.HTTPHandler(a.MCPServer()))

	ts := &TestServer{
		Server:   server,
		App:      a,
		DB:       db,
		Token:    token,
		TenantID: tenantID,
	}
	require.NoError(t, a.APIKeys.Add(ctx, token, tenantID, "test"))

	t.Cleanup(func() {
		server.Close()
		_ = a.Close()
		_ = db.Close()
	})

	return ts
}

// Client is an MCP client session bound to one bearer token and requester.
type Client struct {
	session *sdkmcp.ClientSession
}

// Connect opens an MCP session as requester using the server's token.
func (ts *TestServer) Connect(t *testing.T, requester string) *Client {
	t.Helper()
	return ts.ConnectWithToken(t, ts.Token, requester)
}

// ConnectWithToken opens an MCP session authenticating with token.
func (ts *TestServer) ConnectWithToken(t *testing.T, token, requester string) *Client {
	t.Helper()

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &headerTransport{
			base: http.DefaultTransport,
			headers: map[string]string{
				"Authorization":  "Bearer " + token,
				"X-Requester-Id": requester,
			},
		},
	}
	transport := &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: httpClient,
		MaxRetries: -1,
	}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, err := client.Connect(ctx, transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return &Client{session: session}
}

// Call invokes a tool and returns its JSON text and whether it is a tool error.
func (c *Client) Call(t *testing.T, name string, args map[string]any) (json.RawMessage, bool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := c.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, "CallTool %s failed", name)
	require.NotEmpty(t, result.Content, "tool %s returned no content", name)

	text, ok := result.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok, "tool %s returned non-text content", name)
	return json.RawMessage(text.Text), result.IsError
}

// MustCall invokes a tool, fails the test on a tool error and decodes the
// result into out when out is non-nil.
func (c *Client) MustCall(t *testing.T, name string, args map[string]any, out any) {
	t.Helper()
	raw, isError := c.Call(t, name, args)
	require.False(t, isError, "tool %s returned error: %s", name, raw)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

// CallError invokes a tool that is expected to fail and returns the error code.
func (c *Client) CallError(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	raw, isError := c.Call(t, name, args)
	require.True(t, isError, "tool %s unexpectedly succeeded: %s", name, raw)

	var apiErr struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(raw, &apiErr))
	return apiErr.Code
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (h *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range h.headers {
		if v != "" {
			clone.Header.Set(k, v)
		}
	}
	return h.base.RoundTrip(clone)
}
