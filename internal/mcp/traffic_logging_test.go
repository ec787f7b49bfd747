package mcp

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func TestFormatPayloadTruncates(t *testing.T) {
	require.Equal(t, "<nil>", formatPayload(nil))
	require.Equal(t, `{"a":1}`, formatPayload(map[string]int{"a": 1}))

	long := formatPayload(strings.Repeat("x", 2*maxLoggedPayload))
	require.True(t, strings.HasSuffix(long, "...(8194 bytes)"), long[len(long)-20:])
	require.Len(t, long, maxLoggedPayload+len("...(8194 bytes)"))
}

func TestTrafficLoggingNamesTool(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	next := func(context.Context, string, sdkmcp.Request) (sdkmcp.Result, error) {
		return &sdkmcp.CallToolResult{IsError: true}, nil
	}
	handler := trafficLoggingMiddleware(logger, "inbound")(next)

	ctx := context.WithValue(context.Background(), requesterIDKey, "erin")
	req := &sdkmcp.CallToolRequest{Params: &sdkmcp.CallToolParamsRaw{Name: "resolve_price"}}
	_, err := handler(ctx, "tools/call", req)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "msg=\"mcp request\"")
	require.Contains(t, out, "msg=\"mcp response\"")
	require.Contains(t, out, "tool=resolve_price")
	require.Contains(t, out, "requester_id=erin")
	require.Contains(t, out, "tool_error=true")
}

func TestTrafficLoggingSkipsWhenNotDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	called := false
	next := func(context.Context, string, sdkmcp.Request) (sdkmcp.Result, error) {
		called = true
		return nil, nil
	}
	_, err := trafficLoggingMiddleware(logger, "inbound")(next)(context.Background(), "ping", &sdkmcp.CallToolRequest{})
	require.NoError(t, err)
	require.True(t, called)
	require.Empty(t, buf.String())
}
