package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxLoggedPayload bounds each logged payload. Generation results carry every
// line item and can run to megabytes.
const maxLoggedPayload = 4096

// trafficLoggingMiddleware logs every request and response at debug level.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			params := safeParams(req)
			attrs := []any{
				"direction", direction,
				"method", method,
				"mcp_session_id", safeSessionID(req),
				"tenant_id", getTenantID(ctx),
			}
			if tool := toolName(params); tool != "" {
				attrs = append(attrs, "tool", tool, "requester_id", getRequesterID(ctx, ""))
			}
			log := logger.With(attrs...)
			log.Debug("mcp request", "params", formatPayload(params))

			start := time.Now()
			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			done := []any{"elapsed", time.Since(start), "result", formatPayload(result)}
			if r, ok := result.(*sdkmcp.CallToolResult); ok && r.IsError {
				done = append(done, "tool_error", true)
			}
			if err != nil {
				done = append(done, "error", err)
			}
			log.Debug("mcp response", done...)
			return result, err
		}
	}
}

func toolName(params any) string {
	switch p := params.(type) {
	case *sdkmcp.CallToolParamsRaw:
		if p != nil {
			return p.Name
		}
	case *sdkmcp.CallToolParams:
		if p != nil {
			return p.Name
		}
	}
	return ""
}

func safeSessionID(req sdkmcp.Request) (id string) {
	if req == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if session := req.GetSession(); session != nil {
		return session.ID()
	}
	return ""
}

func safeParams(req sdkmcp.Request) (params any) {
	if req == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			params = nil
		}
	}()
	return req.GetParams()
}

func formatPayload(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	if len(data) > maxLoggedPayload {
		return fmt.Sprintf("%s...(%d bytes)", data[:maxLoggedPayload], len(data))
	}
	return string(data)
}
