package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/logging"
)

// ToolCallLogger logs every MCP tool call with its duration and outcome.
// Phone arguments are masked.
type ToolCallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by JSON-RPC request ID.
	startTimes sync.Map
}

// NewToolCallLogger creates a ToolCallLogger.
func NewToolCallLogger(logger *zap.Logger) *ToolCallLogger {
	return &ToolCallLogger{logger: logger.Named("mcp-tools")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *ToolCallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *ToolCallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *ToolCallLogger) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	duration := a.elapsed(id)
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.String("phone", maskedPhoneArgument(req)),
		zap.Duration("duration", duration),
		zap.String("request_id", logging.RequestID(ctx)),
	}

	if result != nil && result.IsError {
		a.logger.Info("MCP tool call returned error result", fields...)
		return
	}
	a.logger.Info("MCP tool call", fields...)
}

func (a *ToolCallLogger) onError(ctx context.Context, id any, method mcplib.MCPMethod, _ any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	a.logger.Warn("MCP tool call failed",
		zap.Duration("duration", a.elapsed(id)),
		zap.String("request_id", logging.RequestID(ctx)),
		zap.String("error", logging.SanitizeError(err)))
}

func (a *ToolCallLogger) elapsed(id any) time.Duration {
	v, ok := a.startTimes.LoadAndDelete(id)
	if !ok {
		return 0
	}
	return time.Since(v.(time.Time))
}

func maskedPhoneArgument(req *mcplib.CallToolRequest) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	phone, _ := args["phone"].(string)
	return logging.MaskPhone(phone)
}
