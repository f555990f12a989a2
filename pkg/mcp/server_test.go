package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

func TestNewServer(t *testing.T) {
	logger := zap.NewNop()
	s := NewServer("voice-engine", "1.0.0", logger)

	if s == nil {
		t.Fatal("expected non-nil server")
	}
	if s.MCP() != s.mcp {
		t.Error("expected MCP() to return the internal mcp server")
	}
	if s.logger != logger {
		t.Error("expected logger to be set")
	}
}

func TestServer_RegisterToolIsCallable(t *testing.T) {
	s := NewServer("voice-engine", "1.0.0", zap.NewNop())

	calls := 0
	s.RegisterTool(mcp.NewTool("echo", mcp.WithDescription("echo")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			calls++
			return mcp.NewToolResultText("pong"), nil
		})

	if calls != 0 {
		t.Fatal("handler should not be called during registration")
	}

	result := s.MCP().HandleMessage(context.Background(),
		[]byte(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"echo"},"id":1}`))
	resultBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	var response struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resultBytes, &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if len(response.Result.Content) != 1 || response.Result.Content[0].Text != "pong" {
		t.Errorf("unexpected tool result: %s", resultBytes)
	}
}

func TestServer_NewStreamableHTTPServer(t *testing.T) {
	s := NewServer("voice-engine", "1.0.0", zap.NewNop())

	if s.NewStreamableHTTPServer() == nil {
		t.Fatal("expected non-nil HTTP server")
	}
}
