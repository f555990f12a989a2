package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ridewire/voice-engine/pkg/apperrors"
	"github.com/ridewire/voice-engine/pkg/models"
	"github.com/ridewire/voice-engine/pkg/services"
)

// CustomerContextToolName is the MCP name of the lookup tool.
const CustomerContextToolName = "get_customer_context"

// CustomerContextDeps are the collaborators of the customer context tool.
type CustomerContextDeps struct {
	LookupService services.LookupService
	Logger        *zap.Logger
}

// RegisterCustomerContextTool adds get_customer_context to the MCP server.
// The result payload is the same JSON the HTTP endpoint returns.
func RegisterCustomerContextTool(s *server.MCPServer, deps *CustomerContextDeps) {
	tool := mcp.NewTool(
		CustomerContextToolName,
		mcp.WithDescription(
			"Look up everything known about an incoming caller and decide how to greet them. "+
				"Returns the merged customer profile, the latest call from memory, the CRM record "+
				"(active trip, primary address) and a greeting decision with scenario, language, "+
				"context parameters and rendered text. Sources that could not be reached are listed "+
				"in degraded_sources; the greeting is still usable."),
		mcp.WithString(
			"phone",
			mcp.Required(),
			mcp.Description("Caller phone number in any common format, e.g. '+13035550100' or '303-555-0100'"),
		),
		mcp.WithString(
			"name",
			mcp.Description("Optional name the caller gave. Used as a greeting fallback and to register new callers in the CRM"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		phone, err := req.RequireString("phone")
		if err != nil {
			return NewErrorResult("invalid_parameters", "parameter 'phone' is required"), nil
		}
		phone = trimString(phone)
		if phone == "" {
			return NewErrorResult("invalid_parameters", "parameter 'phone' cannot be empty"), nil
		}

		resp, err := deps.LookupService.Lookup(ctx, models.LookupRequest{
			Phone: phone,
			Name:  trimString(req.GetString("name", "")),
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrUnresolvablePhone) {
				return NewErrorResultWithDetails("invalid_phone",
					"phone number could not be resolved",
					map[string]any{"phone": phone}), nil
			}
			return nil, fmt.Errorf("customer context lookup failed: %w", err)
		}

		jsonResult, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal customer context: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

func trimString(s string) string {
	return strings.TrimSpace(s)
}
