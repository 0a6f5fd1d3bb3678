package sheets_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/gateway"
	"github.com/teemow/sheetsgate/internal/tools/batch"
	"github.com/teemow/sheetsgate/internal/tools/common"
)

// RegisterSheetsTools registers every gateway tool with the MCP server. In
// read-only mode only tools that do not modify spreadsheets are registered.
func RegisterSheetsTools(s *mcpserver.MCPServer, bc *backend.Context, readOnly bool) error {
	tools, err := serverTools(bc, readOnly)
	if err != nil {
		return fmt.Errorf("failed to build sheets tools: %w", err)
	}
	s.AddTools(tools...)
	return nil
}

func serverTools(bc *backend.Context, readOnly bool) ([]mcpserver.ServerTool, error) {
	var out []mcpserver.ServerTool
	for _, t := range gateway.Tools() {
		if readOnly && !t.ReadOnly {
			continue
		}
		tool, err := mcpTool(t)
		if err != nil {
			return nil, err
		}
		out = append(out, mcpserver.ServerTool{
			Tool:    tool,
			Handler: common.InstrumentedToolHandler(t.Name, bc, toolHandler(t, bc)),
		})
	}
	return out, nil
}

// mcpTool builds the MCP tool definition and input schema of t.
func mcpTool(t gateway.Tool) (mcp.Tool, error) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(t.Description),
		mcp.WithReadOnlyHintAnnotation(t.ReadOnly),
	}

	for _, p := range t.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}

		switch p.Type {
		case gateway.ParamString:
			if def, ok := p.Default.(string); ok {
				props = append(props, mcp.DefaultString(def))
			}
			opts = append(opts, mcp.WithString(p.Name, props...))
		case gateway.ParamBoolean:
			if def, ok := p.Default.(bool); ok {
				props = append(props, mcp.DefaultBool(def))
			}
			opts = append(opts, mcp.WithBoolean(p.Name, props...))
		case gateway.ParamGrid:
			props = append(props, mcp.Items(map[string]any{"type": "array", "items": map[string]any{}}))
			opts = append(opts, mcp.WithArray(p.Name, props...))
		case gateway.ParamStringList:
			props = append(props, mcp.Items(map[string]any{"type": "string"}))
			opts = append(opts, mcp.WithArray(p.Name, props...))
		case gateway.ParamObjectList:
			props = append(props, mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"range":  map[string]any{"type": "string"},
					"values": map[string]any{"type": "array", "items": map[string]any{"type": "array"}},
					"sheet":  map[string]any{"type": "string"},
				},
				"required": []string{"range", "values"},
			}))
			opts = append(opts, mcp.WithArray(p.Name, props...))
		default:
			return mcp.Tool{}, fmt.Errorf("tool %s: unsupported parameter type %d for %s", t.Name, p.Type, p.Name)
		}
	}

	return mcp.NewTool(t.Name, opts...), nil
}

// toolHandler decodes the MCP arguments with t and runs the call against the
// backend. Failures are reported as tool error results.
func toolHandler(t gateway.Tool, bc *backend.Context) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		// Some clients send a single address, or a JSON-encoded list, as a string.
		if raw, ok := args["email_addresses"]; ok {
			emails, err := batch.ParseStringOrArray(raw, "email_addresses")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			args["email_addresses"] = emails
		}

		data, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
		}
		call, err := t.Decode(data)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		b, err := bc.Acquire()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := call.Run(ctx, b)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to format output: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}
