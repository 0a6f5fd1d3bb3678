package common

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/sheetsgate/internal/auth"
	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/instrumentation"
)

// Invocation tracks one tool call from start to completion.
type Invocation struct {
	bc     *backend.Context
	span   trace.Span
	record *instrumentation.ToolInvocation
}

// StartInvocation starts the span and audit record of a tool call. The caller
// is the client id carried by ctx (see auth.WithClientID). The returned
// context carries the span and must be used for the backend call.
func StartInvocation(ctx context.Context, bc *backend.Context, tool, transport, spreadsheetID string, recipients []string) (context.Context, *Invocation) {
	clientID := auth.ClientIDFromContext(ctx)
	var attrs []attribute.KeyValue
	if clientID != "" {
		attrs = append(attrs, attribute.String(instrumentation.SpanAttrClientID, clientID))
	}
	if spreadsheetID != "" {
		attrs = append(attrs, instrumentation.SpreadsheetAttr(spreadsheetID))
	}
	ctx, span := instrumentation.StartToolSpan(ctx, tool, transport, attrs...)

	record := instrumentation.NewToolInvocation(tool, transport).
		WithClient(clientID).
		WithSpreadsheet(spreadsheetID).
		WithRecipients(recipients).
		WithSpanContext(ctx)

	return ctx, &Invocation{bc: bc, span: span, record: record}
}

// End finishes the invocation: it ends the span, records the tool metrics and
// writes the audit record. statusCode is 0 for transports without one.
func (inv *Invocation) End(ctx context.Context, statusCode int, err error) {
	inv.record.Complete(statusCode, err)
	instrumentation.EndSpan(inv.span, err)

	if inv.bc == nil {
		return
	}
	inv.bc.Metrics().RecordToolInvocation(ctx, inv.record.Tool, inv.record.Transport,
		inv.record.Status(), inv.record.ClientID, inv.record.Duration)
	inv.bc.AuditLogger().LogToolInvocation(inv.record)
}

// LocalClientID attributes MCP invocations over stdio, where the local user
// owns the process and no API key is presented.
const LocalClientID = "local"

// errToolResult marks MCP results flagged as errors for the span and audit record.
var errToolResult = errors.New("tool returned an error result")

// InstrumentedToolHandler wraps an MCP tool handler with tracing, metrics and
// audit logging. The spreadsheet and share recipients are read from the
// request arguments.
//
// Usage:
//
//	s.AddTool(tool, common.InstrumentedToolHandler("list_sheets", bc, handler))
func InstrumentedToolHandler(toolName string, bc *backend.Context, handler mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		ctx = auth.WithClientID(ctx, LocalClientID)
		ctx, inv := StartInvocation(ctx, bc, toolName, instrumentation.TransportMCP,
			SpreadsheetFromArgs(args), RecipientsFromArgs(args))

		result, err := handler(ctx, request)

		recorded := err
		if recorded == nil && result != nil && result.IsError {
			recorded = errToolResult
			if msg := resultText(result); msg != "" {
				recorded = errors.New(msg)
			}
		}
		inv.End(ctx, 0, recorded)

		return result, err
	}
}

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if text, ok := mcp.AsTextContent(c); ok {
			return text.Text
		}
	}
	return ""
}
