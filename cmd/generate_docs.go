package cmd

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/gateway"
	"github.com/teemow/sheetsgate/internal/tools/sheets_tools"
)

const (
	categoryRead  = "Read Tools"
	categoryWrite = "Write Tools"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate tool documentation",
		Long: `Generate markdown documentation for all available tools.
This command introspects the registered MCP tools and the gateway routes and
outputs their documentation in markdown format, so the documentation stays in
sync with the actual tool implementations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	markdown, err := buildToolsMarkdown()
	if err != nil {
		return err
	}

	// Write to output
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	} else {
		fmt.Print(markdown)
	}

	return nil
}

// buildToolsMarkdown registers every tool on a throwaway MCP server and
// renders the result. The backend is never started; handlers are not called.
func buildToolsMarkdown() (string, error) {
	mcpSrv := mcpserver.NewMCPServer("sheetsgate", version,
		mcpserver.WithToolCapabilities(true),
	)
	bc := backend.NewContext(nil)
	if err := sheets_tools.RegisterSheetsTools(mcpSrv, bc, false); err != nil {
		return "", fmt.Errorf("failed to register tools: %w", err)
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}

	return generateToolsMarkdown(tools, routesByTool()), nil
}

// routesByTool maps tool names to their HTTP method and path.
func routesByTool() map[string]string {
	routes := make(map[string]string)
	for _, t := range gateway.Tools() {
		routes[t.Name] = t.Method + " " + t.Path
	}
	return routes
}

func generateToolsMarkdown(tools []mcp.Tool, routes map[string]string) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Tools Reference\n\n")
	sb.WriteString("This document lists every tool served by sheetsgate, both as an HTTP endpoint and as an MCP tool.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	// Group tools by category
	toolsByCategory := groupToolsByCategory(tools)

	// Table of contents
	sb.WriteString("## Table of Contents\n\n")
	categories := make([]string, 0, len(toolsByCategory))
	for category := range toolsByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		anchor := strings.ToLower(strings.ReplaceAll(category, " ", "-"))
		sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", category, anchor))
	}
	sb.WriteString("\n")

	sb.WriteString("## Authentication\n\n")
	sb.WriteString("- **HTTP:** every `/tools/*` endpoint requires the `X-API-Key` header; `GET /health` does not\n")
	sb.WriteString("- **MCP:** the stdio transport is not authenticated\n")
	sb.WriteString("- **Errors:** HTTP failures return `{\"detail\": ..., \"status_code\": ...}`\n\n")

	// Generate documentation for each category
	for _, category := range categories {
		categoryTools := toolsByCategory[category]
		sort.Slice(categoryTools, func(i, j int) bool {
			return categoryTools[i].Name < categoryTools[j].Name
		})

		sb.WriteString(fmt.Sprintf("## %s\n\n", category))

		for _, tool := range categoryTools {
			sb.WriteString(generateToolMarkdown(tool, routes[tool.Name]))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func groupToolsByCategory(tools []mcp.Tool) map[string][]mcp.Tool {
	categories := make(map[string][]mcp.Tool)

	for _, tool := range tools {
		category := getCategory(tool)
		categories[category] = append(categories[category], tool)
	}

	return categories
}

func getCategory(tool mcp.Tool) string {
	if hint := tool.Annotations.ReadOnlyHint; hint != nil && *hint {
		return categoryRead
	}
	return categoryWrite
}

func generateToolMarkdown(tool mcp.Tool, route string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
	if route != "" {
		fmt.Fprintf(&sb, "`%s`\n\n", route)
	}
	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		return sb.String()
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	// Required arguments first, then by name.
	sort.Slice(names, func(i, j int) bool {
		ri := slices.Contains(tool.InputSchema.Required, names[i])
		rj := slices.Contains(tool.InputSchema.Required, names[j])
		if ri != rj {
			return ri
		}
		return names[i] < names[j]
	})

	sb.WriteString("| Argument | Type | Required | Default | Description |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, name := range names {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		required := "no"
		if slices.Contains(tool.InputSchema.Required, name) {
			required = "yes"
		}
		def := ""
		if v, ok := prop["default"]; ok {
			def = fmt.Sprintf("`%v`", v)
		}
		desc, _ := prop["description"].(string)
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s | %s |\n", name, propertyType(prop), required, def, desc)
	}
	sb.WriteString("\n")

	return sb.String()
}

// propertyType renders the JSON schema type, including the item type of arrays.
func propertyType(prop map[string]any) string {
	t, ok := prop["type"].(string)
	if !ok {
		return "any"
	}
	if t != "array" {
		return t
	}
	items, ok := prop["items"].(map[string]any)
	if !ok {
		return "array"
	}
	return "array of " + propertyType(items)
}
