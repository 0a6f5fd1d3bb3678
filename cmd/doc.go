// Package cmd implements the command-line interface for sheetsgate.
//
// This package provides the following commands:
//   - serve: Start the HTTP gateway authenticated with API keys
//   - mcp: Serve the same tools over the MCP stdio transport
//   - keys generate: Create a new API key and optionally add it to the key file
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all tools
package cmd
