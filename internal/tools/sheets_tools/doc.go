// Package sheets_tools registers the gateway's tool table as MCP tools.
//
// Each MCP tool decodes its arguments with the same typed parameters as the
// HTTP endpoint and performs the same single backend call. The result is
// returned as indented JSON text. The stdio transport runs as the local user
// and does not check API keys.
package sheets_tools
