// Package common provides helpers shared by the HTTP and MCP tool transports:
// argument extraction and per-invocation instrumentation.
package common
