// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for sheetsgate.
//
// # Metrics
//
// HTTP:
//   - http_requests_total: counter of requests by method, route and status
//   - http_request_duration_seconds: histogram of request durations
//
// Google API:
//   - google_api_operations_total: counter of Sheets and Drive calls by service, operation, status
//   - google_api_operation_duration_seconds: histogram of call durations
//
// Authentication and lifecycle:
//   - api_key_auth_total: counter of X-API-Key checks by result (success, missing, invalid)
//   - api_keys_loaded: gauge of clients in the key store
//   - backend_context_ready: 1 while the backend context is ready, 0 otherwise
//
// Tools:
//   - tool_invocations_total: counter of tool calls by tool, transport (http, mcp) and status
//   - tool_duration_seconds: histogram of tool call durations
//
// The client_id label is added to tool metrics only when DetailedLabels is set.
//
// # Exporters
//
// Metrics go to a private Prometheus registry (served by the metrics server),
// to an OTLP collector, or to stdout. Traces go to OTLP or stdout, or are
// disabled. Config is filled from the telemetry section of the server
// configuration.
//
// # Audit logging
//
// AuditLogger writes one record per tool invocation with the client id, the
// spreadsheet id and the outcome. Share recipients are logged as anonymized
// hashes and domains unless AuditLoggingConfig.IncludePII is set.
package instrumentation
