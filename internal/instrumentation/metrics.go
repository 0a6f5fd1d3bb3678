package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrRoute     = "route"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrTransport = "transport"
	attrClientID  = "client_id"
)

// Authentication results recorded by RecordAPIKeyAuth.
const (
	AuthResultSuccess = "success"
	AuthResultMissing = "missing"
	AuthResultInvalid = "invalid"
)

// Tool transports recorded by RecordToolInvocation.
const (
	TransportHTTP = "http"
	TransportMCP  = "mcp"
)

// Metrics provides methods for recording observability metrics.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Google API metrics
	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	// Authentication and key store
	apiKeyAuthTotal metric.Int64Counter
	apiKeysLoaded   metric.Int64Gauge

	// Backend context lifecycle
	backendReady metric.Int64Gauge

	// Tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether the client_id label is included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments registered on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google Sheets and Drive API operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	m.apiKeyAuthTotal, err = meter.Int64Counter(
		"api_key_auth_total",
		metric.WithDescription("Total number of API key authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create api_key_auth_total counter: %w", err)
	}

	m.apiKeysLoaded, err = meter.Int64Gauge(
		"api_keys_loaded",
		metric.WithDescription("Number of client API keys currently loaded"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create api_keys_loaded gauge: %w", err)
	}

	m.backendReady, err = meter.Int64Gauge(
		"backend_context_ready",
		metric.WithDescription("1 while the backend context is ready to serve requests, 0 otherwise"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_context_ready gauge: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"tool_invocations_total",
		metric.WithDescription("Total number of tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"tool_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request. route is the matched route
// pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrRoute, route),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordGoogleAPIOperation records a Google API call.
//
// Parameters:
//   - service: ServiceSheets or ServiceDrive
//   - operation: backend operation name (values.get, files.create, ...)
//   - status: "success" or "error"
//   - duration: time taken for the call
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil || m.googleAPIOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.googleAPIOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAPIKeyAuth records an API key authentication attempt.
// result is one of AuthResultSuccess, AuthResultMissing, AuthResultInvalid.
func (m *Metrics) RecordAPIKeyAuth(ctx context.Context, result string) {
	if m == nil || m.apiKeyAuthTotal == nil {
		return
	}
	m.apiKeyAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// SetAPIKeysLoaded records the size of the loaded key mapping.
func (m *Metrics) SetAPIKeysLoaded(ctx context.Context, n int) {
	if m == nil || m.apiKeysLoaded == nil {
		return
	}
	m.apiKeysLoaded.Record(ctx, int64(n))
}

// SetBackendReady records whether the backend context is ready.
func (m *Metrics) SetBackendReady(ctx context.Context, ready bool) {
	if m == nil || m.backendReady == nil {
		return
	}
	var v int64
	if ready {
		v = 1
	}
	m.backendReady.Record(ctx, v)
}

// RecordToolInvocation records a tool invocation.
//
// Parameters:
//   - toolName: name of the tool (e.g. "update_cells")
//   - transport: TransportHTTP or TransportMCP
//   - status: "success" or "error"
//   - clientID: caller identity, only included if detailed labels are enabled
//   - duration: time taken for the tool execution
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, transport, status, clientID string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrTransport, transport),
		attribute.String(attrStatus, status),
	}

	if m.detailedLabels && clientID != "" {
		attrs = append(attrs, attribute.String(attrClientID, clientID))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
