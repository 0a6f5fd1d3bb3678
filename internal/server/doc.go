// Package server wires the gateway into an HTTP server.
//
// HTTPServer serves the tool endpoints behind a chi middleware chain:
// request ids (X-Request-ID), structured request logging with HTTP metrics,
// panic recovery, CORS, a per-request timeout and OpenTelemetry tracing.
// It also serves the Kubernetes health endpoints /healthz and /readyz, where readiness
// follows the backend context.
//
// MetricsServer exposes Prometheus metrics on a dedicated port so that
// operational data stays off the public listener.
package server
