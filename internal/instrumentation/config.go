package instrumentation

import (
	"errors"
	"fmt"
	"time"
)

// Config selects the exporters and resource attributes of a Provider. It is
// built by the cmd package from the telemetry section of the sheetsgate
// configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID falls back to the hostname when empty.
	ServiceInstanceID string

	// K8sNamespace and K8sPodName are attached as resource attributes when set.
	K8sNamespace string
	K8sPodName   string

	// Enabled false yields a Provider with no-op metrics and no tracing.
	Enabled bool

	MetricsExporter string
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme.
	OTLPEndpoint string
	// OTLPInsecure disables TLS for OTLP export. Local development only.
	OTLPInsecure bool

	TraceSamplingRate float64

	// DetailedLabels adds the client_id label to tool metrics.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig
}

// AuditLoggingConfig controls the per-invocation audit records.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs full share recipient addresses instead of anonymized hashes.
	IncludePII bool
}

// Validate rejects exporter combinations NewProvider cannot build. Empty
// exporters select the defaults, prometheus for metrics and none for traces.
func (c *Config) Validate() error {
	var errs []error
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate))
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter))
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter))
	}

	if c.usesOTLP() && c.OTLPEndpoint == "" {
		errs = append(errs, errors.New("OTLP endpoint is required when using an OTLP exporter"))
	}
	return errors.Join(errs...)
}

func (c *Config) usesOTLP() bool {
	return c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP
}

// Constants for metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	// Google service names
	ServiceSheets = "sheets"
	ServiceDrive  = "drive"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	DefaultMetricInterval = 10 * time.Second
)
