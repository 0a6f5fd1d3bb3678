package instrumentation

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "test-service"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Error("expected metrics to be non-nil even when disabled")
	}
	if provider.Gatherer() != nil {
		t.Error("expected no gatherer when disabled")
	}
	if provider.Tracer("test") == nil {
		t.Error("expected a no-op tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no error on shutdown, got %v", err)
	}

	// No-op metrics must not panic.
	provider.Metrics().RecordAPIKeyAuth(context.Background(), AuthResultSuccess)
	provider.Metrics().SetBackendReady(context.Background(), true)
}

func TestNewProvider_PrometheusGatherer(t *testing.T) {
	provider := newTestProvider(t)
	if !provider.Enabled() {
		t.Fatal("expected provider to be enabled")
	}

	ctx := context.Background()
	provider.Metrics().RecordAPIKeyAuth(ctx, AuthResultInvalid)
	provider.Metrics().SetBackendReady(ctx, true)
	provider.Metrics().RecordToolInvocation(ctx, "update_cells", TransportHTTP, StatusSuccess, "default", 10*time.Millisecond)

	gatherer := provider.Gatherer()
	if gatherer == nil {
		t.Fatal("expected a gatherer for the prometheus exporter")
	}
	families, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	want := []string{"api_key_auth", "backend_context_ready", "tool_invocations", "go_goroutines"}
	for _, prefix := range want {
		found := false
		for _, mf := range families {
			if strings.HasPrefix(mf.GetName(), prefix) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected a metric family starting with %q", prefix)
		}
	}
}

func TestNewProvider_StdoutExporters(t *testing.T) {
	ctx := context.Background()
	provider, err := NewProvider(ctx, Config{
		ServiceName:       "test-service",
		Enabled:           true,
		MetricsExporter:   ExporterStdout,
		TracingExporter:   ExporterStdout,
		TraceSamplingRate: 1,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if provider.Gatherer() != nil {
		t.Error("expected no gatherer for stdout exporter")
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{
			name:   "unknown metrics exporter",
			config: Config{ServiceName: "s", Enabled: true, MetricsExporter: "statsd"},
		},
		{
			name:   "otlp without endpoint",
			config: Config{ServiceName: "s", Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP},
		},
		{
			name:   "sampling rate out of range",
			config: Config{ServiceName: "s", Enabled: true, TraceSamplingRate: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(context.Background(), tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}
