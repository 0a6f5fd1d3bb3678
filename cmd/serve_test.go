package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/sheetsgate/internal/config"
	"github.com/teemow/sheetsgate/internal/instrumentation"
)

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "wildcard",
			input:    "*",
			expected: []string{"*"},
		},
		{
			name:     "multiple values",
			input:    "https://a.example.com,https://b.example.com",
			expected: []string{"https://a.example.com", "https://b.example.com"},
		},
		{
			name:     "values with spaces around comma",
			input:    "https://a.example.com, https://b.example.com",
			expected: []string{"https://a.example.com", "https://b.example.com"},
		},
		{
			name:     "trailing and leading commas",
			input:    ",https://a.example.com,",
			expected: []string{"https://a.example.com"},
		},
		{
			name:     "multiple consecutive commas",
			input:    "https://a.example.com,,https://b.example.com",
			expected: []string{"https://a.example.com", "https://b.example.com"},
		},
		{
			name:     "only commas and spaces",
			input:    ",  , , ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseCommaSeparatedList(tt.input))
		})
	}
}

func TestApplyServeFlags(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--port", "9000",
		"--reload",
		"--keys-file", "/tmp/keys.json",
		"--cors-origins", "https://a.example.com, https://b.example.com",
		"--metrics-enabled=false",
	}))

	var flags serveFlags
	flags.port, _ = cmd.Flags().GetInt("port")
	flags.reload, _ = cmd.Flags().GetBool("reload")
	flags.keysFile, _ = cmd.Flags().GetString("keys-file")
	flags.corsOrigins, _ = cmd.Flags().GetString("cors-origins")
	flags.metricsEnabled, _ = cmd.Flags().GetBool("metrics-enabled")

	applyServeFlags(cmd, cfg, flags)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset flags keep the configured value")
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.Reload)
	assert.Equal(t, "/tmp/keys.json", cfg.Keys.File)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
}

func TestTelemetryConfig(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantEnabled bool
	}{
		{name: "defaults", mutate: func(*config.Config) {}, wantEnabled: true},
		{name: "metrics disabled", mutate: func(c *config.Config) { c.Metrics.Enabled = false }},
		{name: "telemetry disabled", mutate: func(c *config.Config) { c.Telemetry.Enabled = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load("")
			require.NoError(t, err)
			tt.mutate(cfg)

			got := telemetryConfig(cfg)

			assert.Equal(t, tt.wantEnabled, got.Enabled)
			assert.Equal(t, "sheetsgate", got.ServiceName)
			assert.Equal(t, version, got.ServiceVersion)
			assert.Equal(t, instrumentation.ExporterPrometheus, got.MetricsExporter)
			assert.Equal(t, instrumentation.ExporterNone, got.TracingExporter)
			assert.Equal(t, 0.1, got.TraceSamplingRate)
			assert.True(t, got.AuditLogging.Enabled)
			assert.False(t, got.AuditLogging.IncludePII)
			assert.NoError(t, got.Validate())
		})
	}
}

func TestStartAndWait(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		block := make(chan struct{})
		defer close(block)
		err := startAndWait(func(ready chan<- struct{}) error {
			close(ready)
			<-block
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("listen failure", func(t *testing.T) {
		err := startAndWait(func(chan<- struct{}) error {
			return errors.New("address already in use")
		})
		assert.EqualError(t, err, "address already in use")
	})

	t.Run("returns before ready", func(t *testing.T) {
		err := startAndWait(func(chan<- struct{}) error {
			return nil
		})
		assert.Error(t, err)
	})
}

func TestNewBackendContextStartsUninitialized(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	bc := newBackendContext(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, instrumentation.AuditLoggingConfig{})
	assert.False(t, bc.Ready())

	start := time.Now()
	_, err = bc.Acquire()
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "Acquire must not block")
}

// keysLoaded returns the api_keys_loaded gauge value from provider.
func keysLoaded(t *testing.T, provider *instrumentation.Provider) float64 {
	t.Helper()
	families, err := provider.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "api_keys_loaded") {
			require.NotEmpty(t, mf.GetMetric())
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("api_keys_loaded not exported")
	return 0
}

func TestOpenKeyStoreTracksReloads(t *testing.T) {
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		ServiceName:     "sheetsgate-test",
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	path := filepath.Join(t.TempDir(), "api_keys.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"alice":"sk-alice"}`), 0600))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Keys.File = path

	store, err := openKeyStore(t.Context(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), provider.Metrics())
	require.NoError(t, err)
	assert.Equal(t, float64(1), keysLoaded(t, provider))

	require.NoError(t, os.WriteFile(path, []byte(`{"alice":"sk-alice","bob":"sk-bob"}`), 0600))
	require.NoError(t, store.Reload())
	assert.Equal(t, float64(2), keysLoaded(t, provider))

	// A rejected reload leaves the gauge alone.
	require.NoError(t, os.WriteFile(path, nil, 0600))
	assert.Error(t, store.Reload())
	assert.Equal(t, float64(2), keysLoaded(t, provider))
}
