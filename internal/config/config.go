// Package config resolves sheetsgate configuration from defaults, an optional
// YAML file and the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, well-known
// environment variables (API_KEYS_FILE, SERVICE_ACCOUNT_PATH, ...), and
// SHEETSGATE_-prefixed variables. Command-line flags are applied on top by the
// cmd package.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables mapped onto config keys.
// SHEETSGATE_SERVER__PORT maps to server.port.
const EnvPrefix = "SHEETSGATE_"

// DefaultKeysFile is the key store path used when nothing else is configured.
const DefaultKeysFile = "api_keys.json"

// wellKnownEnv maps the unprefixed environment variables honored for
// compatibility onto config keys.
var wellKnownEnv = map[string]string{
	"API_KEYS_FILE":        "keys.file",
	"SERVICE_ACCOUNT_PATH": "google.service_account_path",
	"CREDENTIALS_CONFIG":   "google.credentials_config",
	"CREDENTIALS_PATH":     "google.credentials_path",
	"TOKEN_PATH":           "google.token_path",
	"DRIVE_FOLDER_ID":      "google.drive_folder_id",
	"METRICS_ENABLED":      "metrics.enabled",
	"METRICS_ADDR":         "metrics.addr",

	"OTEL_SERVICE_NAME":           "telemetry.service_name",
	"OTEL_SERVICE_INSTANCE_ID":    "telemetry.instance_id",
	"K8S_NAMESPACE":               "telemetry.k8s_namespace",
	"K8S_POD_NAME":                "telemetry.k8s_pod_name",
	"INSTRUMENTATION_ENABLED":     "telemetry.enabled",
	"METRICS_EXPORTER":            "telemetry.metrics_exporter",
	"TRACING_EXPORTER":            "telemetry.tracing_exporter",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "telemetry.otlp_endpoint",
	"OTEL_EXPORTER_OTLP_INSECURE": "telemetry.otlp_insecure",
	"OTEL_TRACES_SAMPLER_ARG":     "telemetry.sampling_rate",
	"METRICS_DETAILED_LABELS":     "telemetry.detailed_labels",
	"AUDIT_LOGGING_ENABLED":       "telemetry.audit.enabled",
	"AUDIT_LOGGING_INCLUDE_PII":   "telemetry.audit.include_pii",
}

// Config is the resolved configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Keys      KeysConfig      `koanf:"keys"`
	Google    GoogleConfig    `koanf:"google"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Reload            bool          `koanf:"reload"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type KeysConfig struct {
	File string `koanf:"file"`
}

// GoogleConfig selects how backend credentials are obtained. The first
// populated source wins, in field order.
type GoogleConfig struct {
	ServiceAccountPath string `koanf:"service_account_path"`
	CredentialsConfig  string `koanf:"credentials_config"`
	TokenPath          string `koanf:"token_path"`
	CredentialsPath    string `koanf:"credentials_path"`
	DriveFolderID      string `koanf:"drive_folder_id"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// TelemetryConfig selects the OpenTelemetry exporters. metrics.enabled false
// turns off the whole section.
type TelemetryConfig struct {
	Enabled         bool        `koanf:"enabled"`
	ServiceName     string      `koanf:"service_name"`
	InstanceID      string      `koanf:"instance_id"`
	K8sNamespace    string      `koanf:"k8s_namespace"`
	K8sPodName      string      `koanf:"k8s_pod_name"`
	MetricsExporter string      `koanf:"metrics_exporter"`
	TracingExporter string      `koanf:"tracing_exporter"`
	OTLPEndpoint    string      `koanf:"otlp_endpoint"`
	OTLPInsecure    bool        `koanf:"otlp_insecure"`
	SamplingRate    float64     `koanf:"sampling_rate"`
	DetailedLabels  bool        `koanf:"detailed_labels"`
	Audit           AuditConfig `koanf:"audit"`
}

type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	IncludePII bool `koanf:"include_pii"`
}

type LogConfig struct {
	Format string `koanf:"format"`
	Debug  bool   `koanf:"debug"`
}

var defaults = map[string]any{
	"server.host":                "0.0.0.0",
	"server.port":                8080,
	"server.reload":              false,
	"server.read_header_timeout": "10s",
	"server.shutdown_timeout":    "30s",
	"server.request_timeout":     "60s",
	"server.cors_origins":        []string{"*"},
	"keys.file":                  DefaultKeysFile,
	"google.token_path":          "token.json",
	"google.credentials_path":    "credentials.json",
	"metrics.enabled":            true,
	"metrics.addr":               ":9090",
	"telemetry.enabled":          true,
	"telemetry.service_name":     "sheetsgate",
	"telemetry.metrics_exporter": "prometheus",
	"telemetry.tracing_exporter": "none",
	"telemetry.sampling_rate":    0.1,
	"telemetry.audit.enabled":    true,
	"log.format":                 "text",
	"log.debug":                  false,
}

// Load resolves the configuration. path names an optional YAML file; an empty
// path skips the file layer, while a path that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Unprefixed variables first so that SHEETSGATE_ variables win.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return wellKnownEnv[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration values the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Keys.File == "" {
		errs = append(errs, errors.New("keys.file must not be empty"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if r := c.Telemetry.SamplingRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampling_rate %g must be between 0 and 1", r))
	}
	if c.Server.RequestTimeout < 0 {
		errs = append(errs, errors.New("server.request_timeout must not be negative"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}
