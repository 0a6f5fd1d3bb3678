package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/teemow/sheetsgate/internal/auth"
	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/config"
	"github.com/teemow/sheetsgate/internal/gateway"
	"github.com/teemow/sheetsgate/internal/google"
	"github.com/teemow/sheetsgate/internal/instrumentation"
	"github.com/teemow/sheetsgate/internal/keystore"
	"github.com/teemow/sheetsgate/internal/logging"
	"github.com/teemow/sheetsgate/internal/server"
	"github.com/teemow/sheetsgate/internal/sheets"
)

// serveFlags holds the serve command flags. Each is applied over the loaded
// configuration only when set explicitly.
type serveFlags struct {
	host           string
	port           int
	reload         bool
	keysFile       string
	corsOrigins    string
	metricsEnabled bool
	metricsAddr    string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Long: `Start the HTTP gateway that forwards tool requests to Google Sheets and Drive.

Every /tools/* endpoint requires an API key in the X-API-Key header. Keys are
read from the key file (API_KEYS_FILE, default api_keys.json), which is created
with two placeholder entries when it does not exist.

Backend credentials are resolved in order from SERVICE_ACCOUNT_PATH,
CREDENTIALS_CONFIG, TOKEN_PATH + CREDENTIALS_PATH and finally Application
Default Credentials. The server refuses to start without them.

Liveness and readiness are served on /healthz and /readyz, Prometheus metrics on
a separate listener (--metrics-addr).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyServeFlags(cmd, cfg, flags)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&flags.host, "host", "0.0.0.0", "Host to bind the gateway to")
	cmd.Flags().IntVar(&flags.port, "port", 8080, "Port to bind the gateway to")
	cmd.Flags().BoolVar(&flags.reload, "reload", false, "Development mode: debug logging and reload the key file on change")
	cmd.Flags().StringVar(&flags.keysFile, "keys-file", config.DefaultKeysFile, "Path to the API key file")
	cmd.Flags().StringVar(&flags.corsOrigins, "cors-origins", "*", "Comma-separated list of allowed CORS origins")
	cmd.Flags().BoolVar(&flags.metricsEnabled, "metrics-enabled", true, "Serve Prometheus metrics on a separate listener")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Address of the metrics listener")

	return cmd
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config, flags serveFlags) {
	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Server.Host = flags.host
	}
	if changed("port") {
		cfg.Server.Port = flags.port
	}
	if changed("reload") {
		cfg.Server.Reload = flags.reload
	}
	if changed("keys-file") {
		cfg.Keys.File = flags.keysFile
	}
	if changed("cors-origins") {
		cfg.Server.CORSOrigins = parseCommaSeparatedList(flags.corsOrigins)
	}
	if changed("metrics-enabled") {
		cfg.Metrics.Enabled = flags.metricsEnabled
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = flags.metricsAddr
	}
}

func runServe(cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrConfig := telemetryConfig(cfg)

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() && provider.Gatherer() != nil {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		if err := startAndWait(metricsServer.StartWithReadySignal); err != nil {
			return fmt.Errorf("metrics server failed to start: %w", err)
		}
		logger.Info("Metrics server started", slog.String("addr", metricsServer.ListenAddr()))
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Warn("Error during metrics server shutdown", logging.Err(err))
			}
		}()
	}

	metrics := provider.Metrics()

	store, err := openKeyStore(shutdownCtx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	bc := newBackendContext(cfg, logger, metrics, instrConfig.AuditLogging)
	if err := bc.Start(shutdownCtx); err != nil {
		return fmt.Errorf("failed to initialize backend: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := bc.Stop(ctx); err != nil {
			logger.Warn("Error during backend shutdown", logging.Err(err))
		}
	}()

	gw := gateway.New(bc, auth.New(store, metrics))
	health := server.NewHealthChecker(bc)
	httpServer := server.NewHTTPServer(server.HTTPConfig{
		Addr:              cfg.Server.Addr(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		RequestTimeout:    cfg.Server.RequestTimeout,
		CORSOrigins:       cfg.Server.CORSOrigins,
		Metrics:           metrics,
		Logger:            logger,
	}, gw, health)

	serverErr := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		serverErr <- httpServer.StartWithReadySignal(ready)
	}()

	select {
	case <-ready:
		health.SetReady(true)
		logger.Info("sheetsgate listening",
			slog.String("addr", httpServer.ListenAddr()),
			slog.Bool("reload", cfg.Server.Reload))
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	}

	select {
	case <-shutdownCtx.Done():
		logger.Info("Shutdown signal received, draining connections")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// startAndWait runs start in the background and waits until it signals
// readiness, fails, or does not come up within five seconds.
func startAndWait(start func(ready chan<- struct{}) error) error {
	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		if err := start(ready); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ready:
		return nil
	case err := <-errCh:
		if err == nil {
			return errors.New("server stopped before becoming ready")
		}
		return err
	case <-time.After(5 * time.Second):
		return errors.New("startup timed out")
	}
}

// openKeyStore loads the key file and keeps the api_keys_loaded gauge current.
// With --reload the file is watched until ctx is done.
func openKeyStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (*keystore.Store, error) {
	store, err := keystore.NewStore(cfg.Keys.File, logging.NewSlogAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load API keys: %w", err)
	}
	metrics.SetAPIKeysLoaded(ctx, store.Len())
	store.OnReload(func(clients int) {
		metrics.SetAPIKeysLoaded(ctx, clients)
	})
	logger.Info("API keys loaded", slog.String("path", cfg.Keys.File), slog.Int("clients", store.Len()))

	if cfg.Server.Reload {
		if err := store.Watch(ctx); err != nil {
			logger.Warn("Cannot watch API key file", logging.Err(err))
		}
	}
	return store, nil
}

// newBackendContext returns an Uninitialized backend context whose factory
// resolves credentials and builds the Sheets and Drive clients.
// telemetryConfig maps the telemetry section onto the instrumentation
// provider's configuration.
func telemetryConfig(cfg *config.Config) instrumentation.Config {
	t := cfg.Telemetry
	return instrumentation.Config{
		ServiceName:       t.ServiceName,
		ServiceVersion:    version,
		ServiceInstanceID: t.InstanceID,
		K8sNamespace:      t.K8sNamespace,
		K8sPodName:        t.K8sPodName,
		Enabled:           t.Enabled && cfg.Metrics.Enabled,
		MetricsExporter:   t.MetricsExporter,
		TracingExporter:   t.TracingExporter,
		OTLPEndpoint:      t.OTLPEndpoint,
		OTLPInsecure:      t.OTLPInsecure,
		TraceSamplingRate: t.SamplingRate,
		DetailedLabels:    t.DetailedLabels,
		AuditLogging: instrumentation.AuditLoggingConfig{
			Enabled:    t.Audit.Enabled,
			IncludePII: t.Audit.IncludePII,
		},
	}
}

func newBackendContext(cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics, audit instrumentation.AuditLoggingConfig) *backend.Context {
	factory := func(ctx context.Context) (backend.Backend, error) {
		creds, err := google.FindCredentials(ctx, google.Config{
			ServiceAccountPath: cfg.Google.ServiceAccountPath,
			CredentialsConfig:  cfg.Google.CredentialsConfig,
			TokenPath:          cfg.Google.TokenPath,
			CredentialsPath:    cfg.Google.CredentialsPath,
		}, logging.NewSlogAdapter(logger))
		if err != nil {
			return nil, err
		}
		logger.Info("Google credentials resolved",
			slog.String("source", creds.Source),
			slog.String("subject", creds.Subject))

		client, err := sheets.NewClient(ctx, sheets.Options{
			DriveFolderID: cfg.Google.DriveFolderID,
			Metrics:       metrics,
			Logger:        logger,
		}, option.WithHTTPClient(google.NewHTTPClient(ctx, creds.TokenSource)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	return backend.NewContext(factory,
		backend.WithMetrics(metrics),
		backend.WithAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, audit)),
		backend.WithLogger(logger),
	)
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
