package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teemow/sheetsgate/internal/config"
	"github.com/teemow/sheetsgate/internal/logging"
)

// rootCmd represents the base command for the sheetsgate application
var rootCmd = &cobra.Command{
	Use:   "sheetsgate",
	Short: "REST gateway for Google Sheets and Drive tools",
	Long: `sheetsgate exposes spreadsheet operations (read and write cells, create and
list sheets, sharing) backed by Google Sheets and Google Drive.

It can run as:
  - An HTTP gateway authenticated with API keys (serve)
  - An MCP (Model Context Protocol) server over stdio (mcp)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; a broken one is not.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	},
}

// version will be set by main
var version = "dev"

var (
	configFile string
	debugMode  bool
	logFormat  string
)

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "sheetsgate version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newKeysCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}

// loadConfig resolves the configuration and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("debug") {
		cfg.Log.Debug = debugMode
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so that stdout stays
// free for the MCP stdio transport and command output.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Debug || cfg.Server.Reload)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
