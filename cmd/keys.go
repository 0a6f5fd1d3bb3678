package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/sheetsgate/internal/keystore"
	"github.com/teemow/sheetsgate/internal/logging"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage gateway API keys",
	}
	cmd.AddCommand(newKeysGenerateCmd())
	return cmd
}

func newKeysGenerateCmd() *cobra.Command {
	var (
		add      bool
		keysFile string
	)

	cmd := &cobra.Command{
		Use:   "generate <client-id>",
		Short: "Generate a new API key for a client",
		Long: `Generate a new random API key for client-id and print it.

With --add the key is also written to the key file. Existing client ids and
keys are never overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID := args[0]
			key, err := keystore.GenerateKey()
			if err != nil {
				return err
			}

			if add {
				path := keysFile
				if !cmd.Flags().Changed("keys-file") {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					path = cfg.Keys.File
				}
				if err := keystore.Add(path, clientID, key, logging.DefaultLogger()); err != nil {
					return fmt.Errorf("failed to add key: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Added client %q to %s\n", clientID, path)
			}

			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	cmd.Flags().BoolVar(&add, "add", false, "Add the generated key to the key file")
	cmd.Flags().StringVar(&keysFile, "keys-file", "", "Path to the API key file (default from configuration)")

	return cmd
}
