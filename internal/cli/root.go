// Package cli defines the cobra command tree for viewctl.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"viewly/internal/config"
	"viewly/internal/logging"
)

var (
	flagFormat string
	flagEnv    string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "viewctl",
		Short:         "Operate the viewing escrow service",
		Long:          "Operational commands for the viewing escrow service: schema migration, property ownership, one-shot sweeps and development tokens.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagEnv, "env-file", "", "load environment from this file before reading configuration")

	root.AddCommand(
		newMigrateCmd(),
		newPropertyCmd(),
		newSweepCmd(),
		newTokenCmd(),
	)
	return root
}

// loadConfig reads .env (or --env-file) and the environment.
func loadConfig() (config.Config, error) {
	if flagEnv != "" {
		if err := config.LoadEnvFile(flagEnv); err != nil {
			return config.Config{}, fmt.Errorf("loading %s: %w", flagEnv, err)
		}
	} else {
		config.LoadEnv()
	}
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.IsProduction())
	return cfg, nil
}

func isJSON() bool {
	return flagFormat == "json"
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
