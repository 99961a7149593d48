// Package cli implements the classline command surface.
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/classline/classline/internal/config"
	"github.com/classline/classline/internal/logging"
)

// Execute runs the root command.
func Execute(version string) error {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	var configFile string
	var logLevel string

	cmd := &cobra.Command{
		Use:           "classline",
		Short:         "School messaging client engine",
		Long:          "classline keeps a local, offline-usable view of school chats in sync with the remote service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	loadConfig := func() (*config.Config, error) {
		loader := config.NewLoader()
		if configFile != "" {
			loader.SetConfigFile(configFile)
		}
		cfg, err := loader.Load()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		logging.Init(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		return cfg, nil
	}

	cmd.AddCommand(
		newRunCmd(loadConfig),
		newLoginCmd(loadConfig),
		newStatusCmd(loadConfig),
	)

	return cmd
}
