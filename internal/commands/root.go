package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"FinCast/internal/di"
	"FinCast/pkg/config"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "fincast",
	Short: "Next-session close forecasts for IDX equities",
	Long: `FinCast trains one regression forest per instrument on a year of daily
bars and serves next-session close forecasts over HTTP, websocket and the CLI.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// runtime builds the forecasting graph for one-shot commands.
func runtime() (*di.Runtime, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	rt, cleanup, err := di.InitializeRuntime(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return rt, cleanup, nil
}
