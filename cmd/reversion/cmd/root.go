package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/reversion/config"
	"github.com/rustyeddy/reversion/logging"
)

var rootCmd = &cobra.Command{
	Use:   "reversion",
	Short: "RSI mean-reversion strategy execution engine",
	Long: `Reversion trades short-horizon mean reversion on spot pairs.

It provides tools for:
  - Running the position lifecycle engine against a live bar feed
  - Replaying CSV bars through the engine in dry-run mode
  - Generating and validating configuration files
  - Querying the position journal

Every position moves PENDING -> OPEN -> CLOSING -> CLOSED; at most one
position is active per instrument and strategy.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}
