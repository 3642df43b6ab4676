package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/reversion/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage engine configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  reversion config init -o reversion.yaml
  reversion config validate -f reversion.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply .env and REVERSION_* overrides and
report every problem found.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "reversion.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  reversion run -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	fmt.Printf("Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Instruments: %v\n", cfg.Instruments)
	fmt.Printf("  Notional: %.2f (cap %.2f), max open %d\n", cfg.Notional, cfg.MaxNotional, cfg.MaxOpenPositions)
	fmt.Printf("  Dry run: %v\n", cfg.DryRun)
	for _, p := range params {
		fmt.Printf("  Strategy %s (%s): entry <= %.0f, stop %.2f%%, target %.2f%%, exit osc >= %.0f, forced %s, cooldown %s\n",
			p.ID, p.Kind, p.EntryThreshold, p.StopLossPct, p.TakeProfitPct, p.OscillatorExit, p.ForcedExit, p.Cooldown)
	}
	fmt.Printf("  Journal: %s\n", cfg.Journal.Type)
	fmt.Printf("  Feed: %s\n", cfg.Feed.Type)
	return nil
}
