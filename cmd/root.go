// Package cmd wires the drover CLI: configuration loading, logger
// bootstrap and the run/version subcommands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/droverhq/drover-cli/internal/config"
	"github.com/droverhq/drover-cli/internal/observability"
)

var (
	cfgFile   string
	loadedCfg *config.Config
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:     "drover",
	Short:   "Drover is an autonomous browser task agent.",
	Long:    "Drover drives a real browser with a decision model to complete natural-language tasks: navigating, clicking, typing and collecting data until the goal is met.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := initializeConfig()
		if err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console"})
			return err
		}
		loadedCfg = cfg
		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting drover", zap.String("version", Version))
		return nil
	},
}

// ExecuteContext runs the CLI under the given signal-aware context.
func ExecuteContext(ctx context.Context) {
	defer observability.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./drover.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeConfig reads defaults, the optional config file and DROVER_*
// environment variables into a validated Config.
func initializeConfig() (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("drover")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	return config.NewConfigFromViper(v)
}
