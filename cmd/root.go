// Package cmd implements the CLI commands for bundloor.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ethpandaops/bundloor/pkg/config"
)

const defaultConfigFile = "bundloor.yaml"

var (
	cfgFile string
	cfg     *config.Config
	logger  *logrus.Logger
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "bundloor",
	Short: "Multi-builder MEV bundle submission",
	Long: `Bundloor submits MEV bundles to the top block builders by market share,
skipping builders that fail their health check, and reports the resulting
block coverage.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogger()

		return initConfig()
	},
}

func init() {
	v.SetEnvPrefix("BUNDLOOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Get defaults from config package
	defaults := config.DefaultConfig()

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default ./bundloor.yaml if present)")
	rootCmd.PersistentFlags().String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("el-rpc", "", "Execution layer JSON-RPC URL (target block, chain ID, nonces)")
	rootCmd.PersistentFlags().String("searcher-key", "", "Searcher ECDSA private key (hex) for request signing and validation txs")
	rootCmd.PersistentFlags().Uint64("chain-id", defaults.ChainID, "Chain ID used when no EL RPC is configured")

	// Manager flags
	rootCmd.PersistentFlags().Int("top-n", defaults.Manager.TopN, "Number of healthy builders to submit to")
	rootCmd.PersistentFlags().Bool("enable-logging", defaults.Manager.EnableLogging, "Log per-builder health and submission outcomes")
	rootCmd.PersistentFlags().Duration("health-timeout", defaults.Manager.HealthTimeout, "Per-builder health check timeout")
	rootCmd.PersistentFlags().Duration("submit-timeout", defaults.Manager.SubmitTimeout, "Per-builder submission timeout")
	rootCmd.PersistentFlags().Int("submit-retries", defaults.Manager.SubmitRetries, "Extra submission attempts for failed builders")

	// Market share refresh
	rootCmd.PersistentFlags().String("marketshare-url", "", "Builder stats endpoint for live market shares (disabled when empty)")

	// Bind all flags to viper
	if err := v.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		logrus.WithError(err).Fatal("Failed to bind flags")
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initLogger() {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	setLogLevel(v.GetString("log-level"))
}

func setLogLevel(levelStr string) {
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
}

func initConfig() error {
	loader := config.NewLoader(logger)

	var base *config.Config

	path := cfgFile
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			logger.WithError(err).Warn("Error checking for config file")
		}
	}

	if path != "" {
		loaded, err := loader.LoadConfig(path)
		if err != nil {
			return err
		}

		base = loaded
	}

	merged, err := loader.LoadConfigFromFlags(v, base)
	if err != nil {
		return fmt.Errorf("failed to apply flags: %w", err)
	}

	if err := config.ValidateConfig(merged); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cfg = merged
	setLogLevel(cfg.LogLevel)

	return nil
}
