// Package cmd implements the command-line interface for the catalog migrator.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdcommon "github.com/jonesrussell/north-cloud/catalog-migrator/cmd/common"
	"github.com/jonesrussell/north-cloud/catalog-migrator/cmd/migrate"
	"github.com/jonesrussell/north-cloud/catalog-migrator/cmd/stage"
	"github.com/jonesrussell/north-cloud/catalog-migrator/cmd/status"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	cfgFile     string
	debug       bool
	stateDir    string
	metricsAddr string

	rootCmd = &cobra.Command{
		Use:   "catalog-migrator",
		Short: "Migrate a legacy storefront catalog into VTEX",
		Long: `catalog-migrator discovers product pages on a legacy storefront, extracts
them into structured records with an LLM, reconciles the category tree and
writes the result to a VTEX catalog after operator confirmation.

Every stage saves a checkpoint, so an interrupted run resumes where it stopped.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	_ = godotenv.Load()

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory for checkpoints and the plan (overrides app.state_dir)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-address", "", "serve Prometheus metrics on this address while running")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "catalog-migrator version %s\n", Version)
		},
	})

	rootCmd.AddCommand(migrate.Command())
	rootCmd.AddCommand(stage.Commands()...)
	rootCmd.AddCommand(status.Command())
}

// initConfig binds global flags and their environment variables in viper.
// The YAML file itself is read by internal/config so env struct tags apply.
func initConfig() error {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	flags := rootCmd.PersistentFlags()
	bindings := []struct {
		key  string
		flag string
		env  string
	}{
		{cmdcommon.KeyConfig, "config", "CONFIG_FILE"},
		{cmdcommon.KeyDebug, "debug", "APP_DEBUG"},
		{cmdcommon.KeyStateDir, "state-dir", "STATE_DIR"},
		{cmdcommon.KeyMetrics, "metrics-address", "METRICS_ADDRESS"},
	}
	for _, b := range bindings {
		if err := viper.BindPFlag(b.key, flags.Lookup(b.flag)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", b.flag, err)
		}
		if err := viper.BindEnv(b.key, b.env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b.env, err)
		}
	}
	return nil
}
