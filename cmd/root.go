package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/fr4iser90/FoundryCord-sub001/internal/config"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// logger is built in PersistentPreRunE from --verbose.
var logger = zap.NewNop()

var verbose bool

// overrides layers STATEBRIDGE_* environment variables and bound flags over
// the config files.
var overrides = newOverrides()

// envKeys are the config keys that may be overridden from the environment.
var envKeys = []string{
	"base_url", "token_endpoint", "snapshot_endpoint",
	"max_errors", "max_console", "collector_timeout",
	"output_dir", "default_format", "page_url",
	"listen_addr", "database",
}

func newOverrides() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("statebridge")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

var rootCmd = &cobra.Command{
	Use:           "statebridge",
	Short:         "Collect page state with consent and ship snapshots to the dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		logger = l
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		cfg = config.Merge(global, project)
		applyOverrides(&cfg, overrides)

		if _, err := cfg.Timeout(); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return c.Build()
}

// applyOverrides copies every key set in v onto c.
func applyOverrides(c *config.Config, v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) && v.GetString(key) != "" {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) && v.GetInt(key) > 0 {
			*dst = v.GetInt(key)
		}
	}
	str("base_url", &c.BaseURL)
	str("token_endpoint", &c.TokenEndpoint)
	str("snapshot_endpoint", &c.SnapshotEndpoint)
	str("collector_timeout", &c.CollectorTimeout)
	str("output_dir", &c.OutputDir)
	str("default_format", &c.DefaultFormat)
	str("page_url", &c.PageURL)
	str("listen_addr", &c.ListenAddr)
	str("database", &c.Database)
	num("max_errors", &c.MaxErrors)
	num("max_console", &c.MaxConsole)
}

// bindFlag ties a command flag to a config key so that an explicitly set
// flag wins over files and the environment.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := overrides.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().String("base-url", "", "dashboard backend base URL")
	if err := overrides.BindPFlag("base_url", rootCmd.PersistentFlags().Lookup("base-url")); err != nil {
		panic(err)
	}
}
