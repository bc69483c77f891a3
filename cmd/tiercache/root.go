package main

import (
	"os"

	"github.com/go-kit/log"
	"github.com/spf13/cobra"

	"github.com/IvanBrykalov/tiercache/config"
	"github.com/IvanBrykalov/tiercache/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tiercache",
		Short:        "Tiered, cost-accounted cache tooling",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file (env TIERCACHE_CONFIG)")
	root.PersistentFlags().String("log-level", "", "debug | info | warn | error (env TIERCACHE_LOG_LEVEL, overrides config)")

	root.AddCommand(newWarmCmd(), newBenchCmd())
	return root
}

// flagOrEnv returns the flag value, else the environment value, else def.
func flagOrEnv(cmd *cobra.Command, flagName, envName, def string) string {
	if v, _ := cmd.Flags().GetString(flagName); v != "" {
		return v
	}
	if v, ok := os.LookupEnv(envName); ok {
		return v
	}
	return def
}

// setup loads the configuration and builds the logger for cmd.
func setup(cmd *cobra.Command) (config.Config, log.Logger, error) {
	cfg, err := config.Load(flagOrEnv(cmd, "config", "TIERCACHE_CONFIG", ""))
	if err != nil {
		return cfg, nil, err
	}
	cfg.LogLevel = flagOrEnv(cmd, "log-level", "TIERCACHE_LOG_LEVEL", cfg.LogLevel)
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log.With(logger, "cmd", cmd.Name()), nil
}
