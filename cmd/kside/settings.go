package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kside/internal/config"
	"kside/internal/logging"
)

// flagKeys binds persistent flags to config keys; an explicitly set flag
// wins over the config file and KSIDE_* variables.
var flagKeys = map[string]string{
	"codec":           "worker.codec",
	"dep-root":        "project.dependency_root",
	"log-level":       "logging.level",
	"log-json":        "logging.json",
	"trace":           "trace.output",
	"trace-level":     "trace.level",
	"trace-format":    "trace.format",
	"trace-mode":      "trace.mode",
	"trace-ring-size": "trace.ring_size",
	"trace-heartbeat": "trace.heartbeat",
}

// loadConfig reads the config file, environment and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	v, err := config.NewViper(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := bindFlags(cmd, v); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Root().PersistentFlags()
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// setupLogging installs the process logger on stderr.
func setupLogging(cfg *config.Config) error {
	l, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.JSON)
	if err != nil {
		return err
	}
	logging.SetLogger(l)
	return nil
}
