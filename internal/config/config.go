// Package config loads kside settings from an optional config file and
// KSIDE_* environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. KSIDE_WORKER_CODEC.
const EnvPrefix = "KSIDE"

// Config is the complete kside configuration.
type Config struct {
	Worker  WorkerConfig  `mapstructure:"worker"`
	Project ProjectConfig `mapstructure:"project"`
	Trace   TraceConfig   `mapstructure:"trace"`
	Logging LoggingConfig `mapstructure:"logging"`
	Watch   WatchConfig   `mapstructure:"watch"`
}

// WorkerConfig selects how the compiler worker is started and spoken to.
type WorkerConfig struct {
	// Codec is the wire format: "json" or "msgpack".
	Codec string `mapstructure:"codec"`
	// Command runs the worker; empty means this binary's own "worker" command.
	Command []string `mapstructure:"command"`
	// MaxLanes bounds how many lanes may run a turn at once (0 = unbounded).
	MaxLanes int `mapstructure:"max_lanes"`
}

// ProjectConfig controls package loading and artifacts.
type ProjectConfig struct {
	DependencyRoot string `mapstructure:"dependency_root"`
	// Target overrides the manifest's compile target when set.
	Target    string `mapstructure:"target"`
	OutputDir string `mapstructure:"output_dir"`
}

// TraceConfig mirrors the --trace flags.
type TraceConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
	// Mode is stream, ring or both. A ring is dumped to stderr when a
	// command fails.
	Mode     string `mapstructure:"mode"`
	RingSize int    `mapstructure:"ring_size"`
	// Heartbeat is the interval of pending-request heartbeats (0 = off).
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// WatchConfig controls `kside watch`.
type WatchConfig struct {
	DebounceMs int `mapstructure:"debounce_ms"`
}

// Debounce returns the watch debounce as a duration.
func (c WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{
			Codec: "json",
		},
		Project: ProjectConfig{
			DependencyRoot: "yelm_modules",
			OutputDir:      "built",
		},
		Trace: TraceConfig{
			Level:  "off",
			Format: "auto",
			Output:   "-",
			Mode:     "stream",
			RingSize: 2048,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
		Watch: WatchConfig{
			DebounceMs: 150,
		},
	}
}

// SetDefaults registers Default() with v so unset keys and env lookups
// resolve.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("worker.codec", defaults.Worker.Codec)
	v.SetDefault("worker.command", []string{})
	v.SetDefault("worker.max_lanes", defaults.Worker.MaxLanes)

	v.SetDefault("project.dependency_root", defaults.Project.DependencyRoot)
	v.SetDefault("project.target", defaults.Project.Target)
	v.SetDefault("project.output_dir", defaults.Project.OutputDir)

	v.SetDefault("trace.level", defaults.Trace.Level)
	v.SetDefault("trace.format", defaults.Trace.Format)
	v.SetDefault("trace.output", defaults.Trace.Output)
	v.SetDefault("trace.mode", defaults.Trace.Mode)
	v.SetDefault("trace.ring_size", defaults.Trace.RingSize)
	v.SetDefault("trace.heartbeat", defaults.Trace.Heartbeat)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.json", defaults.Logging.JSON)

	v.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
}

// NewViper returns a viper instance with defaults, env overrides and the
// config file read. An explicit file must exist; otherwise kside.{toml,yaml}
// is looked up in the working directory and ConfigDir() and may be absent.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		return v, nil
	}

	v.SetConfigName("kside")
	v.AddConfigPath(".")
	v.AddConfigPath(ConfigDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return v, nil
}

// Load reads v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ConfigDir returns the user's kside config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kside")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kside"
	}
	return filepath.Join(home, ".config", "kside")
}
