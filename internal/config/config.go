// Package config loads hangwatch settings from a config file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. HANGWATCH_THRESHOLD.
	EnvPrefix = "HANGWATCH"

	defaultConfigFileName = "config.yaml"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

// Lifecycle sources.
const (
	LifecycleManual = "manual"
	LifecycleSignal = "signal"
	LifecycleFile   = "file"
)

// Config holds the resolved settings.
type Config struct {
	Threshold     time.Duration `mapstructure:"threshold"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	Store         string        `mapstructure:"store"`
	DBPath        string        `mapstructure:"db_path"`
	FileStoreDir  string        `mapstructure:"file_store_dir"`
	Lifecycle     string        `mapstructure:"lifecycle"`
	StateFile     string        `mapstructure:"state_file"`
	LogLevel      string        `mapstructure:"log_level"`
	ReportInDebug bool          `mapstructure:"report_in_debug"`

	// Path is the config file that was read, empty if none.
	Path string `mapstructure:"-"`
}

// FlagNames maps config keys to the command-line flags that override them.
var FlagNames = map[string]string{
	"threshold":       "threshold",
	"probe_interval":  "probe-interval",
	"store":           "store",
	"db_path":         "db",
	"file_store_dir":  "store-dir",
	"lifecycle":       "lifecycle",
	"state_file":      "state-file",
	"log_level":       "log-level",
	"report_in_debug": "report-in-debug",
}

// Dir returns the hangwatch config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/hangwatch if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "hangwatch"), nil
}

// DataDir returns the directory holding the database and file store.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hangwatch"), nil
}

func setDefaults(v *viper.Viper) error {
	dataDir, err := DataDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	v.SetDefault("threshold", 2*time.Second)
	v.SetDefault("probe_interval", time.Duration(0))
	v.SetDefault("store", StoreSQLite)
	v.SetDefault("db_path", filepath.Join(dataDir, "hangwatch.db"))
	v.SetDefault("file_store_dir", filepath.Join(dataDir, "kv"))
	v.SetDefault("lifecycle", LifecycleSignal)
	v.SetDefault("state_file", filepath.Join(dataDir, "state"))
	v.SetDefault("log_level", "info")
	v.SetDefault("report_in_debug", false)
	return nil
}

// Load resolves the configuration. path names an explicit config file,
// which must exist; when empty, config.yaml in Dir is read if present.
// flags, when non-nil, override file and environment values for every
// flag the user set.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(os.ExpandEnv(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if dir, err := Dir(); err == nil {
		v.SetConfigFile(filepath.Join(dir, defaultConfigFileName))
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for key, name := range FlagNames {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Path = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.Path); err != nil {
		cfg.Path = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %s", c.Threshold)
	}
	if c.ProbeInterval < 0 {
		return fmt.Errorf("probe interval must not be negative, got %s", c.ProbeInterval)
	}
	switch c.Store {
	case StoreSQLite, StoreFile:
	default:
		return fmt.Errorf("unknown store %q (valid: %s, %s)", c.Store, StoreSQLite, StoreFile)
	}
	switch c.Lifecycle {
	case LifecycleManual, LifecycleSignal, LifecycleFile:
	default:
		return fmt.Errorf("unknown lifecycle source %q (valid: %s, %s, %s)",
			c.Lifecycle, LifecycleManual, LifecycleSignal, LifecycleFile)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel converts a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
