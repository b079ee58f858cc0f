// Package config loads syscfg settings from the config file, environment,
// and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Host overrides the hostname used for manifest and registry
	// identity. Defaults to os.Hostname.
	Host string `mapstructure:"host" validate:"required,hostname_rfc1123"`

	// ManifestDir holds the per-host manifest documents.
	ManifestDir string `mapstructure:"manifest_dir" validate:"required"`

	// RegistryDir holds the shared and local registry partitions.
	RegistryDir string `mapstructure:"registry_dir" validate:"required"`

	// HistoryPath is the SQLite run log location.
	HistoryPath string `mapstructure:"history_path" validate:"required"`

	// Backend forces a package backend instead of probing for one.
	Backend string `mapstructure:"backend" validate:"omitempty,oneof=apt dnf pacman brew"`

	// PullPolicy selects how pull folds system state into the manifest.
	PullPolicy string `mapstructure:"pull_policy" validate:"omitempty,oneof=replace merge"`

	Scan ScanConfig `mapstructure:"scan"`
	Log  LogConfig  `mapstructure:"log"`
}

// ScanConfig controls environment discovery.
type ScanConfig struct {
	// Roots are the directories the scanner walks.
	Roots []string `mapstructure:"roots" validate:"required,min=1"`

	// MaxDepth bounds the walk below each root.
	MaxDepth int `mapstructure:"max_depth" validate:"omitempty,min=1,max=16"`
}

// LogConfig controls the root logger.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// Load resolves configuration with precedence: explicit file path, then
// ~/.config/syscfg/config.yaml, then SYSCFG_* environment variables, then
// defaults. A missing config file is not an error unless a path was given.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := setDefaults(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "syscfg"))
		}
	}

	v.SetEnvPrefix("SYSCFG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) error {
	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("resolve hostname: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home dir: %w", err)
	}
	dataDir := filepath.Join(home, ".local", "share", "syscfg")

	v.SetDefault("host", hostname)
	v.SetDefault("manifest_dir", filepath.Join(dataDir, "manifests"))
	v.SetDefault("registry_dir", filepath.Join(dataDir, "registry"))
	v.SetDefault("history_path", filepath.Join(dataDir, "history.db"))
	v.SetDefault("pull_policy", "replace")
	v.SetDefault("scan.roots", []string{
		filepath.Join(home, "projects"),
		filepath.Join(home, "src"),
		filepath.Join(home, "work"),
	})
	v.SetDefault("scan.max_depth", 5)
	v.SetDefault("log.level", "info")
	return nil
}
