package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// RunnerConfig holds settings for the external task runner integration.
type RunnerConfig struct {
	// BaseURL is the root URL of the task runner API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TaskName is the runner task invoked for reminder deliveries.
	TaskName string `mapstructure:"task_name" yaml:"task_name"`
}

// AuthConfig holds settings for validating caller identity.
type AuthConfig struct {
	// JWTSecret signs and verifies bearer tokens. Prefer the keyring entry;
	// this field is a fallback for development setups.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DBPath     string       `mapstructure:"db_path" yaml:"db_path"`
	ListenAddr string       `mapstructure:"listen_addr" yaml:"listen_addr"`
	Runner     RunnerConfig `mapstructure:"runner" yaml:"runner"`
	Auth       AuthConfig   `mapstructure:"auth" yaml:"auth"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/plannerd/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "plannerd", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dbPath := "plannerd.db"
	if home, err := os.UserHomeDir(); err == nil {
		dbPath = filepath.Join(home, ".local", "share", "plannerd", "plannerd.db")
	}
	return &AppConfig{
		DBPath:     dbPath,
		ListenAddr: "127.0.0.1:8385",
		Runner: RunnerConfig{
			TaskName: "send-reminder",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()
	v.SetDefault("db_path", defaults.DBPath)
	v.SetDefault("listen_addr", defaults.ListenAddr)
	v.SetDefault("runner.task_name", defaults.Runner.TaskName)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaults
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("db_path", cfg.DBPath)
	v.Set("listen_addr", cfg.ListenAddr)
	v.Set("runner", cfg.Runner)
	v.Set("auth", cfg.Auth)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
