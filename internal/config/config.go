// Package config provides application configuration management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all daemon configuration.
type Config struct {
	DataDir  string
	Admin    AdminConfig
	Security SecurityConfig
	Approval ApprovalConfig
	Provider ProviderConfig
	Relay    RelayConfig
	Nodes    []string
	Log      LogConfig
}

// AdminConfig holds the local admin HTTP server settings.
type AdminConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SecurityConfig holds key-derivation and lifecycle settings.
type SecurityConfig struct {
	KDFIterations int
	DevMode       bool
	ExtensionID   string
}

// ApprovalConfig bounds the human approval flow.
type ApprovalConfig struct {
	Timeout time.Duration
}

// ProviderConfig bounds page-side waits.
type ProviderConfig struct {
	Timeout time.Duration
}

// RelayConfig holds the builder relay settings.
type RelayConfig struct {
	URL string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables prefixed KEYCHAIN_.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("keychain")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		DataDir: v.GetString("data_dir"),
		Admin: AdminConfig{
			Addr:         v.GetString("admin.addr"),
			ReadTimeout:  v.GetDuration("admin.read_timeout"),
			WriteTimeout: v.GetDuration("admin.write_timeout"),
			IdleTimeout:  v.GetDuration("admin.idle_timeout"),
		},
		Security: SecurityConfig{
			KDFIterations: v.GetInt("kdf.iterations"),
			DevMode:       v.GetBool("dev_mode"),
			ExtensionID:   v.GetString("extension_id"),
		},
		Approval: ApprovalConfig{
			Timeout: v.GetDuration("approval.timeout"),
		},
		Provider: ProviderConfig{
			Timeout: v.GetDuration("provider.timeout"),
		},
		Relay: RelayConfig{
			URL: v.GetString("relay.url"),
		},
		Nodes: v.GetStringSlice("nodes"),
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("dev_mode", false)
	v.SetDefault("extension_id", "keychain-local")

	v.SetDefault("admin.addr", "127.0.0.1:7468")
	v.SetDefault("admin.read_timeout", 15*time.Second)
	v.SetDefault("admin.write_timeout", 15*time.Second)
	v.SetDefault("admin.idle_timeout", 60*time.Second)

	v.SetDefault("kdf.iterations", 100_000)

	// The approval window is deliberately long; a human is on the other end.
	v.SetDefault("approval.timeout", 5*time.Minute)
	v.SetDefault("provider.timeout", 60*time.Second)

	v.SetDefault("relay.url", "")
	v.SetDefault("nodes", []string{})

	v.SetDefault("log.level", "info")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".keychain"
	}
	return filepath.Join(home, ".keychain")
}

// Validate checks that all required configuration is present and sane.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.Admin.Addr == "" {
		return fmt.Errorf("admin address is required")
	}
	if !strings.HasPrefix(c.Admin.Addr, "127.0.0.1:") && !strings.HasPrefix(c.Admin.Addr, "localhost:") {
		return fmt.Errorf("admin address must bind loopback, got %q", c.Admin.Addr)
	}
	if c.Security.KDFIterations < 100_000 {
		return fmt.Errorf("kdf iterations must be at least 100000, got %d", c.Security.KDFIterations)
	}
	if c.Approval.Timeout <= 0 {
		return fmt.Errorf("approval timeout must be positive")
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	return nil
}
