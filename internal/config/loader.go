// Package config provides configuration loading for superpm-mcp.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for superpm.yaml/.yml in
// standard locations. The search requires an explicit YAML extension so the
// binary itself (same base name, no extension) is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location.
		// Set name/type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("superpm")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: SUPERPM_SERVER_HTTP_ADDR etc.
	viper.SetEnvPrefix("SUPERPM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for a superpm config file with
// an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".superpm"),
		"/etc/superpm",
	}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "superpm"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested config keys for environment variable
// overrides. Example: SUPERPM_JIRA_API_TOKEN overrides jira.api_token.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("server.http_addr")
	_ = viper.BindEnv("server.log_level")
	_ = viper.BindEnv("server.session_timeout")
	_ = viper.BindEnv("server.keepalive_interval")
	// Note: server.allowed_origins is an array; use the config file for it.

	_ = viper.BindEnv("jira.base_url")
	_ = viper.BindEnv("jira.username")
	_ = viper.BindEnv("jira.api_token")

	_ = viper.BindEnv("workspace.root")

	_ = viper.BindEnv("audit.dir")
	_ = viper.BindEnv("audit.retention_days")

	_ = viper.BindEnv("dev_mode")
}

// Load reads the configuration file, applies environment overrides and
// defaults, and validates the result.
func Load() (*Config, error) {
	cfg, err := LoadRaw()
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRaw reads the configuration without defaults or validation, so CLI
// flags can override fields first.
func LoadRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file: run on env vars and defaults alone.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path of the config file Viper loaded, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
