// Package config provides configuration types for superpm-mcp.
//
// Configuration is file-based (superpm.yaml) with environment variable
// overrides. Sessions are in-memory only; nothing survives a restart.
package config

import (
	"time"
)

// Config is the top-level configuration for superpm-mcp.
type Config struct {
	// Server configures the streamable HTTP transport.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Jira configures the issue tracker connection.
	// Optional: when empty, the Jira tools and prompt are not registered
	// and do not appear in tools/list.
	Jira JiraConfig `yaml:"jira" mapstructure:"jira"`

	// Workspace configures the root directory for the filesystem tools.
	Workspace WorkspaceConfig `yaml:"workspace" mapstructure:"workspace"`

	// Audit configures the tool-call audit trail.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// DevMode enables development features (debug logging).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:3000").
	// Defaults to "127.0.0.1:3000" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// AllowedOrigins is the exact-match allowlist for the Origin header.
	// Requests without an Origin header are always allowed (non-browser
	// clients); requests with an Origin not in this list get a 403.
	// No scheme/host/port normalization is applied.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// SessionTimeout is the idle duration before sessions are evicted
	// (e.g., "30m", "1h"). Defaults to "30m" if not specified.
	SessionTimeout string `yaml:"session_timeout" mapstructure:"session_timeout" validate:"omitempty"`

	// KeepaliveInterval is the cadence of SSE liveness markers on an
	// attached stream (e.g., "30s"). Defaults to "30s" if not specified.
	KeepaliveInterval string `yaml:"keepalive_interval" mapstructure:"keepalive_interval" validate:"omitempty"`
}

// JiraConfig configures the Jira REST connection.
// All three fields must be set together or left empty together.
type JiraConfig struct {
	// BaseURL is the Jira instance URL (e.g., "https://acme.atlassian.net").
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Username is the account email used for basic auth.
	Username string `yaml:"username" mapstructure:"username"`

	// APIToken is the Jira API token paired with Username.
	APIToken string `yaml:"api_token" mapstructure:"api_token"`
}

// Configured reports whether the Jira connection is fully specified.
func (j JiraConfig) Configured() bool {
	return j.BaseURL != "" && j.Username != "" && j.APIToken != ""
}

// WorkspaceConfig configures the filesystem tool surface.
type WorkspaceConfig struct {
	// Root is the directory the filesystem tools operate under.
	// Defaults to "." (the server's working directory).
	Root string `yaml:"root" mapstructure:"root"`
}

// AuditConfig configures the JSON-lines audit trail of tool calls.
type AuditConfig struct {
	// Dir is the directory audit files are written to.
	// Empty disables the audit trail.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// RetentionDays is how long audit files are kept. Default: 7.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`
}

// SetDefaults fills in default values for unset fields.
// Call before Validate.
func (c *Config) SetDefaults() {
	// Bind to localhost only unless the user opts into network exposure.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:3000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.SessionTimeout == "" {
		c.Server.SessionTimeout = "30m"
	}
	if c.Server.KeepaliveInterval == "" {
		c.Server.KeepaliveInterval = "30s"
	}
	if c.Workspace.Root == "" {
		c.Workspace.Root = "."
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 7
	}
}

// ParsedSessionTimeout returns the session timeout as a duration.
// Assumes Validate has run; falls back to 30 minutes on a parse failure.
func (c *Config) ParsedSessionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.SessionTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// ParsedKeepaliveInterval returns the keepalive cadence as a duration.
// Assumes Validate has run; falls back to 30 seconds on a parse failure.
func (c *Config) ParsedKeepaliveInterval() time.Duration {
	d, err := time.ParseDuration(c.Server.KeepaliveInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
