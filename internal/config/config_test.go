package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func TestSetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "127.0.0.1:3000" {
		t.Errorf("HTTPAddr = %q, want 127.0.0.1:3000", cfg.Server.HTTPAddr)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Server.SessionTimeout != "30m" {
		t.Errorf("SessionTimeout = %q, want 30m", cfg.Server.SessionTimeout)
	}
	if cfg.Server.KeepaliveInterval != "30s" {
		t.Errorf("KeepaliveInterval = %q, want 30s", cfg.Server.KeepaliveInterval)
	}
	if cfg.Workspace.Root != "." {
		t.Errorf("Workspace.Root = %q, want .", cfg.Workspace.Root)
	}
	if cfg.Audit.RetentionDays != 7 {
		t.Errorf("Audit.RetentionDays = %d, want 7", cfg.Audit.RetentionDays)
	}
}

func TestSetDefaultsDoesNotOverride(t *testing.T) {
	cfg := &Config{}
	cfg.Server.HTTPAddr = "0.0.0.0:9000"
	cfg.Server.SessionTimeout = "1h"
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("HTTPAddr = %q, want explicit value preserved", cfg.Server.HTTPAddr)
	}
	if cfg.Server.SessionTimeout != "1h" {
		t.Errorf("SessionTimeout = %q, want 1h", cfg.Server.SessionTimeout)
	}
}

func TestValidateDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestValidateBadAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Server.HTTPAddr = "not an address"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad http_addr")
	}
}

func TestValidateBadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Server.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for bad log_level")
	}
}

func TestValidateBadDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Server.SessionTimeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unparseable session_timeout")
	}

	cfg = validConfig()
	cfg.Server.KeepaliveInterval = "-5s"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative keepalive_interval")
	}
}

func TestValidateJiraCompleteness(t *testing.T) {
	cfg := validConfig()
	cfg.Jira.BaseURL = "https://acme.atlassian.net"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for partial jira config")
	}
	if !strings.Contains(err.Error(), "jira.username") || !strings.Contains(err.Error(), "jira.api_token") {
		t.Errorf("error should name missing fields, got: %v", err)
	}

	cfg.Jira.Username = "bot@acme.example"
	cfg.Jira.APIToken = "token"
	if err := cfg.Validate(); err != nil {
		t.Errorf("complete jira config should validate, got: %v", err)
	}
	if !cfg.Jira.Configured() {
		t.Error("Configured() should report true for a complete jira config")
	}
}

func TestParsedDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Server.SessionTimeout = "45m"
	cfg.Server.KeepaliveInterval = "10s"

	if got := cfg.ParsedSessionTimeout(); got != 45*time.Minute {
		t.Errorf("ParsedSessionTimeout = %v, want 45m", got)
	}
	if got := cfg.ParsedKeepaliveInterval(); got != 10*time.Second {
		t.Errorf("ParsedKeepaliveInterval = %v, want 10s", got)
	}

	// Fallbacks when fields were never validated.
	cfg.Server.SessionTimeout = "garbage"
	cfg.Server.KeepaliveInterval = ""
	if got := cfg.ParsedSessionTimeout(); got != 30*time.Minute {
		t.Errorf("fallback ParsedSessionTimeout = %v, want 30m", got)
	}
	if got := cfg.ParsedKeepaliveInterval(); got != 30*time.Second {
		t.Errorf("fallback ParsedKeepaliveInterval = %v, want 30s", got)
	}
}
