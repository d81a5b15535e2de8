package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for structural and cross-field errors.
// SetDefaults should run first so optional fields are filled in.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := validateDuration("server.session_timeout", c.Server.SessionTimeout); err != nil {
		return err
	}
	if err := validateDuration("server.keepalive_interval", c.Server.KeepaliveInterval); err != nil {
		return err
	}

	// Jira credentials are all-or-nothing: a partially specified connection
	// is a misconfiguration, not a disabled feature.
	if err := c.validateJiraCompleteness(); err != nil {
		return err
	}

	return nil
}

// validateDuration checks that value parses as a positive duration.
func validateDuration(key, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("config error: %s: invalid duration %q", key, value)
	}
	if d <= 0 {
		return fmt.Errorf("config error: %s: duration must be positive, got %q", key, value)
	}
	return nil
}

// validateJiraCompleteness enforces that jira.base_url, jira.username and
// jira.api_token are set together or not at all.
func (c *Config) validateJiraCompleteness() error {
	j := c.Jira
	if j.BaseURL == "" && j.Username == "" && j.APIToken == "" {
		return nil
	}
	if j.Configured() {
		return nil
	}
	var missing []string
	if j.BaseURL == "" {
		missing = append(missing, "jira.base_url")
	}
	if j.Username == "" {
		missing = append(missing, "jira.username")
	}
	if j.APIToken == "" {
		missing = append(missing, "jira.api_token")
	}
	return fmt.Errorf("config error: incomplete jira configuration, missing: %s", strings.Join(missing, ", "))
}

// formatValidationErrors converts validator errors into readable messages.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var msgs []string
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q validation (value: %v)",
			fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("config validation failed:\n  %s", strings.Join(msgs, "\n  "))
}
