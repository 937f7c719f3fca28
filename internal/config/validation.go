package config

import (
	"fmt"
	"strings"
)

// Validate checks that every setting the pipeline cannot run without is
// present. All missing keys are reported together so an operator fixes the
// environment in one pass.
func (c *Config) Validate() error {
	var missing []string

	if c.Forge.Token == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if c.Forge.Username == "" {
		missing = append(missing, "GITHUB_USERNAME")
	}
	if c.Server.Secret == "" {
		missing = append(missing, "SECRET")
	}
	if c.Generator.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Publish.UpsertMaxAttempts < 1 {
		return fmt.Errorf("upsert_max_attempts must be >= 1")
	}
	if c.Publish.PagesMaxAttempts < 1 {
		return fmt.Errorf("pages_max_attempts must be >= 1")
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("notify max_attempts must be >= 1")
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return fmt.Errorf("events enabled but nats_url not set")
	}

	return nil
}

// Redacted returns a copy of a secret suitable for logging: the last four
// characters prefixed by asterisks, or a fixed mask for short values.
func Redacted(secret string) string {
	if len(secret) > 4 {
		return "**********" + secret[len(secret)-4:]
	}
	return "****"
}
