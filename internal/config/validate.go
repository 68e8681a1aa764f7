package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for errors.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if cfg.Slack.SigningSecret == "" {
		errs = append(errs, "slack.signingSecret is required")
	}
	if cfg.Slack.BotToken == "" {
		errs = append(errs, "slack.botToken is required")
	}
	if !strings.HasPrefix(cfg.Slack.Command, "/") {
		errs = append(errs, fmt.Sprintf("slack.command must start with / (got %q)", cfg.Slack.Command))
	}

	if cfg.Triage.URL == "" {
		errs = append(errs, "triage.url is required")
	}
	if cfg.Triage.InternalKey == "" {
		errs = append(errs, "triage.internalKey is required")
	}

	if cfg.Storage.BaseURL == "" {
		errs = append(errs, "storage.baseURL is required")
	}
	if cfg.Storage.ServiceKey == "" {
		errs = append(errs, "storage.serviceKey is required")
	}

	if cfg.Database.SQLite.Path == "" {
		errs = append(errs, "database.sqlite.path is required")
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Port <= 0 || cfg.Proxy.Port > 65535 {
			errs = append(errs, "proxy.port must be between 1 and 65535")
		}
		if cfg.Proxy.InternalKey == "" {
			errs = append(errs, "proxy.internalKey is required when the proxy is enabled")
		}
		if cfg.OpenAI.APIKey == "" {
			errs = append(errs, "openai.apiKey is required when the proxy is enabled")
		}
	}

	if cfg.Worker.BatchSize <= 0 {
		errs = append(errs, "worker.batchSize must be positive")
	}
	if cfg.Worker.MaxAttempts <= 0 {
		errs = append(errs, "worker.maxAttempts must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be debug, info, warn, or error (got %q)", cfg.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
