package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	if cfg.Providers.Completion.BaseURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "providers.completion.baseUrl",
			Message: "a completion endpoint is required",
		})
	}

	if cfg.Retrieval.TopK < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "retrieval.topK",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Retrieval.TopK),
		})
	}

	if cfg.Agent.TurnTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.turnTimeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Agent.TurnTimeoutSeconds),
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
