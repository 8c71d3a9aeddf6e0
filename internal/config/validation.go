package config

import (
	"fmt"
	"net/url"
	"os"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	// Validate dataset configuration
	if c.Dataset.CSVPath != "" {
		if _, err := os.Stat(c.Dataset.CSVPath); os.IsNotExist(err) {
			errs = append(errs, &ValidationError{
				Field:   "dataset.csv_path",
				Message: fmt.Sprintf("dataset file does not exist: %s", c.Dataset.CSVPath),
			})
		}
	}
	if c.Dataset.PayloadColumn == "" {
		errs = append(errs, &ValidationError{
			Field:   "dataset.payload_column",
			Message: "payload_column must not be empty",
		})
	}

	// Validate entity catalog configuration
	if c.Entities.PatternsPath != "" {
		if _, err := os.Stat(c.Entities.PatternsPath); os.IsNotExist(err) {
			errs = append(errs, &ValidationError{
				Field:   "entities.patterns_path",
				Message: fmt.Sprintf("entity pattern file does not exist: %s", c.Entities.PatternsPath),
			})
		}
	}

	// Validate LLM configuration
	validProviders := map[string]bool{
		"ollama":        true,
		"openai-compat": true,
	}
	if !validProviders[c.LLM.Provider] {
		errs = append(errs, &ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: ollama, openai-compat", c.LLM.Provider),
		})
	}
	if c.LLM.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.LLM.BaseURL); err != nil {
			errs = append(errs, &ValidationError{
				Field:   "llm.base_url",
				Message: fmt.Sprintf("invalid base URL: %v", err),
			})
		}
	}
	if c.LLM.Model == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.model",
			Message: "model must not be empty",
		})
	}

	// Validate engine configuration
	if c.Engine.MaxIterations < 1 {
		errs = append(errs, &ValidationError{
			Field:   "engine.max_iterations",
			Message: fmt.Sprintf("max_iterations must be at least 1, got %d", c.Engine.MaxIterations),
		})
	}
	if c.Engine.LLMTimeoutSeconds < 1 {
		errs = append(errs, &ValidationError{
			Field:   "engine.llm_timeout_seconds",
			Message: fmt.Sprintf("llm_timeout_seconds must be at least 1, got %d", c.Engine.LLMTimeoutSeconds),
		})
	}
	if c.Engine.QueryDeadlineSeconds < c.Engine.LLMTimeoutSeconds {
		errs = append(errs, &ValidationError{
			Field:   "engine.query_deadline_seconds",
			Message: "query_deadline_seconds must be at least llm_timeout_seconds",
		})
	}
	if c.Engine.LLMRetries < 0 {
		errs = append(errs, &ValidationError{
			Field:   "engine.llm_retries",
			Message: fmt.Sprintf("llm_retries must not be negative, got %d", c.Engine.LLMRetries),
		})
	}
	if c.Engine.MaxRowsInResult < 1 {
		errs = append(errs, &ValidationError{
			Field:   "engine.max_rows_in_result",
			Message: fmt.Sprintf("max_rows_in_result must be at least 1, got %d", c.Engine.MaxRowsInResult),
		})
	}
	if c.Engine.MaxEntitiesPerType < 1 {
		errs = append(errs, &ValidationError{
			Field:   "engine.max_entities_per_type",
			Message: fmt.Sprintf("max_entities_per_type must be at least 1, got %d", c.Engine.MaxEntitiesPerType),
		})
	}
	if c.Engine.MaxSamplesInReturnLogs < 1 {
		errs = append(errs, &ValidationError{
			Field:   "engine.max_samples_in_return_logs",
			Message: fmt.Sprintf("max_samples_in_return_logs must be at least 1, got %d", c.Engine.MaxSamplesInReturnLogs),
		})
	}

	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}

	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.rate_limit_per_minute",
			Message: fmt.Sprintf("rate_limit_per_minute must not be negative, got %d", c.Server.RateLimitPerMinute),
		})
	}

	// Validate logging configuration
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid format '%s', must be json or text", c.Logging.Format),
		})
	}

	return errs
}
