package config

import "context"

// Package config provides configuration management for loglens.
//
// Responsibilities:
//   - Load configuration from YAML files and environment variables
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Support configuration reloading for tunable settings
//   - Establish reasonable defaults
//
// Configuration Sources (priority order, high to low):
//   1. Environment variables (LOGLENS_* prefix)
//   2. YAML config file (default: loglens.yaml)
//   3. Built-in defaults (lowest priority)
//
// Main Configuration Sections:
//
//   1. Dataset
//      - csv_path: CSV file holding the log rows
//      - payload_column: JSON-bearing column (default _source.log)
//      - timestamp_column / severity_column: metadata columns
//
//   2. Entities
//      - patterns_path: YAML entity catalog; empty uses the built-in catalog
//
//   3. LLM Provider
//      - provider: "ollama" | "openai-compat"
//      - base_url, model: endpoint settings
//      - API keys come from the environment only
//
//   4. Engine
//      - max_iterations, llm_timeout_seconds, query_deadline_seconds,
//        llm_retries and the result-size bounds
//
//   5. Server
//      - port: serve-mode listen port (default 8080)
//      - allowed_origins: origins permitted to open WebSocket connections
//
//   6. Database
//      - sqlite_path: run-history database location
//
//   7. Logging
//      - level, format, and the audit/app log paths

// Config struct contains all configuration fields
type Config struct {
	// Dataset configuration
	Dataset struct {
		CSVPath         string
		PayloadColumn   string
		TimestampColumn string
		SeverityColumn  string
	}

	// Entity catalog configuration
	Entities struct {
		PatternsPath string
	}

	// LLM provider configuration
	LLM struct {
		Provider string
		BaseURL  string
		Model    string
		APIKey   string
	}

	// Reasoning engine configuration
	Engine struct {
		MaxIterations          int
		LLMTimeoutSeconds      int
		QueryDeadlineSeconds   int
		LLMRetries             int
		MaxRowsInResult        int
		MaxEntitiesPerType     int
		MaxSamplesInReturnLogs int
	}

	// Serve-mode configuration
	Server struct {
		Port int
		// AllowedOrigins is a list of origins permitted to open WebSocket
		// connections. Use ["*"] to allow any origin (development only).
		AllowedOrigins []string
		// RateLimitPerMinute caps queries per client host. 0 disables
		// rate limiting.
		RateLimitPerMinute int
	}

	// Run-history database configuration
	Database struct {
		SQLitePath string
	}

	// Logging configuration
	Logging struct {
		Level        string
		Format       string
		AuditLogPath string
		AppLogPath   string
	}
}

// ConfigManager defines the interface for configuration access.
type ConfigManager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration changes and reloads (if supported).
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources.
	Reload(ctx context.Context) error
}

// NewConfigManager creates a new configuration manager.
func NewConfigManager(configPath string) (ConfigManager, error) {
	mgr := &viperConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

// NewConfigManagerWithDefaults creates a config manager with default config path.
func NewConfigManagerWithDefaults() (ConfigManager, error) {
	return NewConfigManager("loglens.yaml")
}
