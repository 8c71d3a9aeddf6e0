package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperConfigManager implements ConfigManager using Viper.
type viperConfigManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load loads configuration from all sources.
func (m *viperConfigManager) Load(ctx context.Context) error {
	m.viper = viper.New()

	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("LOGLENS")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	// The config file is optional; defaults plus env vars are enough.
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no file, use defaults
		} else if os.IsNotExist(err) {
			// no file, use defaults
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.applyEnvOverrides()

	return nil
}

// Get returns the current configuration.
func (m *viperConfigManager) Get(ctx context.Context) *Config {
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperConfigManager) Validate(ctx context.Context) error {
	errs := m.config.Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration changes and reloads.
func (m *viperConfigManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.unmarshalConfig(); err != nil {
			return
		}
		select {
		case m.watchChan <- *m.config:
		default:
			// Channel full, skip this update
		}
	})

	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperConfigManager) Reload(ctx context.Context) error {
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.applyEnvOverrides()

	return nil
}

// setDefaults sets default values in viper.
func (m *viperConfigManager) setDefaults() {
	defaults := DefaultConfig()

	// Dataset defaults
	m.viper.SetDefault("dataset.csv_path", defaults.Dataset.CSVPath)
	m.viper.SetDefault("dataset.payload_column", defaults.Dataset.PayloadColumn)
	m.viper.SetDefault("dataset.timestamp_column", defaults.Dataset.TimestampColumn)
	m.viper.SetDefault("dataset.severity_column", defaults.Dataset.SeverityColumn)

	// Entity catalog defaults
	m.viper.SetDefault("entities.patterns_path", defaults.Entities.PatternsPath)

	// LLM defaults
	m.viper.SetDefault("llm.provider", defaults.LLM.Provider)
	m.viper.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	m.viper.SetDefault("llm.model", defaults.LLM.Model)

	// Engine defaults
	m.viper.SetDefault("engine.max_iterations", defaults.Engine.MaxIterations)
	m.viper.SetDefault("engine.llm_timeout_seconds", defaults.Engine.LLMTimeoutSeconds)
	m.viper.SetDefault("engine.query_deadline_seconds", defaults.Engine.QueryDeadlineSeconds)
	m.viper.SetDefault("engine.llm_retries", defaults.Engine.LLMRetries)
	m.viper.SetDefault("engine.max_rows_in_result", defaults.Engine.MaxRowsInResult)
	m.viper.SetDefault("engine.max_entities_per_type", defaults.Engine.MaxEntitiesPerType)
	m.viper.SetDefault("engine.max_samples_in_return_logs", defaults.Engine.MaxSamplesInReturnLogs)

	// Server defaults
	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	m.viper.SetDefault("server.rate_limit_per_minute", defaults.Server.RateLimitPerMinute)

	// Database defaults
	m.viper.SetDefault("database.sqlite_path", defaults.Database.SQLitePath)

	// Logging defaults
	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.audit_log_path", defaults.Logging.AuditLogPath)
	m.viper.SetDefault("logging.app_log_path", defaults.Logging.AppLogPath)
}

// unmarshalConfig unmarshals viper config into Config struct.
func (m *viperConfigManager) unmarshalConfig() error {
	cfg := &Config{}

	// Dataset
	cfg.Dataset.CSVPath = m.viper.GetString("dataset.csv_path")
	cfg.Dataset.PayloadColumn = m.viper.GetString("dataset.payload_column")
	cfg.Dataset.TimestampColumn = m.viper.GetString("dataset.timestamp_column")
	cfg.Dataset.SeverityColumn = m.viper.GetString("dataset.severity_column")

	// Entity catalog
	cfg.Entities.PatternsPath = m.viper.GetString("entities.patterns_path")

	// LLM
	cfg.LLM.Provider = m.viper.GetString("llm.provider")
	cfg.LLM.BaseURL = m.viper.GetString("llm.base_url")
	cfg.LLM.Model = m.viper.GetString("llm.model")

	// Engine
	cfg.Engine.MaxIterations = m.viper.GetInt("engine.max_iterations")
	cfg.Engine.LLMTimeoutSeconds = m.viper.GetInt("engine.llm_timeout_seconds")
	cfg.Engine.QueryDeadlineSeconds = m.viper.GetInt("engine.query_deadline_seconds")
	cfg.Engine.LLMRetries = m.viper.GetInt("engine.llm_retries")
	cfg.Engine.MaxRowsInResult = m.viper.GetInt("engine.max_rows_in_result")
	cfg.Engine.MaxEntitiesPerType = m.viper.GetInt("engine.max_entities_per_type")
	cfg.Engine.MaxSamplesInReturnLogs = m.viper.GetInt("engine.max_samples_in_return_logs")

	// Server
	cfg.Server.Port = m.viper.GetInt("server.port")
	cfg.Server.AllowedOrigins = m.viper.GetStringSlice("server.allowed_origins")
	cfg.Server.RateLimitPerMinute = m.viper.GetInt("server.rate_limit_per_minute")

	// Database
	cfg.Database.SQLitePath = m.viper.GetString("database.sqlite_path")

	// Logging
	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.AuditLogPath = m.viper.GetString("logging.audit_log_path")
	cfg.Logging.AppLogPath = m.viper.GetString("logging.app_log_path")

	m.config = cfg
	return nil
}

// applyEnvOverrides applies environment variable overrides for sensitive data.
func (m *viperConfigManager) applyEnvOverrides() {
	// API keys come from the environment only, never the config file.
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		m.config.LLM.APIKey = apiKey
	}
	if apiKey := os.Getenv("LOGLENS_LLM_API_KEY"); apiKey != "" {
		m.config.LLM.APIKey = apiKey
	}

	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && m.config.LLM.Provider == "ollama" {
		m.config.LLM.BaseURL = baseURL
	}

	if csvPath := os.Getenv("LOGLENS_CSV_PATH"); csvPath != "" {
		m.config.Dataset.CSVPath = csvPath
	}
}
