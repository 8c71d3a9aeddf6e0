package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Dataset defaults
	assert.Equal(t, "_source.log", cfg.Dataset.PayloadColumn)
	assert.Equal(t, "timestamp", cfg.Dataset.TimestampColumn)
	assert.Equal(t, "severity", cfg.Dataset.SeverityColumn)

	// LLM defaults
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)

	// Engine defaults
	assert.Equal(t, 10, cfg.Engine.MaxIterations)
	assert.Equal(t, 45, cfg.Engine.LLMTimeoutSeconds)
	assert.Equal(t, 60, cfg.Engine.QueryDeadlineSeconds)
	assert.Equal(t, 2, cfg.Engine.LLMRetries)
	assert.Equal(t, 1000, cfg.Engine.MaxRowsInResult)
	assert.Equal(t, 500, cfg.Engine.MaxEntitiesPerType)
	assert.Equal(t, 10, cfg.Engine.MaxSamplesInReturnLogs)

	// Server defaults
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		modifyFn  func(*Config)
		wantError bool
		errorMsg  string
	}{
		{
			name:      "valid default config",
			modifyFn:  func(cfg *Config) {},
			wantError: false,
		},
		{
			name: "invalid port - too low",
			modifyFn: func(cfg *Config) {
				cfg.Server.Port = 0
			},
			wantError: true,
			errorMsg:  "port must be between 1 and 65535",
		},
		{
			name: "invalid port - too high",
			modifyFn: func(cfg *Config) {
				cfg.Server.Port = 70000
			},
			wantError: true,
			errorMsg:  "port must be between 1 and 65535",
		},
		{
			name: "invalid provider",
			modifyFn: func(cfg *Config) {
				cfg.LLM.Provider = "gemini"
			},
			wantError: true,
			errorMsg:  "invalid provider",
		},
		{
			name: "missing model",
			modifyFn: func(cfg *Config) {
				cfg.LLM.Model = ""
			},
			wantError: true,
			errorMsg:  "model must not be empty",
		},
		{
			name: "zero iterations",
			modifyFn: func(cfg *Config) {
				cfg.Engine.MaxIterations = 0
			},
			wantError: true,
			errorMsg:  "max_iterations must be at least 1",
		},
		{
			name: "deadline shorter than per-call timeout",
			modifyFn: func(cfg *Config) {
				cfg.Engine.QueryDeadlineSeconds = 10
			},
			wantError: true,
			errorMsg:  "query_deadline_seconds",
		},
		{
			name: "missing dataset file",
			modifyFn: func(cfg *Config) {
				cfg.Dataset.CSVPath = "/nonexistent/logs.csv"
			},
			wantError: true,
			errorMsg:  "dataset file does not exist",
		},
		{
			name: "empty payload column",
			modifyFn: func(cfg *Config) {
				cfg.Dataset.PayloadColumn = ""
			},
			wantError: true,
			errorMsg:  "payload_column must not be empty",
		},
		{
			name: "invalid log level",
			modifyFn: func(cfg *Config) {
				cfg.Logging.Level = "verbose"
			},
			wantError: true,
			errorMsg:  "invalid level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(cfg)

			errs := cfg.Validate()
			if tt.wantError {
				require.NotEmpty(t, errs)
				found := false
				for _, err := range errs {
					if strings.Contains(err.Error(), tt.errorMsg) {
						found = true
						break
					}
				}
				assert.True(t, found, "expected an error containing %q, got %v", tt.errorMsg, errs)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "loglens.yaml")
	yaml := `dataset:
  payload_column: message
llm:
  provider: openai-compat
  model: gpt-4o-mini
engine:
  max_iterations: 5
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))

	cfg := mgr.Get(context.Background())
	assert.Equal(t, "message", cfg.Dataset.PayloadColumn)
	assert.Equal(t, "openai-compat", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Engine.MaxIterations)
	assert.Equal(t, 9090, cfg.Server.Port)

	// Unset keys keep their defaults.
	assert.Equal(t, "timestamp", cfg.Dataset.TimestampColumn)
	assert.Equal(t, 60, cfg.Engine.QueryDeadlineSeconds)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	mgr, err := NewConfigManager(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))

	cfg := mgr.Get(context.Background())
	assert.Equal(t, 10, cfg.Engine.MaxIterations)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOGLENS_LLM_API_KEY", "sk-secret")
	t.Setenv("LOGLENS_CSV_PATH", "/data/logs.csv")

	mgr, err := NewConfigManager(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))

	cfg := mgr.Get(context.Background())
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey)
	assert.Equal(t, "/data/logs.csv", cfg.Dataset.CSVPath)
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "loglens.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("engine:\n  max_iterations: 4\n"), 0o644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)
	require.NoError(t, mgr.Load(context.Background()))
	assert.Equal(t, 4, mgr.Get(context.Background()).Engine.MaxIterations)

	require.NoError(t, os.WriteFile(configPath, []byte("engine:\n  max_iterations: 7\n"), 0o644))
	require.NoError(t, mgr.Reload(context.Background()))
	assert.Equal(t, 7, mgr.Get(context.Background()).Engine.MaxIterations)
}
