package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Dataset defaults
	cfg.Dataset.CSVPath = ""
	cfg.Dataset.PayloadColumn = "_source.log"
	cfg.Dataset.TimestampColumn = "timestamp"
	cfg.Dataset.SeverityColumn = "severity"

	// Entity catalog defaults (empty path means built-in catalog)
	cfg.Entities.PatternsPath = ""

	// LLM defaults
	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = "http://localhost:11434"
	cfg.LLM.Model = "llama3.1:8b"
	cfg.LLM.APIKey = ""

	// Engine defaults
	cfg.Engine.MaxIterations = 10
	cfg.Engine.LLMTimeoutSeconds = 45
	cfg.Engine.QueryDeadlineSeconds = 60
	cfg.Engine.LLMRetries = 2
	cfg.Engine.MaxRowsInResult = 1000
	cfg.Engine.MaxEntitiesPerType = 500
	cfg.Engine.MaxSamplesInReturnLogs = 10

	// Server defaults
	cfg.Server.Port = 8080
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	cfg.Server.RateLimitPerMinute = 60

	// Database defaults
	cfg.Database.SQLitePath = "loglens.db"

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.AuditLogPath = "logs/audit.log"
	cfg.Logging.AppLogPath = "logs/app.log"

	return cfg
}
