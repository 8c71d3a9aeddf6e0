package main

// Package main is the loglens command.
//
// Responsibilities:
//   - Load and validate configuration from YAML and environment variables
//   - Ingest the CSV dataset and wire the tool library, prompt builder,
//     entity catalog, and LLM client into the query engine
//   - query: answer one question and exit
//   - repl: interactive loop over the same loaded dataset
//   - history: browse persisted runs
//   - serve: HTTP/WebSocket API with graceful shutdown

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/loglens/loglens-ai/internal/agent"
	"github.com/loglens/loglens-ai/internal/agent/prompt"
	"github.com/loglens/loglens-ai/internal/agent/tool"
	"github.com/loglens/loglens-ai/internal/audit"
	"github.com/loglens/loglens-ai/internal/config"
	"github.com/loglens/loglens-ai/internal/db"
	"github.com/loglens/loglens-ai/internal/entity"
	"github.com/loglens/loglens-ai/internal/llm"
	"github.com/loglens/loglens-ai/internal/logstore"
	"github.com/loglens/loglens-ai/internal/normalize"
	"github.com/loglens/loglens-ai/internal/server"

	// Register LLM providers.
	_ "github.com/loglens/loglens-ai/internal/llm/provider/ollama"
	_ "github.com/loglens/loglens-ai/internal/llm/provider/openaicompat"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "query":
		err = runQuery(args)
	case "repl":
		err = runREPL(args)
	case "history":
		err = runHistory(args)
	case "serve":
		err = runServe(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `loglens answers natural-language questions over CSV log exports.

Usage:
  loglens query [flags] "question"   answer one question and exit
  loglens repl [flags]               interactive question loop
  loglens history [flags]            browse past runs
  loglens serve [flags]              HTTP/WebSocket API

Common flags:
  -config path    configuration file (default loglens.yaml)
  -csv path       dataset file, overrides the configured path
`)
}

// components is everything a query needs, wired once per process.
type components struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *logstore.Store
	registry *tool.Registry
	builder  *prompt.Builder
	client   llm.Client
	auditor  audit.Logger
}

func (c *components) close() {
	if c.auditor != nil {
		_ = c.auditor.Close()
	}
	_ = c.logger.Sync()
}

// engineOptions maps the engine config section onto orchestrator limits.
func (c *components) engineOptions() agent.Options {
	return agent.Options{
		MaxIterations: c.cfg.Engine.MaxIterations,
		LLMTimeout:    time.Duration(c.cfg.Engine.LLMTimeoutSeconds) * time.Second,
		QueryDeadline: time.Duration(c.cfg.Engine.QueryDeadlineSeconds) * time.Second,
		LLMRetries:    c.cfg.Engine.LLMRetries,
	}
}

func (c *components) newEngine(obs agent.StepObserver) *agent.Orchestrator {
	eng := agent.New(c.engineOptions(), c.client, c.registry, c.builder, c.store, c.logger, c.auditor)
	if obs != nil {
		eng.SetObserver(obs)
	}
	return eng
}

// loadConfig reads and validates configuration. csvPath, when non-empty,
// overrides the configured dataset.
func loadConfig(configPath, csvPath string) (*config.Config, error) {
	mgr, err := config.NewConfigManager(configPath)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := mgr.Load(ctx); err != nil {
		return nil, err
	}
	cfg := mgr.Get(ctx)
	if csvPath != "" {
		cfg.Dataset.CSVPath = csvPath
	}
	if err := mgr.Validate(ctx); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Logging.Format == "text" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return zcfg.Build()
}

// build wires all collaborators from a validated configuration.
func build(cfg *config.Config, withAudit bool) (*components, error) {
	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	store, err := logstore.Open(cfg.Dataset.CSVPath, logstore.Options{
		PayloadColumn:   cfg.Dataset.PayloadColumn,
		TimestampColumn: cfg.Dataset.TimestampColumn,
		SeverityColumn:  cfg.Dataset.SeverityColumn,
	}, logger)
	if err != nil {
		return nil, err
	}

	scanColumns := []string{store.PayloadColumn()}
	var catalog *entity.Catalog
	if cfg.Entities.PatternsPath != "" {
		catalog, err = entity.LoadCatalog(cfg.Entities.PatternsPath, scanColumns)
		if err != nil {
			return nil, err
		}
	} else {
		catalog = entity.DefaultCatalog(scanColumns)
	}

	registry := tool.NewRegistry(tool.Deps{
		Store:      store,
		Catalog:    catalog,
		Normalizer: normalize.New(store),
		Bounds: tool.Bounds{
			MaxRows:            cfg.Engine.MaxRowsInResult,
			MaxEntitiesPerType: cfg.Engine.MaxEntitiesPerType,
			MaxSamples:         cfg.Engine.MaxSamplesInReturnLogs,
		},
		Logger: logger,
	})

	client, err := llm.NewClient(cfg.LLM.Provider, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.APIKey)
	if err != nil {
		return nil, err
	}

	var auditor audit.Logger
	if withAudit {
		auditor, err = audit.NewLogger(&audit.Config{
			AuditLogPath: cfg.Logging.AuditLogPath,
			AppLogPath:   cfg.Logging.AppLogPath,
			MaxSize:      100,
			MaxBackups:   10,
			MaxAge:       30,
			Compress:     true,
			LogLevel:     cfg.Logging.Level,
		})
		if err != nil {
			return nil, err
		}
	}

	return &components{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		builder:  prompt.NewBuilder(catalog, registry),
		client:   client,
		auditor:  auditor,
	}, nil
}

// openRuns opens the run-history database. A nil store disables history.
func openRuns(cfg *config.Config, logger *zap.Logger) db.Store {
	if cfg.Database.SQLitePath == "" {
		return nil
	}
	runs, err := db.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		logger.Warn("run history unavailable", zap.Error(err))
		return nil
	}
	return runs
}

func saveRun(runs db.Store, query string, res *agent.Result, started time.Time, logger *zap.Logger) {
	if runs == nil {
		return
	}
	rec := db.FromResult(query, res, started, time.Now())
	if err := runs.SaveRun(context.Background(), rec); err != nil {
		logger.Warn("failed to persist run", zap.String("query_id", res.QueryID), zap.Error(err))
	}
}

// ─── query ──────────────────────────────────────────────────────────────────

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", "loglens.yaml", "configuration file")
	csvPath := fs.String("csv", "", "dataset file, overrides the configured path")
	asJSON := fs.Bool("json", false, "print the full result envelope as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: loglens query [flags] \"question\"")
	}

	cfg, err := loadConfig(*configPath, *csvPath)
	if err != nil {
		return err
	}
	comp, err := build(cfg, false)
	if err != nil {
		return err
	}
	defer comp.close()

	runs := openRuns(cfg, comp.logger)
	if runs != nil {
		defer runs.Close()
	}

	started := time.Now()
	res := comp.newEngine(nil).Analyze(context.Background(), question)
	saveRun(runs, question, res, started, comp.logger)

	if *asJSON {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	printResult(res)
	if !res.Success {
		return fmt.Errorf("%s: %s", res.ErrorKind, res.Error)
	}
	return nil
}

func printResult(res *agent.Result) {
	fmt.Println(res.Answer)
	fmt.Printf("\n(confidence %.2f, %d iterations, %d logs analyzed)\n",
		res.Confidence, res.Iterations, res.LogsAnalyzed)
}

// ─── repl ───────────────────────────────────────────────────────────────────

func runREPL(args []string) error {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	configPath := fs.String("config", "loglens.yaml", "configuration file")
	csvPath := fs.String("csv", "", "dataset file, overrides the configured path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *csvPath)
	if err != nil {
		return err
	}
	comp, err := build(cfg, false)
	if err != nil {
		return err
	}
	defer comp.close()

	runs := openRuns(cfg, comp.logger)
	if runs != nil {
		defer runs.Close()
	}

	engine := comp.newEngine(nil)
	fmt.Printf("loaded %d rows from %s\n", comp.store.Load().Len(), cfg.Dataset.CSVPath)
	fmt.Println(`ask a question, or "exit" to quit`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("loglens> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		started := time.Now()
		res := engine.Analyze(context.Background(), question)
		saveRun(runs, question, res, started, comp.logger)

		if res.Success {
			printResult(res)
		} else {
			fmt.Printf("query failed (%s): %s\n", res.ErrorKind, res.Error)
			if res.Answer != "" {
				fmt.Println(res.Answer)
			}
		}
	}
}

// ─── history ────────────────────────────────────────────────────────────────

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "loglens.yaml", "configuration file")
	limit := fs.Int("limit", 20, "how many runs to list")
	id := fs.String("id", "", "print one run with its full trace as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mgr, err := config.NewConfigManager(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := mgr.Load(ctx); err != nil {
		return err
	}
	cfg := mgr.Get(ctx)
	if cfg.Database.SQLitePath == "" {
		return fmt.Errorf("run history is disabled: database.sqlite_path is empty")
	}

	runs, err := db.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		return err
	}
	defer runs.Close()

	if *id != "" {
		rec, err := runs.GetRun(ctx, *id)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("run not found: %s", *id)
		}
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	recs, err := runs.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}
	for _, rec := range recs {
		status := "ok"
		if !rec.Success {
			status = rec.ErrorKind
		}
		fmt.Printf("%s  %s  [%s, %d iterations]  %s\n",
			rec.StartedAt.Format(time.RFC3339), rec.ID, status, rec.Iterations, rec.Query)
	}
	return nil
}

// ─── serve ──────────────────────────────────────────────────────────────────

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "loglens.yaml", "configuration file")
	csvPath := fs.String("csv", "", "dataset file, overrides the configured path")
	port := fs.Int("port", 0, "listen port, overrides the configured port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *csvPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	comp, err := build(cfg, true)
	if err != nil {
		return err
	}
	defer comp.close()

	runs := openRuns(cfg, comp.logger)
	if runs != nil {
		defer runs.Close()
	}

	srv, err := server.NewServer(server.Deps{
		Config: cfg,
		Engine: comp.newEngine(nil),
		NewEngine: func(obs agent.StepObserver) server.QueryEngine {
			return comp.newEngine(obs)
		},
		Runs:    runs,
		Auditor: comp.auditor,
		Logger:  comp.logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		comp.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
