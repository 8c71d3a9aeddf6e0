package agent

// Package agent drives the reasoning loop: prompt the model, parse its
// decision, validate and execute the chosen tool, feed the observation
// back, and stop on an answer or a safety limit.
//
// Responsibilities:
//   - Own all per-query safety limits (iterations, deadlines, retries)
//   - Auto-inject cached row sets into rowset parameters
//   - Break loops when the model repeats a failing call
//   - Record every iteration as exactly one Step, even on failure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loglens/loglens-ai/internal/agent/decision"
	"github.com/loglens/loglens-ai/internal/agent/prompt"
	"github.com/loglens/loglens-ai/internal/agent/tool"
	"github.com/loglens/loglens-ai/internal/audit"
	"github.com/loglens/loglens-ai/internal/llm"
	"github.com/loglens/loglens-ai/internal/logstore"
	"github.com/loglens/loglens-ai/internal/metrics"
)

const (
	// maxParseFailStreak terminates the query after this many consecutive
	// unparseable model replies.
	maxParseFailStreak = 3

	// maxFailuresPerCall is how often one (tool, parameters) combination
	// may fail before the loop breaker skips it.
	maxFailuresPerCall = 2

	// retryBackoff is the initial wait between LLM retry attempts; it
	// doubles per attempt.
	retryBackoff = 500 * time.Millisecond
)

// Options are the orchestrator's safety limits.
type Options struct {
	MaxIterations int
	LLMTimeout    time.Duration
	QueryDeadline time.Duration
	LLMRetries    int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 10,
		LLMTimeout:    45 * time.Second,
		QueryDeadline: 60 * time.Second,
		LLMRetries:    2,
	}
}

// StepObserver is notified after every recorded step. Used by the serve
// mode to stream progress to subscribers; must not block.
type StepObserver func(queryID string, step *Step)

// Orchestrator runs queries against one loaded dataset. All fields are
// read-only after construction, so one Orchestrator serves concurrent
// queries.
type Orchestrator struct {
	opts     Options
	client   llm.Client
	registry *tool.Registry
	builder  *prompt.Builder
	store    *logstore.Store
	logger   *zap.Logger
	auditor  audit.Logger
	observer StepObserver
}

// New creates an Orchestrator. auditor and observer may be nil.
func New(opts Options, client llm.Client, registry *tool.Registry, builder *prompt.Builder, store *logstore.Store, logger *zap.Logger, auditor audit.Logger) *Orchestrator {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = DefaultOptions().LLMTimeout
	}
	if opts.QueryDeadline <= 0 {
		opts.QueryDeadline = DefaultOptions().QueryDeadline
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		opts:     opts,
		client:   client,
		registry: registry,
		builder:  builder,
		store:    store,
		logger:   logger,
		auditor:  auditor,
	}
}

// SetObserver installs the step observer. Call before serving queries.
func (o *Orchestrator) SetObserver(obs StepObserver) { o.observer = obs }

// Analyze runs one query to completion and returns the result envelope.
func (o *Orchestrator) Analyze(ctx context.Context, query string) *Result {
	queryID := uuid.NewString()
	start := time.Now()

	ctx, cancel := context.WithTimeout(audit.WithCorrelationID(ctx, queryID), o.opts.QueryDeadline)
	defer cancel()

	state := NewState(query, o.store.Load(), o.opts.MaxIterations)
	o.logger.Info("query started",
		zap.String("query_id", queryID),
		zap.String("query", query),
		zap.Int("rows_loaded", state.LoadedRows.Len()),
	)
	if o.auditor != nil {
		_ = o.auditor.LogQueryStarted(ctx, queryID, query)
	}

	res := o.run(ctx, queryID, state)
	res.QueryID = queryID

	status := "failed"
	if res.Success {
		status = "completed"
	}
	metrics.QueriesTotal.WithLabelValues(status).Inc()
	metrics.QueryDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	metrics.QueryIterations.Observe(float64(res.Iterations))

	if o.auditor != nil {
		if res.Success {
			_ = o.auditor.LogQueryCompleted(ctx, queryID, res.Iterations, time.Since(start))
		} else {
			_ = o.auditor.LogQueryFailed(ctx, queryID, fmt.Errorf("%s", res.Error), res.ErrorKind)
		}
	}
	o.logger.Info("query finished",
		zap.String("query_id", queryID),
		zap.Bool("success", res.Success),
		zap.Int("iterations", res.Iterations),
		zap.String("error_kind", res.ErrorKind),
	)
	return res
}

func (o *Orchestrator) run(ctx context.Context, queryID string, state *State) *Result {
	parseFailStreak := 0
	llmFailStreak := 0

	for state.Iteration < state.MaxIterations {
		if ctx.Err() != nil {
			return o.terminal(state, ErrDeadlineExceeded, "query deadline exceeded")
		}

		state.Iteration++
		stepStart := time.Now()
		step := &Step{Iteration: state.Iteration}

		userPrompt := o.builder.User(state.Query, o.promptTrace(state))
		raw, err := o.generate(ctx, o.builder.System()+"\n\n"+userPrompt)
		if err != nil {
			if ctx.Err() != nil {
				return o.terminal(state, ErrDeadlineExceeded, "query deadline exceeded")
			}
			llmFailStreak++
			step.Error = err.Error()
			step.ErrorKind = ErrLLMUnreachable
			o.record(ctx, queryID, state, step, stepStart)
			if llmFailStreak >= 2 {
				return o.terminal(state, ErrLLMUnreachable, "model unreachable: "+err.Error())
			}
			continue
		}
		llmFailStreak = 0

		d, err := decision.Parse(raw)
		if err != nil {
			parseFailStreak++
			metrics.ParseFailuresTotal.Inc()
			step.Error = err.Error()
			step.ErrorKind = ErrLLMParseFailed
			o.record(ctx, queryID, state, step, stepStart)
			if parseFailStreak >= maxParseFailStreak {
				return o.terminal(state, ErrLLMParseFailed, "could not parse reasoner output")
			}
			continue
		}
		parseFailStreak = 0
		step.Decision = d

		if err := d.Validate(); err != nil {
			step.Error = err.Error()
			step.ErrorKind = ErrInvalidParameter
			o.record(ctx, queryID, state, step, stepStart)
			continue
		}

		if d.Done {
			state.Answer = d.Answer
			state.Confidence = d.Confidence
			state.Done = true
			o.record(ctx, queryID, state, step, stepStart)
			break
		}

		chosen, found := o.registry.Get(d.Tool)
		if !found {
			step.Error = fmt.Sprintf("unknown tool %q", d.Tool)
			step.ErrorKind = ErrUnknownTool
			o.record(ctx, queryID, state, step, stepStart)
			continue
		}

		if kind, err := o.prepareParams(chosen, d.Parameters, state); err != nil {
			step.Error = err.Error()
			step.ErrorKind = kind
			o.record(ctx, queryID, state, step, stepStart)
			continue
		}

		fp := Fingerprint(d.Tool, d.Parameters)
		if state.FailedAttempts[fp] >= maxFailuresPerCall {
			metrics.LoopBreaksTotal.Inc()
			if o.auditor != nil {
				_ = o.auditor.LogLoopBreak(ctx, queryID, d.Tool, state.Iteration)
			}
			msg := "skipped: this call has failed twice already, try a different approach"
			step.Result = &tool.Result{Success: false, Message: msg, Err: msg}
			step.ErrorKind = ErrLoopDetected
			o.record(ctx, queryID, state, step, stepStart)
			continue
		}

		res, execErr := o.execute(chosen, d.Parameters)
		if execErr != nil {
			// A tool panic means a broken collaborator, not a bad call.
			step.Error = execErr.Error()
			step.ErrorKind = ErrToolFailed
			o.record(ctx, queryID, state, step, stepStart)
			return o.terminal(state, ErrToolFailed, execErr.Error())
		}
		step.Result = res

		if rs, isRows := res.Data.(*logstore.RowSet); isRows && res.Success {
			state.FilteredRows = rs
		}
		if !res.Success {
			state.FailedAttempts[fp]++
			step.ErrorKind = ErrToolFailed
			step.Error = res.Err
		}

		if d.Tool == "finalize_answer" && res.Success {
			state.Answer, _ = res.Data.(string)
			state.Confidence = d.Confidence
			if c, ok := d.Parameters["confidence"].(float64); ok {
				state.Confidence = c
			}
			state.Done = true
			o.record(ctx, queryID, state, step, stepStart)
			break
		}

		o.record(ctx, queryID, state, step, stepStart)
	}

	if state.Done {
		return o.terminal(state, "", "")
	}
	return o.terminal(state, ErrIterationExhausted,
		fmt.Sprintf("no answer after %d iterations", state.Iteration))
}

// generate calls the model with per-call timeout and retry with doubling
// back-off. Empty replies count as failures.
func (o *Orchestrator) generate(ctx context.Context, promptText string) (string, error) {
	var lastErr error
	backoff := retryBackoff

	for attempt := 0; attempt <= o.opts.LLMRetries; attempt++ {
		if attempt > 0 {
			metrics.LLMRetriesTotal.WithLabelValues(o.client.Provider(), o.client.Model()).Inc()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, o.opts.LLMTimeout)
		callStart := time.Now()
		raw, err := o.client.Generate(callCtx, promptText)
		cancel()

		metrics.LLMRequestDuration.WithLabelValues(o.client.Provider(), o.client.Model()).
			Observe(time.Since(callStart).Seconds())

		if err == nil && strings.TrimSpace(raw) == "" {
			err = fmt.Errorf("model returned an empty reply")
		}
		if err == nil {
			metrics.LLMRequestsTotal.WithLabelValues(o.client.Provider(), o.client.Model(), "ok").Inc()
			return raw, nil
		}
		metrics.LLMRequestsTotal.WithLabelValues(o.client.Provider(), o.client.Model(), "error").Inc()
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("model call failed after %d attempts: %w", o.opts.LLMRetries+1, lastErr)
}

// prepareParams injects rowset parameters and validates the rest against
// the tool's contract. Injection fills only absent parameters.
func (o *Orchestrator) prepareParams(chosen tool.Tool, params map[string]any, state *State) (string, error) {
	for _, spec := range chosen.Params() {
		value, provided := params[spec.Name]

		if spec.Kind == tool.KindRowSet && !provided {
			if spec.Inject == tool.InjectLoaded {
				params[spec.Name] = state.LoadedRows
			} else {
				params[spec.Name] = state.WorkingRows()
			}
			continue
		}

		if !provided {
			if spec.Required {
				return ErrMissingParameter, fmt.Errorf("missing required parameter %q for %s", spec.Name, chosen.Name())
			}
			continue
		}

		if err := tool.CheckKind(spec, value); err != nil {
			return ErrInvalidParameter, err
		}
	}
	return "", nil
}

// execute runs the tool, converting panics into errors so a broken
// collaborator cannot take the whole process down.
func (o *Orchestrator) execute(chosen tool.Tool, params map[string]any) (res *tool.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("tool %s panicked: %v", chosen.Name(), r)
		}
	}()

	if rs, ok := params["rows"].(*logstore.RowSet); ok {
		metrics.RowsScanned.Add(float64(rs.Len()))
	}

	start := time.Now()
	res = chosen.Execute(params)
	metrics.ToolCallDuration.WithLabelValues(chosen.Name()).Observe(time.Since(start).Seconds())

	status := "ok"
	if !res.Success {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(chosen.Name(), status).Inc()
	return res, nil
}

// record finalizes and appends one step, notifying the audit log and the
// step observer.
func (o *Orchestrator) record(ctx context.Context, queryID string, state *State, step *Step, stepStart time.Time) {
	step.WallclockMS = time.Since(stepStart).Milliseconds()
	state.Trace = append(state.Trace, step)

	toolName := ""
	if step.Decision != nil {
		toolName = step.Decision.Tool
	}
	o.logger.Debug("step recorded",
		zap.String("query_id", queryID),
		zap.Int("iteration", step.Iteration),
		zap.String("tool", toolName),
		zap.String("error_kind", step.ErrorKind),
	)
	if o.auditor != nil && toolName != "" && step.Result != nil && step.ErrorKind != ErrLoopDetected {
		_ = o.auditor.LogToolExecuted(ctx, queryID, toolName, step.Iteration, step.Result.Success,
			time.Duration(step.WallclockMS)*time.Millisecond)
	}
	if o.observer != nil {
		o.observer(queryID, step)
	}
}

// promptTrace converts recorded steps into the prompt builder's view.
func (o *Orchestrator) promptTrace(state *State) []prompt.TraceStep {
	out := make([]prompt.TraceStep, 0, len(state.Trace))
	for _, step := range state.Trace {
		ts := prompt.TraceStep{Iteration: step.Iteration, Err: step.Error}
		if step.Decision != nil {
			ts.Reasoning = step.Decision.Reasoning
			ts.Tool = step.Decision.Tool
			ts.Params = step.Decision.Parameters
		}
		if step.Result != nil {
			ts.Message = step.Result.Message
			ts.Data = step.Result.Data
			if !step.Result.Success {
				ts.Err = step.Result.Err
			}
		}
		out = append(out, ts)
	}
	return out
}

// terminal assembles the result envelope. An empty kind means the query
// finished with an answer.
func (o *Orchestrator) terminal(state *State, kind, errMsg string) *Result {
	res := &Result{
		Success:      state.Done,
		Answer:       state.Answer,
		Confidence:   state.Confidence,
		Iterations:   state.Iteration,
		Trace:        state.Trace,
		LogsAnalyzed: state.AnalyzedCount(),
		ErrorKind:    kind,
		Error:        errMsg,
	}
	if !res.Success && res.Answer == "" {
		res.Answer = o.partialAnswer(state)
	}
	return res
}

// partialAnswer derives a best-effort summary from the last successful
// observation when the loop ends without a final answer.
func (o *Orchestrator) partialAnswer(state *State) string {
	for i := len(state.Trace) - 1; i >= 0; i-- {
		step := state.Trace[i]
		if step.Result != nil && step.Result.Success {
			return "incomplete analysis; last observation: " + step.Result.Message
		}
	}
	return ""
}
