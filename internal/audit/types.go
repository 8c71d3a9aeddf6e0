package audit

import "time"

// EventType represents the type of audit event
type EventType string

const (
	// Query lifecycle events
	EventQueryStarted   EventType = "query.started"
	EventQueryCompleted EventType = "query.completed"
	EventQueryFailed    EventType = "query.failed"

	// Reasoning events
	EventToolExecuted EventType = "tool.executed"
	EventToolFailed   EventType = "tool.failed"
	EventLoopBreak    EventType = "loop.break"
	EventParseFailure EventType = "decision.parse_failure"

	// Configuration events
	EventConfigLoaded EventType = "config.loaded"
	EventConfigReload EventType = "config.reload"

	// System events
	EventServerStarted  EventType = "system.server_started"
	EventServerShutdown EventType = "system.server_shutdown"
)

// Result represents the outcome of an audited operation
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultSkipped Result = "skipped"
)

// Event represents a single audit event
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	EventType     EventType `json:"event_type"`
	Result        Result    `json:"result"`

	// Query context
	Query     string `json:"query,omitempty"`
	Tool      string `json:"tool,omitempty"`
	Iteration int    `json:"iteration,omitempty"`

	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	DurationMs int64 `json:"duration_ms,omitempty"`
}

// NewEvent creates a new audit event with default values
func NewEvent(eventType EventType) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Result:    ResultSuccess,
		Metadata:  make(map[string]any),
	}
}

// WithCorrelationID sets the correlation ID for event tracking
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithQuery sets the user query the event belongs to
func (e *Event) WithQuery(query string) *Event {
	e.Query = query
	return e
}

// WithTool sets the tool involved in the event
func (e *Event) WithTool(tool string, iteration int) *Event {
	e.Tool = tool
	e.Iteration = iteration
	return e
}

// WithDescription sets a human-readable description
func (e *Event) WithDescription(desc string) *Event {
	e.Description = desc
	return e
}

// WithResult sets the result of the event
func (e *Event) WithResult(result Result) *Event {
	e.Result = result
	return e
}

// WithError sets error information
func (e *Event) WithError(err error, kind string) *Event {
	if err != nil {
		e.Error = err.Error()
		e.ErrorKind = kind
		e.Result = ResultFailure
	}
	return e
}

// WithDuration sets the duration in milliseconds
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.DurationMs = duration.Milliseconds()
	return e
}

// WithMetadata adds metadata to the event
func (e *Event) WithMetadata(key string, value any) *Event {
	e.Metadata[key] = value
	return e
}
