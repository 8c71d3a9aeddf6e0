package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasoning-engine metrics for production monitoring
var (
	// Query metrics
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_queries_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loglens_query_duration_seconds",
			Help:    "End-to-end query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~8min
		},
		[]string{"status"},
	)

	QueryIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loglens_query_iterations",
			Help:    "Reasoning iterations used per query",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	RowsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loglens_rows_scanned_total",
			Help: "Total rows examined by row-producing tools",
		},
	)

	// LLM metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_llm_requests_total",
			Help: "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loglens_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"provider", "model"},
	)

	LLMRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_llm_retries_total",
			Help: "LLM requests retried after a transport failure",
		},
		[]string{"provider", "model"},
	)

	ParseFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loglens_decision_parse_failures_total",
			Help: "Model replies that could not be coerced to a decision",
		},
	)

	// Tool metrics
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_tool_calls_total",
			Help: "Tool executions by tool and outcome",
		},
		[]string{"tool", "status"},
	)

	ToolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loglens_tool_call_duration_seconds",
			Help:    "Tool execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
		},
		[]string{"tool"},
	)

	LoopBreaksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loglens_loop_breaks_total",
			Help: "Repeated failing tool calls skipped by the loop breaker",
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loglens_websocket_connections",
			Help: "Current number of active WebSocket step-stream subscribers",
		},
	)

	WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loglens_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: inbound/outbound
	)
)
