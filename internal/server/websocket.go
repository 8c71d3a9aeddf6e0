package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/loglens/loglens-ai/internal/agent"
	"github.com/loglens/loglens-ai/internal/metrics"
)

// WebSocket frame types.
const (
	frameTypeStep   = "step"
	frameTypeResult = "result"
	frameTypeError  = "error"
)

// wsFrame is one server-to-client message: a recorded step, the final
// result, or a protocol error.
type wsFrame struct {
	Type      string        `json:"type"`
	QueryID   string        `json:"query_id,omitempty"`
	Step      *agent.Step   `json:"step,omitempty"`
	Result    *agent.Result `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// defaultOrigins are accepted when no allow list is configured.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// newUpgrader builds a WebSocket upgrader that admits the given origins.
// An empty list falls back to the development defaults; a single "*"
// entry admits everything. Requests without an Origin header (non-browser
// clients) are always admitted.
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	origins := allowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range origins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsConn serializes writes to one WebSocket connection. The step observer
// and the request loop both write frames.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(frame *wsFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(frame); err != nil {
		return err
	}
	metrics.WebSocketMessagesTotal.WithLabelValues("out").Inc()
	return nil
}

// handleQueryStream serves queries over one WebSocket connection. The
// client sends {"query": "..."} requests; the server streams every
// recorded step as it happens, then the final result. The connection
// stays open for follow-up queries.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	upgrader := newUpgrader(s.cfg.Server.AllowedOrigins)
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()
	s.logger.Info("websocket connected", zap.String("remote", r.RemoteAddr))

	// One engine per connection so this client sees only its own steps.
	engine := s.engine
	if s.newEngine != nil {
		engine = s.newEngine(func(queryID string, step *agent.Step) {
			_ = conn.send(&wsFrame{
				Type:      frameTypeStep,
				QueryID:   queryID,
				Step:      step,
				Timestamp: time.Now(),
			})
		})
	}

	for {
		var req QueryRequest
		if err := raw.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		metrics.WebSocketMessagesTotal.WithLabelValues("in").Inc()

		if strings.TrimSpace(req.Query) == "" {
			_ = conn.send(&wsFrame{
				Type:      frameTypeError,
				Error:     "query cannot be empty",
				Timestamp: time.Now(),
			})
			continue
		}

		started := time.Now()
		res := engine.Analyze(r.Context(), req.Query)
		s.saveRun(r, req.Query, res, started)

		if err := conn.send(&wsFrame{
			Type:      frameTypeResult,
			QueryID:   res.QueryID,
			Result:    res,
			Timestamp: time.Now(),
		}); err != nil {
			return
		}
	}
}
