// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/screenveil/screenveil/internal/cache"
	"github.com/screenveil/screenveil/internal/config"
	"github.com/screenveil/screenveil/internal/decision"
	"github.com/screenveil/screenveil/internal/pipeline"
	"github.com/screenveil/screenveil/internal/telemetry"
	"github.com/screenveil/screenveil/internal/trace"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

// DecisionMessage pushes a completed frame outcome to overlay clients.
type DecisionMessage struct {
	Type     string           `json:"type"`
	FrameID  string           `json:"frame_id"`
	Seq      uint64           `json:"seq"`
	Cached   bool             `json:"cached"`
	Degraded bool             `json:"degraded"`
	Outcome  decision.Outcome `json:"outcome"`
}

// TelemetryMessage pushes a periodic state snapshot to dashboard clients.
type TelemetryMessage struct {
	Type     string             `json:"type"`
	Snapshot telemetry.Snapshot `json:"snapshot"`
}

type StatusMessage struct {
	Type   string          `json:"type"`
	Status pipeline.Status `json:"status"`
}

type SettingsMessage struct {
	Type     string          `json:"type"`
	Settings config.Settings `json:"settings"`
}

type PressureMessage struct {
	Type  string `json:"type"`
	Level string `json:"level"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	engine  *pipeline.Engine
	history *telemetry.History
	metrics http.Handler
	force   func()

	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter

	decisions chan DecisionMessage
	snapshots chan TelemetryMessage
}

// New creates a new server wired to the analysis engine. history enables
// the /api/history endpoints, metrics mounts under /metrics, and force
// requests an immediate capture pass; each may be nil.
func New(eng *pipeline.Engine, history *telemetry.History, metrics http.Handler, force func()) *Server {
	s := &Server{
		engine:     eng,
		history:    history,
		metrics:    metrics,
		force:      force,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
		decisions:  make(chan DecisionMessage, DecisionQueueSize),
		snapshots:  make(chan TelemetryMessage, SnapshotQueueSize),
	}

	eng.OnDecision(s.queueDecision)
	eng.AddSink(s)

	// Start broadcasters
	go s.broadcastDecisions()
	go s.broadcastSnapshots()

	return s
}

// queueDecision runs on the processing goroutine; slow clients lose
// events instead of stalling analysis.
func (s *Server) queueDecision(res *pipeline.FrameResult) {
	msg := DecisionMessage{
		Type:     "decision",
		FrameID:  res.Frame.ID,
		Seq:      res.Frame.Seq,
		Cached:   res.FromCache,
		Degraded: res.Degraded,
		Outcome:  res.Outcome,
	}
	select {
	case s.decisions <- msg:
	default:
		slog.Debug("decision broadcast queue full, dropping")
	}
}

// PublishSnapshot queues a telemetry snapshot for broadcast.
func (s *Server) PublishSnapshot(snap telemetry.Snapshot) {
	select {
	case s.snapshots <- TelemetryMessage{Type: "telemetry", Snapshot: snap}:
	default:
	}
}

// PublishDecision is a no-op. Per-frame results reach clients through the
// engine consumer, which carries the blur geometry the flat record drops.
func (s *Server) PublishDecision(telemetry.Decision) {}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/errors", s.handleErrors)
	mux.HandleFunc("POST /api/settings", s.handleSettings)
	mux.HandleFunc("POST /api/pressure", s.handlePressure)
	if s.force != nil {
		mux.HandleFunc("POST /api/force", s.handleForce)
	}
	if s.history != nil {
		mux.HandleFunc("GET /api/history/snapshots", s.handleHistorySnapshots)
		mux.HandleFunc("GET /api/history/decisions", s.handleHistoryDecisions)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// New clients get the current state before the event streams arrive.
	_ = wsjson.Write(baseCtx, conn, StatusMessage{Type: "status", Status: s.engine.Status()})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		// Check rate limit
		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "settings":
			var sm SettingsMessage
			if err := json.Unmarshal(msg, &sm); err != nil {
				continue
			}
			s.handleSettingsMessage(baseCtx, conn, sm)
		case "pressure":
			var pm PressureMessage
			if err := json.Unmarshal(msg, &pm); err != nil {
				continue
			}
			s.engine.Pressure(cache.ParsePressure(pm.Level))
		case "force":
			if s.force != nil {
				s.force()
			}
		case "status":
			_ = wsjson.Write(baseCtx, conn, StatusMessage{Type: "status", Status: s.engine.Status()})
		}
	}
}

func (s *Server) handleSettingsMessage(ctx context.Context, conn *websocket.Conn, msg SettingsMessage) {
	ctx, span := trace.StartSpan(ctx, "update_settings")
	defer span.End()

	log := trace.Logger(ctx)

	if err := s.engine.UpdateSettings(msg.Settings); err != nil {
		span.SetAttr("error", err.Error())
		log.Warn("settings rejected", "error", err)
		_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: err.Error()})
		return
	}

	_ = wsjson.Write(ctx, conn, SettingsMessage{Type: "settings", Settings: s.engine.Settings()})
}

func (s *Server) broadcastDecisions() {
	for msg := range s.decisions {
		s.broadcast(msg)
	}
}

func (s *Server) broadcastSnapshots() {
	for msg := range s.snapshots {
		s.broadcast(msg)
	}
}

func (s *Server) broadcast(msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			_ = wsjson.Write(context.Background(), c, msg)
		}(conn)
	}
}
