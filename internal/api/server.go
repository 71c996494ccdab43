// Package api exposes the simulator-facing websocket endpoint and a small
// status API.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/pathtrack/internal/control"
	"github.com/banshee-data/pathtrack/internal/db"
	"github.com/banshee-data/pathtrack/internal/loop"
	"github.com/banshee-data/pathtrack/internal/monitoring"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	opt      control.Optimizer
	cfg      loop.Config
	db       *db.DB // nil disables session recording
	upgrader websocket.Upgrader
	counters *loop.Counters
	started  time.Time
	active   atomic.Int64
}

// NewServer builds the server. database may be nil to disable recording.
func NewServer(opt control.Optimizer, cfg loop.Config, database *db.DB) *Server {
	return &Server{
		opt:      opt,
		cfg:      cfg,
		db:       database,
		counters: &loop.Counters{},
		started:  time.Now(),
		upgrader: websocket.Upgrader{
			// The simulator sends no Origin header worth checking.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSim)
	mux.HandleFunc("/api/status", s.showStatus)
	return mux
}

// wsChannel adapts a websocket connection to the loop's frame transport.
type wsChannel struct {
	conn *websocket.Conn
}

func (c wsChannel) ReadFrame(ctx context.Context) (string, error) {
	_, data, err := c.conn.ReadMessage()
	return string(data), err
}

func (c wsChannel) WriteFrame(ctx context.Context, frame string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// handleSim upgrades the connection and services it with a control session
// until the simulator disconnects. One goroutine per connection; sessions
// share nothing but the counters.
func (s *Server) handleSim(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("failed to upgrade connection from %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	monitoring.Logf("simulator connected from %s", r.RemoteAddr)
	s.active.Add(1)
	defer s.active.Add(-1)

	var rec loop.Recorder
	var sessionID string
	if s.db != nil {
		id, err := s.db.StartSession(time.Now())
		if err != nil {
			monitoring.Logf("failed to start session, recording disabled: %v", err)
		} else {
			sessionID = id
			rec = s.db.Recorder(id)
			monitoring.Logf("recording session %s", sessionID)
		}
	}

	ctx := r.Context()
	go func() {
		// Unblock the read loop when the request context ends.
		<-ctx.Done()
		conn.Close()
	}()

	session := loop.New(wsChannel{conn: conn}, s.opt, s.cfg, rec, s.counters)
	runErr := session.Run(ctx)

	if sessionID != "" {
		if err := s.db.EndSession(sessionID, time.Now()); err != nil {
			monitoring.Logf("failed to end session %s: %v", sessionID, err)
		}
	}
	monitoring.Logf("simulator disconnected: %v", runErr)
}

type statusResponse struct {
	UptimeSeconds     float64 `json:"uptime_seconds"`
	ActiveConnections int64   `json:"active_connections"`
	loop.CounterSnapshot
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	resp := statusResponse{
		UptimeSeconds:     time.Since(s.started).Seconds(),
		ActiveConnections: s.active.Load(),
		CounterSnapshot:   s.counters.Snapshot(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		monitoring.Logf("failed to encode status: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack passes hijacking through so the websocket upgrade works behind the
// logging middleware.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
