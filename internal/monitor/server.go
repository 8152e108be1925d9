// Package monitor provides the HTTP/WebSocket endpoint that exposes the
// running session: its status, a live stream of step and input events, and
// the two controls a local operator needs (toggle input, finish early).
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"overlayctl/internal/logging"
	"overlayctl/internal/overlay"
	"overlayctl/internal/script"
)

// Session is the part of a running script the monitor reads and controls.
type Session interface {
	Snapshot() script.Snapshot
	SetInputCollection(enabled bool)
	Finish()
}

// Server provides the monitor HTTP API
type Server struct {
	session Session
	token   string
	log     *logging.Logger
	hub     *hub

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

var _ script.Observer = (*Server)(nil)

// NewServer creates a monitor for session. An empty token disables auth.
func NewServer(session Session, token string, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NopLogger()
	}
	s := &Server{
		session: session,
		token:   token,
		log:     log.With("component", "monitor"),
	}
	s.hub = newHub(s)
	go s.hub.run()
	return s
}

// Handler returns the monitor's HTTP handler with auth and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/input", s.handleInput)
	mux.HandleFunc("/api/finish", s.handleFinish)
	mux.HandleFunc("/ws", s.hub.handleWebSocket)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start listens on addr and serves until Shutdown. It blocks. After
// Shutdown it returns nil without serving.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("monitor failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.httpServer = srv
	s.mu.Unlock()
	s.log.Info("monitor listening", "addr", ln.Addr().String())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor stopped: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server and disconnects WebSocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()

	s.mu.Lock()
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error("handler panic", "path", r.URL.Path, "panic", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the bearer token if configured. WebSocket clients
// that cannot set headers may pass it as ?token=.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)

		if r.URL.Path == "/health" || s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("Authorization") != "Bearer "+s.token && r.URL.Query().Get("token") != s.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.session.Snapshot())
}

// handleInput handles POST /api/input?enabled=true|false
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	enabled, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
	if err != nil {
		http.Error(w, "Missing or invalid enabled parameter", http.StatusBadRequest)
		return
	}

	s.log.Info("input collection requested", "enabled", enabled, "remote", r.RemoteAddr)
	s.session.SetInputCollection(enabled)
	writeJSON(w, map[string]any{"status": "ok", "enabled": enabled})
}

// handleFinish handles POST /api/finish
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.log.Info("finish requested", "remote", r.RemoteAddr)
	s.session.Finish()
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// StepChanged broadcasts a step transition.
func (s *Server) StepChanged(sessionID string, step script.Step) {
	s.hub.publish(Message{
		Type: TypeStep,
		Payload: StepPayload{
			SessionID: sessionID,
			Step:      step.String(),
			Timestamp: time.Now().UnixMilli(),
		},
	})
}

// MouseInput broadcasts a mouse event delivered to the callback.
func (s *Server) MouseInput(sessionID string, ev overlay.MouseEvent, result int) {
	s.hub.publish(Message{
		Type: TypeInput,
		Payload: InputPayload{
			SessionID: sessionID,
			Device:    "mouse",
			EventType: uint32(ev.Type),
			X:         ev.X,
			Y:         ev.Y,
			Modifier:  ev.Modifier,
			Result:    result,
			Timestamp: time.Now().UnixMilli(),
		},
	})
}

// KeyInput broadcasts a keyboard event delivered to the callback.
func (s *Server) KeyInput(sessionID string, ev overlay.KeyEvent, result int) {
	s.hub.publish(Message{
		Type: TypeInput,
		Payload: InputPayload{
			SessionID: sessionID,
			Device:    "keyboard",
			EventType: uint32(ev.Type),
			KeyCode:   ev.KeyCode,
			Result:    result,
			Timestamp: time.Now().UnixMilli(),
		},
	})
}

// InputCollectionChanged broadcasts an accepted input collection switch.
func (s *Server) InputCollectionChanged(sessionID string, enabled bool) {
	s.hub.publish(Message{
		Type: TypeToggle,
		Payload: TogglePayload{
			SessionID: sessionID,
			Enabled:   enabled,
			Timestamp: time.Now().UnixMilli(),
		},
	})
}
