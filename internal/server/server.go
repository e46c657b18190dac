// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/gophersearch/internal/gateway"
	"github.com/user/gophersearch/internal/metrics"
	"github.com/user/gophersearch/internal/state"
	"github.com/user/gophersearch/internal/types"
)

// TaskRunner runs prompts outside a live connection and waits for the answer.
type TaskRunner interface {
	Run(ctx context.Context, sessionKey, prompt string) (string, error)
	RunTask(ctx context.Context, task *state.Task, prompt string) (string, error)
}

// Options wires the server's collaborators. Store, Tasks, Runner and Metrics
// are optional; the routes that need a missing one answer 503.
type Options struct {
	Gateway *gateway.Gateway
	Store   types.ConversationStore
	Tasks   *state.TaskStore
	Runner  TaskRunner
	Metrics *metrics.Metrics
	// WebhookTimeout bounds a webhook-triggered turn. Zero means two minutes.
	WebhookTimeout time.Duration
}

// Server is the HTTP front-end: the chat socket, webhook triggers and a
// read-only debug API.
type Server struct {
	gw             *gateway.Gateway
	store          types.ConversationStore
	tasks          *state.TaskStore
	runner         TaskRunner
	metrics        *metrics.Metrics
	webhookTimeout time.Duration
	upgrader       websocket.Upgrader
	mux            *http.ServeMux
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		gw:             opts.Gateway,
		store:          opts.Store,
		tasks:          opts.Tasks,
		runner:         opts.Runner,
		metrics:        opts.Metrics,
		webhookTimeout: opts.WebhookTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	if s.webhookTimeout <= 0 {
		s.webhookTimeout = 2 * time.Minute
	}
	s.mux.HandleFunc("GET /chat/socket", s.handleSocket)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /webhook", s.handleAdHoc)
	s.mux.HandleFunc("POST /webhook/{name}", s.handleNamedTask)
	s.mux.HandleFunc("GET /api/sessions", s.handleAPISessions)
	s.mux.HandleFunc("GET /api/sessions/{id}/turns", s.handleAPITurns)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	live := 0
	if s.gw != nil {
		live = s.gw.Registry.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "connections": live})
}

// adHocRequest is the JSON body for POST /webhook.
type adHocRequest struct {
	Prompt     string `json:"prompt"`
	SessionKey string `json:"session_key"`
}

func (s *Server) handleAdHoc(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "webhooks not configured")
		return
	}
	var req adHocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Prompt == "" || req.SessionKey == "" {
		writeError(w, http.StatusBadRequest, "prompt and session_key are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.webhookTimeout)
	defer cancel()
	resp, err := s.runner.Run(ctx, req.SessionKey, req.Prompt)
	if err != nil {
		slog.Error("webhook ad-hoc run failed", "session_key", req.SessionKey, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": resp})
}

// namedTaskRequest is the optional JSON body for POST /webhook/{name}.
type namedTaskRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleNamedTask(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil || s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "webhooks not configured")
		return
	}
	name := r.PathValue("name")

	task, err := s.tasks.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if !task.Enabled {
		writeError(w, http.StatusForbidden, "task is disabled")
		return
	}

	prompt := task.Prompt
	var body namedTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Prompt != "" {
		prompt = body.Prompt
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.webhookTimeout)
	defer cancel()
	resp, err := s.runner.RunTask(ctx, task, prompt)
	if err != nil {
		slog.Error("webhook task run failed", "task", name, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": resp})
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	TurnCount int64  `json:"turn_count"`
	Live      bool   `json:"live"`
}

func (s *Server) handleAPISessions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "debug API not configured")
		return
	}
	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	live := make(map[types.SessionID]bool)
	if s.gw != nil {
		for _, id := range s.gw.Registry.Sessions() {
			live[id] = true
		}
	}

	result := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionResponse{
			SessionID: string(sess.ID),
			Title:     sess.Title,
			Source:    sess.Source,
			CreatedAt: sess.CreatedAt.Format(time.RFC3339),
			UpdatedAt: sess.UpdatedAt.Format(time.RFC3339),
			TurnCount: sess.TurnCount,
			Live:      live[sess.ID],
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UpdatedAt > result[j].UpdatedAt
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAPITurns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "debug API not configured")
		return
	}
	id := types.SessionID(r.PathValue("id"))
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		if errors.Is(err, types.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		slog.Error("get session failed", "session_id", string(id), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	turns, err := s.store.ListTurns(r.Context(), id)
	if err != nil {
		slog.Error("list turns failed", "session_id", string(id), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if turns == nil {
		turns = []*types.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}
