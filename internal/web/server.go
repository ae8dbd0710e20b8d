// Package web exposes the gateway's HTTP API: session management,
// uploads, the SSE event stream, and operational endpoints.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/knowsee/knowsee/internal/artifacts"
	"github.com/knowsee/knowsee/internal/eventbus"
	"github.com/knowsee/knowsee/internal/observability"
	"github.com/knowsee/knowsee/internal/ragsync"
	"github.com/knowsee/knowsee/internal/sessions"
	"github.com/knowsee/knowsee/internal/sidechannel"
	"github.com/knowsee/knowsee/pkg/models"
)

// DefaultUserHeader carries the caller's identity, set by the trusted
// proxy in front of the gateway.
const DefaultUserHeader = "X-User-Id"

// RunService executes one user turn against a session.
type RunService interface {
	Run(ctx context.Context, userID, sessionID, message string) (*models.ModelResponse, error)
}

// SyncService triggers a full corpus sync.
type SyncService interface {
	SyncAll(ctx context.Context) (ragsync.SyncAllResult, error)
}

// Config holds the handler's collaborators.
type Config struct {
	AppName      string
	SessionStore sessions.Store
	Artifacts    artifacts.Store
	Bus          *eventbus.Bus
	Buffers      *sidechannel.Registry
	Runs         RunService
	Sync         SyncService
	Metrics      *observability.Metrics
	CORSOrigins  []string
	Logger       *slog.Logger

	// Heartbeat is the SSE keep-alive interval (default 30s).
	Heartbeat time.Duration

	// UserHeader overrides DefaultUserHeader.
	UserHeader string
}

// Handler is the gateway HTTP handler.
type Handler struct {
	config *Config
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates the API handler.
func NewHandler(cfg *Config) *Handler {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.UserHeader == "" {
		cfg.UserHeader = DefaultUserHeader
	}
	if cfg.AppName == "" {
		cfg.AppName = "knowsee"
	}

	h := &Handler{
		config: cfg,
		logger: cfg.Logger.With("component", "web"),
		mux:    http.NewServeMux(),
	}
	h.setupRoutes()
	return h
}

func (h *Handler) setupRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /api/upload/config", h.handleUploadConfig)

	h.mux.HandleFunc("GET /api/sessions", h.handleSessionList)
	h.mux.HandleFunc("POST /api/sessions", h.handleSessionCreate)
	h.mux.HandleFunc("GET /api/sessions/{id}", h.handleSessionGet)
	h.mux.HandleFunc("DELETE /api/sessions/{id}", h.handleSessionDelete)
	h.mux.HandleFunc("POST /api/sessions/{id}/messages", h.handleSessionMessage)
	h.mux.HandleFunc("POST /api/sessions/{id}/upload", h.handleUpload)

	h.mux.HandleFunc("GET /api/events", h.handleEvents)
	h.mux.HandleFunc("POST /api/internal/sync", h.handleSync)

	h.mux.HandleFunc("GET /api/debug/sessions/{id}", h.handleDebugSession)
	h.mux.HandleFunc("GET /api/debug/sessions/{id}/events", h.handleDebugEvents)
	h.mux.HandleFunc("GET /api/debug/sessions/{id}/state", h.handleDebugState)
}

// ServeHTTP applies middleware and dispatches to the API routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := CORSMiddleware(h.config.CORSOrigins)(h.mux)
	handler = LoggingMiddleware(h.logger)(handler)
	handler.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	if h.config.Sync == nil {
		h.jsonError(w, "sync not configured", http.StatusServiceUnavailable)
		return
	}
	result, err := h.config.Sync.SyncAll(r.Context())
	if err != nil {
		h.logger.Error("sync failed", "error", err)
		h.jsonError(w, "sync failed", http.StatusInternalServerError)
		return
	}
	if h.config.Metrics != nil {
		for _, res := range result.Results {
			h.config.Metrics.SyncsTotal.WithLabelValues(string(res.Status)).Inc()
		}
	}
	h.writeJSON(w, http.StatusOK, result)
}

// userID extracts the caller identity from the trusted header.
func (h *Handler) userID(r *http.Request) string {
	if id := r.Header.Get(h.config.UserHeader); id != "" {
		return id
	}
	return "anonymous"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, msg string, status int) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
