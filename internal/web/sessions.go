package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/knowsee/knowsee/internal/history"
	"github.com/knowsee/knowsee/internal/sessions"
	"github.com/knowsee/knowsee/pkg/models"
)

// fallbackTitle is shown for sessions that have not earned a generated
// title yet.
const fallbackTitle = "New conversation"

// SessionSummary is the compact session representation for lists.
type SessionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionDetail is a session with its reconstructed messages.
type SessionDetail struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Messages  []models.Message `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (h *Handler) handleSessionList(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.config.SessionStore.List(r.Context(), h.config.AppName, h.userID(r),
		sessions.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		h.jsonError(w, "failed to list sessions", http.StatusInternalServerError)
		return
	}

	summaries := make([]SessionSummary, 0, len(list))
	for _, s := range list {
		summaries = append(summaries, SessionSummary{
			ID:        s.ID,
			Title:     displayTitle(s.Title),
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

func (h *Handler) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		AppName:   h.config.AppName,
		UserID:    h.userID(r),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.config.SessionStore.Create(r.Context(), session); err != nil {
		h.logger.Error("failed to create session", "error", err)
		h.jsonError(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, SessionSummary{
		ID:        session.ID,
		Title:     fallbackTitle,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	})
}

func (h *Handler) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnedSession(w, r)
	if !ok {
		return
	}

	events, err := h.config.SessionStore.Events(r.Context(), session.ID)
	if err != nil {
		h.logger.Error("failed to load events", "session_id", session.ID, "error", err)
		h.jsonError(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, SessionDetail{
		ID:        session.ID,
		Title:     displayTitle(session.Title),
		Messages:  history.Rebuild(events),
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	})
}

func (h *Handler) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnedSession(w, r)
	if !ok {
		return
	}
	if err := h.config.SessionStore.Delete(r.Context(), session.ID); err != nil {
		h.logger.Error("failed to delete session", "session_id", session.ID, "error", err)
		h.jsonError(w, "failed to delete session", http.StatusInternalServerError)
		return
	}
	if h.config.Bus != nil {
		h.config.Bus.CloseSession(session.ID)
	}
	if h.config.Buffers != nil {
		h.config.Buffers.Drop(session.ID)
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleSessionMessage(w http.ResponseWriter, r *http.Request) {
	if h.config.Runs == nil {
		h.jsonError(w, "runs not configured", http.StatusServiceUnavailable)
		return
	}
	session, ok := h.loadOwnedSession(w, r)
	if !ok {
		return
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		h.jsonError(w, "message is required", http.StatusBadRequest)
		return
	}

	resp, err := h.config.Runs.Run(r.Context(), h.userID(r), session.ID, body.Message)
	if err != nil {
		h.logger.Error("run failed", "session_id", session.ID, "error", err)
		h.jsonError(w, "run failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"response":   resp.LastText(),
	})
}

func (h *Handler) handleDebugSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnedSession(w, r)
	if !ok {
		return
	}
	events, err := h.config.SessionStore.Events(r.Context(), session.ID)
	if err != nil {
		h.jsonError(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"session": session,
		"events":  events,
	})
}

func (h *Handler) handleDebugEvents(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnedSession(w, r)
	if !ok {
		return
	}
	events, err := h.config.SessionStore.Events(r.Context(), session.ID)
	if err != nil {
		h.jsonError(w, "failed to load events", http.StatusInternalServerError)
		return
	}

	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)
	total := len(events)
	if offset < 0 || offset > total {
		offset = total
	}
	end := offset + limit
	if limit < 1 || end > total {
		end = total
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"events": events[offset:end],
		"total":  total,
		"offset": offset,
	})
}

func (h *Handler) handleDebugState(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadOwnedSession(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"state": session.State})
}

// loadOwnedSession fetches the path's session and enforces that it
// belongs to the caller.
func (h *Handler) loadOwnedSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	session, err := h.config.SessionStore.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			h.jsonError(w, "session not found", http.StatusNotFound)
		} else {
			h.logger.Error("failed to load session", "error", err)
			h.jsonError(w, "failed to load session", http.StatusInternalServerError)
		}
		return nil, false
	}
	if session.UserID != h.userID(r) {
		h.jsonError(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func displayTitle(title string) string {
	if title == "" {
		return fallbackTitle
	}
	return title
}

func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
