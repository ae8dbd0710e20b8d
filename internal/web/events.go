package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleEvents streams session events over SSE. Clients reconnect on
// drop; the heartbeat comment keeps intermediaries from timing out the
// connection.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		h.jsonError(w, "session_id is required", http.StatusBadRequest)
		return
	}
	if h.config.Bus == nil {
		h.jsonError(w, "events not configured", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := h.config.Bus.Subscribe(sessionID)
	defer h.config.Bus.Unsubscribe(sessionID, sub)
	if h.config.Metrics != nil {
		h.config.Metrics.SSESubscribers.Inc()
		defer h.config.Metrics.SSESubscribers.Dec()
	}

	heartbeat := time.NewTicker(h.config.Heartbeat)
	defer heartbeat.Stop()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("failed to marshal event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
