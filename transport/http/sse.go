package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// StreamEvents subscribes the caller to a run's broadcast events over
// Server-Sent Events until the client disconnects or the run terminates.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	broadcaster := h.svc.Broadcaster()
	if broadcaster == nil {
		writeError(w, http.StatusServiceUnavailable, "event streaming is not configured")
		return
	}

	events, unsubscribe := broadcaster.Subscribe(runID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, data)
			flusher.Flush()
			if isTerminalEventType(env.Type) {
				return
			}
		}
	}
}

func isTerminalEventType(t string) bool {
	switch t {
	case "run.completed", "run.failed", "run.cancelled", "run.awaiting_action":
		return true
	default:
		return false
	}
}
