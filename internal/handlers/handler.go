package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/store"
	"github.com/hansenliang/k-answers-slack-bot-sub001/internal/worker"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	queue      *store.RedisStore
	archive    store.Archive // may be nil
	dispatcher *worker.Dispatcher
	logger     zerolog.Logger
}

// NewHandler creates a new Handler with the given collaborators.
func NewHandler(queue *store.RedisStore, archive store.Archive, dispatcher *worker.Dispatcher, logger zerolog.Logger) *Handler {
	return &Handler{queue: queue, archive: archive, dispatcher: dispatcher, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// truncate shortens long text fields for diagnostic readability.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
