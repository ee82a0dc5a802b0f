package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/vigil/internal/adapters/repository"
)

// EventsProvider returns recently logged events, newest first.
type EventsProvider interface {
	Recent(ctx context.Context, n int) ([]repository.Entry, error)
}

// EventsHandler handles event log requests.
type EventsHandler struct {
	provider     EventsProvider
	defaultLimit int
	maxLimit     int
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(provider EventsProvider, defaultLimit, maxLimit int) *EventsHandler {
	return &EventsHandler{provider: provider, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// HandleGetEvents handles GET /events?limit=N requests.
func (h *EventsHandler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := h.defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		if v > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: limit must be at most %d", ErrBadRequest, h.maxLimit))
			return
		}
		n = v
	}

	entries, err := h.provider.Recent(r.Context(), n)
	switch {
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if entries == nil {
		entries = []repository.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
