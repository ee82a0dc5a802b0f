package api

import (
	"net/http"

	"github.com/okian/vigil/internal/domain/model"
)

// StatusProvider defines the interface for getting session status.
type StatusProvider interface {
	Status() model.Status
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	provider StatusProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatusProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.Status())
}
