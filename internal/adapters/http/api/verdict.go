package api

import (
	"net/http"

	"github.com/okian/vigil/internal/domain/model"
)

// VerdictProvider returns the most recent frame verdict.
type VerdictProvider interface {
	Latest() model.Verdict
}

// VerdictHandler handles verdict requests.
type VerdictHandler struct {
	provider VerdictProvider
}

// NewVerdictHandler creates a new verdict handler.
func NewVerdictHandler(provider VerdictProvider) *VerdictHandler {
	return &VerdictHandler{provider: provider}
}

// HandleVerdict handles GET /verdict requests.
func (h *VerdictHandler) HandleVerdict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	v := h.provider.Latest()
	if v.Tracks == nil {
		v.Tracks = []model.TrackView{}
	}
	writeJSON(w, http.StatusOK, v)
}
