package api

import (
	"net/http"
	"strconv"

	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/pkg/logger"
)

// ScoresHandler handles GET /scores.
type ScoresHandler struct {
	deps     Dependencies
	maxLimit int
	log      logger.Logger
}

// NewScoresHandler creates a new scores handler. Requests never return more
// than maxLimit records.
func NewScoresHandler(deps Dependencies, maxLimit int, log logger.Logger) *ScoresHandler {
	return &ScoresHandler{deps: deps, maxLimit: maxLimit, log: log}
}

// HandleScores returns persisted scores, newest first. limit is clamped to
// maxLimit, and a request without one gets maxLimit records rather than
// every stored score.
func (h *ScoresHandler) HandleScores(w http.ResponseWriter, r *http.Request) {
	limit := h.maxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrInvalidLimit)
			return
		}
		limit = min(n, h.maxLimit)
	}

	records, err := h.deps.FindAllOrderedByDateDescending(r.Context(), limit)
	if err != nil {
		h.log.Error(r.Context(), "listing scores failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "store_error", ErrStore)
		return
	}
	if records == nil {
		records = []model.ScoreRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
