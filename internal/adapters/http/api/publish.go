package api

import (
	"fmt"
	"net/http"

	"github.com/okian/simon-relay/pkg/logger"
)

// PublishHandler handles GET /publish.
type PublishHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewPublishHandler creates a new publish handler.
func NewPublishHandler(deps Dependencies, log logger.Logger) *PublishHandler {
	return &PublishHandler{deps: deps, log: log}
}

// HandlePublish publishes the fixed test message to the legacy topic.
func (h *PublishHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	res := h.deps.PublishTestMessage(r.Context())
	if res.OK() {
		writeText(w, http.StatusOK, fmt.Sprintf("Message published: %s", res.Payload))
		return
	}
	writePublishFailure(r.Context(), w, h.log, res)
}
