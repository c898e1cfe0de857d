package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/okian/simon-relay/internal/relay"
	"github.com/okian/simon-relay/pkg/logger"
)

const maxBodyBytes = 1 << 20

// StartHandler handles GET and POST /start.
type StartHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewStartHandler creates a new start handler.
func NewStartHandler(deps Dependencies, log logger.Logger) *StartHandler {
	return &StartHandler{deps: deps, log: log}
}

type startRequest struct {
	Username string `json:"username"`
}

// HandleStartSession handles POST /start with a JSON or form body carrying
// the username.
func (h *StartHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	username, err := readUsername(w, r)
	if err != nil {
		h.log.Warn(r.Context(), "rejecting start request", logger.Error(err))
		writeText(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	res := h.deps.StartSession(r.Context(), username)
	if res.OK() {
		writeText(w, http.StatusOK, fmt.Sprintf("Session started for %s", strings.TrimSpace(username)))
		return
	}
	writePublishFailure(r.Context(), w, h.log, res)
}

// HandleLegacyStart handles GET /start by publishing the bare start message.
func (h *StartHandler) HandleLegacyStart(w http.ResponseWriter, r *http.Request) {
	res := h.deps.PublishLegacyStart(r.Context())
	if res.OK() {
		writeText(w, http.StatusOK, fmt.Sprintf("Message %q published to %s", relay.LegacyStartPayload, res.Topic))
		return
	}
	writePublishFailure(r.Context(), w, h.log, res)
}

func readUsername(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		return req.Username, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return r.PostForm.Get("username"), nil
}

// writePublishFailure maps a failed publish onto a plain-text response.
func writePublishFailure(ctx context.Context, w http.ResponseWriter, log logger.Logger, res relay.PublishResult) {
	switch {
	case errors.Is(res.Err, relay.ErrEmptyUsername):
		writeText(w, http.StatusBadRequest, msgMissingUser)
	case errors.Is(res.Err, relay.ErrDisconnected):
		writeText(w, http.StatusServiceUnavailable, msgNotConnected)
	default:
		log.Error(ctx, "publish failed", logger.String("topic", res.Topic), logger.Error(res.Err))
		writeText(w, http.StatusInternalServerError, msgPublishFailed)
	}
}
