package api

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/okian/simon-relay/internal/state"
)

//go:embed templates/status.html
var templatesFS embed.FS

var statusPage = template.Must(template.ParseFS(templatesFS, "templates/status.html"))

// StatusHandler serves the status page and its JSON feed.
type StatusHandler struct {
	deps         Dependencies
	pollInterval time.Duration
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps Dependencies, pollInterval time.Duration) *StatusHandler {
	return &StatusHandler{deps: deps, pollInterval: pollInterval}
}

type statusView struct {
	Snapshot       state.Snapshot
	PollIntervalMS int64
}

// HandlePage handles GET / by rendering the current state. The page then
// refreshes itself from /status.
func (h *StatusHandler) HandlePage(w http.ResponseWriter, _ *http.Request) {
	view := statusView{Snapshot: h.deps.Snapshot(), PollIntervalMS: h.pollInterval.Milliseconds()}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPage.Execute(w, view); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

// HandleStatus handles GET /status.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Snapshot())
}
