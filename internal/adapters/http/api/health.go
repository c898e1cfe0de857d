package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/simon-relay/pkg/metrics"
)

// HealthHandler handles liveness and metrics requests.
type HealthHandler struct {
	deps Dependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

type healthResponse struct {
	Status string `json:"status"`
	Broker string `json:"broker"`
}

// HandleHealth handles GET /healthz. The process is healthy even while the
// broker is unreachable; the broker field is informational.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := h.deps.Snapshot()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Broker: snap.Connection.String()})
}

// MetricsHandler serves the private Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
