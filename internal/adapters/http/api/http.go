// Package api serves the relay's HTTP surface: the status page, the command
// endpoints and the JSON read endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/simon-relay/internal/domain/model"
	"github.com/okian/simon-relay/internal/relay"
	"github.com/okian/simon-relay/internal/state"
	"github.com/okian/simon-relay/pkg/logger"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxLimit     = 1000
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Command publishing. Each call reports its own outcome.
	StartSession(ctx context.Context, username string) relay.PublishResult
	PublishLegacyStart(ctx context.Context) relay.PublishResult
	PublishTestMessage(ctx context.Context) relay.PublishResult

	// Snapshot exposes the in-memory relay state.
	Snapshot() state.Snapshot

	// FindAllOrderedByDateDescending lists persisted scores, newest first.
	FindAllOrderedByDateDescending(ctx context.Context, limit int) ([]model.ScoreRecord, error)
}

// Server wires HTTP routes for the relay.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	statusHandler  *StatusHandler
	startHandler   *StartHandler
	publishHandler *PublishHandler
	scoresHandler  *ScoresHandler
	log            logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := options{
		pollInterval: defaultPollInterval,
		maxLimit:     defaultMaxLimit,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(statsProvider),
		statusHandler:  NewStatusHandler(deps, o.pollInterval),
		startHandler:   NewStartHandler(deps, o.log),
		publishHandler: NewPublishHandler(deps, o.log),
		scoresHandler:  NewScoresHandler(deps, o.maxLimit, o.log),
		log:            o.log,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /{$}", s.statusHandler.HandlePage},
		{"GET /status", s.statusHandler.HandleStatus},
		{"GET /start", s.startHandler.HandleLegacyStart},
		{"POST /start", s.startHandler.HandleStartSession},
		{"GET /publish", s.publishHandler.HandlePublish},
		{"GET /scores", s.scoresHandler.HandleScores},
		{"GET /stats", s.statsHandler.HandleStats},
		{"GET /healthz", s.healthHandler.HandleHealth},
	}
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, instrument(rt.pattern, rt.handler, s.log))
	}
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
