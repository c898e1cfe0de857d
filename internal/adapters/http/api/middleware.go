package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/simon-relay/pkg/logger"
	"github.com/okian/simon-relay/pkg/metrics"
)

// instrument records request count and latency for one route. The endpoint
// label comes from the route pattern so GET and POST /start share "start".
// Server errors are logged; client errors only counted.
func instrument(pattern string, next http.HandlerFunc, log logger.Logger) http.HandlerFunc {
	endpoint := endpointLabel(pattern)
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start)
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, float64(elapsed.Milliseconds()))
		if rec.status >= http.StatusInternalServerError {
			log.Warn(r.Context(), "request failed",
				logger.String("endpoint", endpoint),
				logger.String("method", r.Method),
				logger.Int("status", rec.status),
				logger.Duration("elapsed", elapsed))
		}
	}
}

// endpointLabel turns "GET /scores" into "scores" and the root page into
// "index".
func endpointLabel(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		pattern = path
	}
	pattern = strings.TrimSuffix(pattern, "{$}")
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return "index"
	}
	return strings.ReplaceAll(pattern, "/", "_")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
