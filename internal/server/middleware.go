package server

import (
	"net/http"
	"strconv"
	"time"
)

// statusRecorder captures the response status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request count, duration and in-flight gauge per route
// pattern. Without metrics configured it passes requests through untouched.
func (s *Server) instrument(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		s.metrics.HTTPRequestsInFlight.WithLabelValues(r.Method).Inc()
		next.ServeHTTP(rec, r)
		s.metrics.HTTPRequestsInFlight.WithLabelValues(r.Method).Dec()

		// r.Pattern is populated by the mux once a route matched.
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}

		s.metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
