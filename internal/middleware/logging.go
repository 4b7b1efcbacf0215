package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/openquant/tradehook/internal/metrics"
	"github.com/openquant/tradehook/pkg/logger"
)

// responseWriter captures the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Logging logs every request with its outcome and latency.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w}

			next.ServeHTTP(rw, r)

			status := rw.status
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithFields(map[string]interface{}{
				"method":  r.Method,
				"path":    r.URL.Path,
				"status":  status,
				"elapsed": time.Since(start).String(),
				"client":  clientIP(r),
			})
			if status >= http.StatusInternalServerError {
				entry.Error("request failed")
			} else {
				entry.Info("request handled")
			}
		})
	}
}

// Instrument records request metrics. The path label uses the route pattern
// where available and the raw path otherwise, which keeps label cardinality
// bounded because all routes are fixed or single-segment.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := m.TrackInFlight()
			defer done()

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w}

			next.ServeHTTP(rw, r)

			status := rw.status
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(r.Method, routeLabel(r.URL.Path), status, time.Since(start))
		})
	}
}

// routeLabel collapses parameterized paths to their route shape.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/account/position/"):
		return "/account/position/{symbol}"
	case strings.HasPrefix(path, "/accounts/"):
		return "/accounts/{id}"
	case strings.HasPrefix(path, "/users/") && path != "/users/":
		return "/users/{username}"
	default:
		return path
	}
}

// CORS answers preflight requests and tags responses for browser clients.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Chain applies middlewares left to right: the first wraps outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
