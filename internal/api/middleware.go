package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// statusRecorder keeps the status code and still lets SSE handlers flush.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// LogMiddleware logs every request and records request metrics labelled by
// the matched route pattern.
func LogMiddleware(l *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		metricRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		metricRequestMS.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
		args := []any{"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", elapsed}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			args = append(args, "trace_id", sc.TraceID().String())
		}
		l.Info("request", args...)
	})
}
