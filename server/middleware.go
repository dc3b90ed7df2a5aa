package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

type ctxKey int

const requestIDKey ctxKey = iota

// requestID reaproveita o X-Request-ID do cliente ou gera um UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// observe registra cada requisição no Aggregator e no log de acesso. O
// endpoint é o padrão da rota no chi, para não explodir a cardinalidade.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			d := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			endpoint := routePattern(r)

			s.opts.Metrics.Record(endpoint, r.Method, status, d)
			s.log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"endpoint", endpoint,
				"status", status,
				"duration", d,
				"bytes", ww.BytesWritten(),
				"client", s.opts.KeyFunc(r),
				"request_id", requestIDFrom(r.Context()),
			)
			if d > s.opts.SlowRequest {
				s.slow.Do(func() {
					s.log.Warn("slow request", "method", r.Method, "endpoint", endpoint, "duration", d)
				})
			}
		}()

		next.ServeHTTP(ww, r)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}

func (s *Server) requireMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.opts.Info.MetricsEnabled {
			writeError(w, http.StatusNotFound, "Metrics disabled", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
