package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"ecosort-gateway/middleware/ratelimit"
	"ecosort-gateway/middleware/ratelimit/domain"
	"ecosort-gateway/monitoring"
	"ecosort-gateway/pipeline"
)

const (
	ServiceName    = "EcoSort AI Waste Classifier"
	ServiceVersion = "1.0.0"

	defaultSlowRequest = 2 * time.Second
	maxTextBody        = 1 << 20
	multipartOverhead  = 1 << 20
)

// Info descreve o serviço em GET / e nas mensagens de erro.
type Info struct {
	Environment        string
	APIKeyEnabled      bool
	RateLimitEnabled   bool
	RateLimitPerMinute int
	MetricsEnabled     bool
	MaxFileSize        int64
}

// Options reúne os colaboradores do servidor. Pipeline e Metrics são
// obrigatórios; o resto é opcional.
type Options struct {
	Info     Info
	Pipeline *pipeline.Pipeline
	Metrics  *monitoring.Aggregator
	Health   *monitoring.HealthChecker
	Alerts   *monitoring.AlertManager

	// Limiter é usado só para os headers X-RateLimit-*.
	Limiter             domain.Limiter
	AddRateLimitHeaders bool
	KeyFunc             ratelimit.KeyFunc

	// AdmissionReport alimenta a seção "admission" de /metrics.
	AdmissionReport func(ctx context.Context) (any, error)
	// Prometheus serve /metrics/prometheus quando definido.
	Prometheus http.Handler

	Concurrency ratelimit.ConcurrencyOptions
	SlowRequest time.Duration
	Logger      *slog.Logger
}

type Server struct {
	opts Options
	log  *slog.Logger
	slow rate.Sometimes
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = ratelimit.DefaultKeyFunc("", true)
	}
	if opts.SlowRequest <= 0 {
		opts.SlowRequest = defaultSlowRequest
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewAggregator(monitoring.WithLogger(opts.Logger))
	}
	return &Server{
		opts: opts,
		log:  opts.Logger,
		slow: rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// Handler monta o roteador com toda a cadeia de middlewares.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	conc := s.opts.Concurrency
	conc.Logger = s.log
	if conc.Reject == nil {
		conc.Reject = func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusServiceUnavailable, "Service unavailable", "Too many requests in flight")
		}
	}
	r.Use(ratelimit.ConcurrencyMiddleware(conc))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})

	r.Get("/", s.handleInfo)
	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", handleReady)
	r.Get("/health/live", handleLive)

	r.Post("/classify-text", s.handleClassifyText)
	r.Post("/classify-image", s.handleClassifyImage)

	r.Group(func(r chi.Router) {
		r.Use(s.requireMetrics)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/alerts", s.handleAlerts)
		if s.opts.Prometheus != nil {
			r.Method(http.MethodGet, "/metrics/prometheus", s.opts.Prometheus)
		}
	})

	return r
}
