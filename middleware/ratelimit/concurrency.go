package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"ecosort-gateway/middleware/ratelimit/application"
	"ecosort-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// OnReject é chamado quando não há vaga (ex.: contabilizar no monitoring).
	OnReject func(r *http.Request)
	// Reject escreve a resposta de rejeição. Padrão: http.Error com RejectStatus.
	Reject http.HandlerFunc
	Logger *slog.Logger
}

// ConcurrencyMiddleware limita quantas requisições ficam em processamento.
// Max <= 0 desliga o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Reject == nil {
		status := opts.RejectStatus
		opts.Reject = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(status), status)
		}
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				opts.Logger.Warn("concurrency limit reached", "method", r.Method, "path", r.URL.Path, "max", opts.Max)
				if opts.OnReject != nil {
					opts.OnReject(r)
				}
				opts.Reject(w, r)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
