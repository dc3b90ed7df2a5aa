package ratelimit

import (
	"net/http"
	"time"

	"ecosort-gateway/middleware/ratelimit/domain"
)

// windowInfo é exposto pela infra.SlidingWindow.
type windowInfo interface {
	Limit() int
	Window() time.Duration
	Remaining(key domain.Key, now time.Time) int
}

// rateInfo é exposto pela infra.Store (token bucket).
type rateInfo interface {
	RPS() float64
	Burst() int
}

// HeaderOptions controla o que WriteHeaders coloca na resposta.
type HeaderOptions struct {
	Limiter domain.Limiter
	// AddRateLimitHeaders adiciona X-RateLimit-* (debug/observabilidade).
	AddRateLimitHeaders bool
}

// WriteHeaders traduz uma decisão de admissão em headers HTTP.
// Retry-After só é escrito quando a requisição foi negada.
func WriteHeaders(w http.ResponseWriter, opts HeaderOptions, key domain.Key, now time.Time, dec domain.Decision) {
	h := w.Header()
	if !dec.Allowed {
		h.Set("Retry-After", formatSeconds(dec.RetryAfter))
	}
	if !opts.AddRateLimitHeaders || opts.Limiter == nil {
		return
	}

	h.Set("X-RateLimit-Key", string(key))
	switch li := opts.Limiter.(type) {
	case windowInfo:
		h.Set("X-RateLimit-Limit", formatInt(li.Limit()))
		h.Set("X-RateLimit-Window", formatFloat(li.Window().Seconds()))
		h.Set("X-RateLimit-Remaining", formatInt(li.Remaining(key, now)))
	case rateInfo:
		h.Set("X-RateLimit-RPS", formatFloat(li.RPS()))
		h.Set("X-RateLimit-Burst", formatInt(li.Burst()))
	}
}
