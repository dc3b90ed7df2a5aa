package application

import (
	"math"
	"time"

	"ecosort-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação da admissão por cliente.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Limiter domain.Limiter
	// RetryAfter fixo. Se 0, usa a dica do limiter (RetryHinter) e, sem dica, 1s.
	RetryAfter time.Duration
}

func (s Service) Decide(key domain.Key, now time.Time) domain.Decision {
	if s.Limiter == nil {
		return domain.Decision{Allowed: true}
	}
	if s.Limiter.Allow(key, now) {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: s.retryAfter(key, now)}
}

func (s Service) retryAfter(key domain.Key, now time.Time) time.Duration {
	if s.RetryAfter > 0 {
		return s.RetryAfter
	}
	if h, ok := s.Limiter.(domain.RetryHinter); ok {
		// arredonda para cima: Retry-After trabalha em segundos inteiros
		if d := h.RetryIn(key, now); d > 0 {
			return time.Duration(math.Ceil(d.Seconds())) * time.Second
		}
	}
	return 1 * time.Second
}
