package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica o cliente (IP, X-Forwarded-For, API key...). É opaca: só serve
// como chave de mapa.
type Key string

// Limiter decide se uma requisição da chave pode passar no instante `now`.
//
// A decisão precisa ser atômica por chave: duas chamadas simultâneas para uma
// chave no limite não podem ser ambas aceitas.
// A implementação pode ser janela deslizante, token-bucket, etc.
type Limiter interface {
	Allow(key Key, now time.Time) bool
}

// RetryHinter é opcional. Quando o Limiter sabe quando a chave volta a ter
// vaga, a camada application usa isso no Retry-After.
type RetryHinter interface {
	RetryIn(key Key, now time.Time) time.Duration
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
