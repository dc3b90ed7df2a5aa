// Package ratelimit fornece as peças HTTP (net/http) da admissão por cliente e do
// limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela deslizante, token bucket, semáforo, stats)
//   - ratelimit (este pacote): extração da chave do cliente, middleware de concorrência
//     e tradução da decisão para headers (Retry-After, X-RateLimit-*)
//
// A decisão de admissão em si roda como etapa do pipeline de classificação
// (pacote pipeline), depois da checagem de API key.
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_LIMIT_PER_MINUTE, RATE_WINDOW, RATE_ALGORITHM, CONCURRENCY_MAX e
// CONCURRENCY_TIMEOUT.
package ratelimit
