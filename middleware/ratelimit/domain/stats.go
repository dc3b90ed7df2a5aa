package domain

import (
	"context"
	"time"
)

// StatsEvent registra uma decisão de admissão (permitido ou negado).
//
// Method/Endpoint são strings genéricas; o endpoint deve ser o padrão da rota
// (ex.: "/classify-text") e não o path bruto.
//
// Observação: cuidado com cardinalidade. Guardar Key por cliente pode explodir
// o número de chaves no Redis, por isso é opcional nos stores.
type StatsEvent struct {
	Key     Key
	Allowed bool

	Method   string
	Endpoint string

	At time.Time
}

// StatsStore persiste estatísticas de admissão (memória, Redis...).
//
// Quem chama trata erro como best-effort: falha aqui nunca derruba a requisição.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
