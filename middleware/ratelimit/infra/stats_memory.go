package infra

import (
	"context"
	"maps"
	"sync"

	"ecosort-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// AdmissionStats é a foto das estatísticas de admissão servida em /metrics.
type AdmissionStats struct {
	Total      Counters            `json:"total"`
	ByEndpoint map[string]Counters `json:"by_endpoint"`
	ByKey      map[string]Counters `json:"by_key,omitempty"`
}

// MemoryStatsStore guarda as decisões de admissão em memória.
// É o padrão quando RATE_STATS_ENABLED=false.
//
// Não faz expiração; com trackKeys=true cresce com o número de clientes.
type MemoryStatsStore struct {
	mu         sync.Mutex
	total      Counters
	byEndpoint map[string]Counters
	byKey      map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byEndpoint: make(map[string]Counters),
		byKey:      make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Endpoint

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	c := s.byEndpoint[route]
	c.add(ev.Allowed)
	s.byEndpoint[route] = c

	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.add(ev.Allowed)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Snapshot devolve cópias; o chamador pode serializar sem segurar o lock.
func (s *MemoryStatsStore) Snapshot() AdmissionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := AdmissionStats{
		Total:      s.total,
		ByEndpoint: maps.Clone(s.byEndpoint),
	}
	if s.trackKeys {
		out.ByKey = maps.Clone(s.byKey)
	}
	return out
}
