package infra

import (
	"sort"
	"sync"
	"time"

	"ecosort-gateway/middleware/ratelimit/domain"
)

// SlidingWindow é o limiter padrão do gateway: no máximo `max` requisições
// aceitas por chave dentro da janela móvel `window`.
//
// Diferente do token-bucket (Store), não suaviza rajadas: conta exatamente os
// eventos aceitos no intervalo (now-window, now].
//
// O mapa de chaves tem um lock próprio e curto; cada chave tem seu mutex, então
// clientes diferentes não se bloqueiam.
type SlidingWindow struct {
	mu      sync.Mutex
	entries map[domain.Key]*windowEntry

	max          int
	window       time.Duration
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type windowEntry struct {
	mu       sync.Mutex
	stamps   []time.Time // ordem não decrescente
	lastSeen time.Time
	// evicted indica que o janitor removeu a entrada do mapa.
	// Quem ainda segura o ponteiro precisa buscar de novo.
	evicted bool
}

type WindowOption func(*SlidingWindow)

func WithWindowIdleTTL(d time.Duration) WindowOption {
	return func(s *SlidingWindow) { s.idleTTL = d }
}

func WithWindowCleanupEvery(d time.Duration) WindowOption {
	return func(s *SlidingWindow) { s.cleanupEvery = d }
}

// NewSlidingWindow cria o limiter. max<=0 e window<=0 caem nos padrões (60 em 60s).
func NewSlidingWindow(max int, window time.Duration, opts ...WindowOption) *SlidingWindow {
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	s := &SlidingWindow{
		entries:      make(map[domain.Key]*windowEntry),
		max:          max,
		window:       window,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	// uma chave com timestamps ainda na janela não pode ser removida
	if s.idleTTL < s.window {
		s.idleTTL = s.window
	}
	return s
}

func (s *SlidingWindow) Limit() int                  { return s.max }
func (s *SlidingWindow) Window() time.Duration       { return s.window }
func (s *SlidingWindow) CleanupEvery() time.Duration { return s.cleanupEvery }

// Allow implementa domain.Limiter.
func (s *SlidingWindow) Allow(key domain.Key, now time.Time) bool {
	for {
		ent := s.entry(key, now)

		ent.mu.Lock()
		if ent.evicted {
			ent.mu.Unlock()
			continue
		}
		ent.lastSeen = now
		s.prune(ent, now)
		if len(ent.stamps) >= s.max {
			ent.mu.Unlock()
			return false
		}
		ent.insert(now)
		ent.mu.Unlock()
		return true
	}
}

// RetryIn implementa domain.RetryHinter: quanto falta para o timestamp mais
// antigo sair da janela.
func (s *SlidingWindow) RetryIn(key domain.Key, now time.Time) time.Duration {
	s.mu.Lock()
	ent, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return 0
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	s.prune(ent, now)
	if len(ent.stamps) < s.max {
		return 0
	}
	return ent.stamps[0].Add(s.window).Sub(now)
}

// Remaining devolve quantas requisições a chave ainda tem na janela.
func (s *SlidingWindow) Remaining(key domain.Key, now time.Time) int {
	s.mu.Lock()
	ent, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return s.max
	}

	ent.mu.Lock()
	defer ent.mu.Unlock()
	s.prune(ent, now)
	return s.max - len(ent.stamps)
}

// Len é o número de chaves em memória.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *SlidingWindow) entry(key domain.Key, now time.Time) *windowEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		return ent
	}
	ent := &windowEntry{lastSeen: now, stamps: make([]time.Time, 0, min(s.max, 16))}
	s.entries[key] = ent
	return ent
}

// prune remove o prefixo estritamente mais antigo que now-window.
// Precisa de ent.mu.
func (s *SlidingWindow) prune(ent *windowEntry, now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(ent.stamps) && ent.stamps[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	// copia para não segurar o array antigo indefinidamente
	n := copy(ent.stamps, ent.stamps[i:])
	ent.stamps = ent.stamps[:n]
}

// insert mantém stamps ordenado mesmo quando chamadas concorrentes chegam com
// `now` fora de ordem.
func (e *windowEntry) insert(t time.Time) {
	n := len(e.stamps)
	if n == 0 || !t.Before(e.stamps[n-1]) {
		e.stamps = append(e.stamps, t)
		return
	}
	i := sort.Search(n, func(i int) bool { return e.stamps[i].After(t) })
	e.stamps = append(e.stamps, time.Time{})
	copy(e.stamps[i+1:], e.stamps[i:])
	e.stamps[i] = t
}

// Cleanup remove chaves sem atividade há mais de idleTTL.
//
// O lock do mapa só é segurado para copiar as entradas e para cada delete;
// nunca enquanto espera o lock de uma chave. Ordem: ent.mu, depois s.mu.
func (s *SlidingWindow) Cleanup(now time.Time) int {
	cutoff := now.Add(-s.idleTTL)

	type candidate struct {
		key domain.Key
		ent *windowEntry
	}
	s.mu.Lock()
	all := make([]candidate, 0, len(s.entries))
	for k, ent := range s.entries {
		all = append(all, candidate{k, ent})
	}
	s.mu.Unlock()

	removed := 0
	for _, c := range all {
		c.ent.mu.Lock()
		if !c.ent.evicted && c.ent.lastSeen.Before(cutoff) {
			s.mu.Lock()
			if s.entries[c.key] == c.ent {
				delete(s.entries, c.key)
				removed++
			}
			s.mu.Unlock()
			c.ent.evicted = true
		}
		c.ent.mu.Unlock()
	}
	return removed
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *SlidingWindow) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, func() { s.Cleanup(time.Now()) })
}
