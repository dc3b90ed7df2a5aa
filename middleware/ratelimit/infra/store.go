package infra

import (
	"sync"
	"time"

	"ecosort-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Store é o limiter alternativo (RATE_ALGORITHM=token-bucket), baseado em
// golang.org/x/time/rate, com um bucket por chave e limpeza periódica.
//
// Ao contrário da SlidingWindow ele suaviza: depois da rajada inicial (burst)
// libera uma requisição a cada 1/rps.
type Store struct {
	mu           sync.Mutex
	entries      map[domain.Key]*storeEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type storeEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

func NewStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[domain.Key]*storeEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStorePerWindow converte "max requisições por janela" para token-bucket:
// burst = max, reposição = max/window.
func NewStorePerWindow(max int, window time.Duration, opts ...StoreOption) *Store {
	return NewStore(float64(max)/window.Seconds(), max, opts...)
}

func (s *Store) RPS() float64                { return float64(s.rps) }
func (s *Store) Burst() int                  { return s.burst }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

// Allow implementa domain.Limiter. rate.Limiter já é seguro para uso concorrente.
func (s *Store) Allow(key domain.Key, now time.Time) bool {
	return s.limiter(key, now).AllowN(now, 1)
}

// RetryIn implementa domain.RetryHinter sem consumir token.
func (s *Store) RetryIn(key domain.Key, now time.Time) time.Duration {
	lim := s.limiter(key, now)
	tokens := lim.TokensAt(now)
	if tokens >= 1 || s.rps <= 0 {
		return 0
	}
	return time.Duration((1 - tokens) / float64(s.rps) * float64(time.Second))
}

func (s *Store) limiter(key domain.Key, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &storeEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *Store) Cleanup(now time.Time) int {
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *Store) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, func() { s.Cleanup(time.Now()) })
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

func startJanitor(ctx DoneContext, every time.Duration, sweep func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sweep()
			}
		}
	}()
}
