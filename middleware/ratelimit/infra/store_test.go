package infra

import (
	"testing"
	"time"

	"ecosort-gateway/middleware/ratelimit/domain"
)

func TestStore_SameKeySharesBucket(t *testing.T) {
	s := NewStore(0.02, 1)
	now := time.Now()

	if !s.Allow(domain.Key("k"), now) {
		t.Fatalf("expected first Allow to be true")
	}
	if s.Allow(domain.Key("k"), now) {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
	if !s.Allow(domain.Key("other"), now) {
		t.Fatalf("expected a different key to have its own bucket")
	}
}

func TestStore_RefillsAfterInterval(t *testing.T) {
	s := NewStore(1, 1)
	now := time.Now()

	if !s.Allow("k", now) {
		t.Fatalf("expected first Allow to be true")
	}
	if s.Allow("k", now.Add(500*time.Millisecond)) {
		t.Fatalf("expected Allow to be false before refill")
	}
	if !s.Allow("k", now.Add(1100*time.Millisecond)) {
		t.Fatalf("expected Allow to be true after refill")
	}
}

func TestStore_PerWindowConversion(t *testing.T) {
	s := NewStorePerWindow(60, time.Minute)
	if s.Burst() != 60 {
		t.Fatalf("expected burst=60, got %d", s.Burst())
	}
	if s.RPS() != 1 {
		t.Fatalf("expected rps=1, got %v", s.RPS())
	}
}

func TestStore_RetryInReportsRefillTime(t *testing.T) {
	s := NewStore(0.5, 1)
	now := time.Now()

	if got := s.RetryIn("k", now); got != 0 {
		t.Fatalf("expected no wait for fresh key, got %s", got)
	}
	s.Allow("k", now)
	got := s.RetryIn("k", now)
	if got < 1900*time.Millisecond || got > 2*time.Second {
		t.Fatalf("expected ~2s wait, got %s", got)
	}
}

func TestStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewStore(0.02, 1, WithIdleTTL(time.Minute), WithCleanupEvery(0))
	now := time.Now()

	s.Allow("k", now)
	if s.Allow("k", now) {
		t.Fatalf("expected bucket to be empty")
	}

	if n := s.Cleanup(now.Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 entry removed, got %d", n)
	}

	// bucket recriado: volta a ter burst cheio
	if !s.Allow("k", now.Add(2*time.Minute)) {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}
