package ratelimiter

import (
	"testing"
	"time"
)

func TestAllowPerKey(t *testing.T) {
	l := New(0.001, 2, time.Hour)
	now := time.Unix(1_700_000_000, 0)

	if !l.Allow("addr:0xabc", now) || !l.Allow("addr:0xabc", now) {
		t.Fatal("burst tokens denied")
	}
	if l.Allow("addr:0xabc", now) {
		t.Fatal("exhausted bucket still allowed")
	}
	// Other keys have their own buckets.
	if !l.Allow("group:zksocial_all", now) {
		t.Fatal("independent key denied")
	}
}

func TestNilAndEmptyKeyAllow(t *testing.T) {
	var l *MapLimiter
	if !l.Allow("addr:0xabc", time.Now()) {
		t.Fatal("nil limiter denied")
	}
	if New(0, 0, 0) != nil {
		t.Fatal("invalid args should produce a nil limiter")
	}
	l = New(1, 1, time.Hour)
	if !l.Allow("", time.Now()) || !l.Allow("  ", time.Now()) {
		t.Fatal("empty key denied")
	}
}

func TestRefillOverTime(t *testing.T) {
	l := New(1, 1, time.Hour)
	now := time.Unix(1_700_000_000, 0)
	if !l.Allow("k", now) {
		t.Fatal("first call denied")
	}
	if l.Allow("k", now.Add(100*time.Millisecond)) {
		t.Fatal("bucket refilled too fast")
	}
	if !l.Allow("k", now.Add(1100*time.Millisecond)) {
		t.Fatal("bucket did not refill after a second")
	}
}

func TestIdleEviction(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.Allow("stale", now)

	// Trigger the periodic sweep well past the idle ttl.
	later := now.Add(time.Hour)
	for i := 0; i < evictEvery; i++ {
		l.Allow("active", later)
	}
	l.mu.Lock()
	_, ok := l.byKey["stale"]
	l.mu.Unlock()
	if ok {
		t.Fatal("idle bucket survived eviction")
	}
}
