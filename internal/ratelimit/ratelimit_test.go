package ratelimit

import (
	"testing"
	"time"
)

func TestNew_Burst(t *testing.T) {
	tests := []struct {
		rpm   int
		burst int
	}{
		{600, 60},
		{60, 6},
		{5, 1},
	}
	for _, tt := range tests {
		l := New(tt.rpm)
		now := time.Now()
		allowed := 0
		for i := 0; i < tt.burst+5; i++ {
			if l.AllowAt(now) {
				allowed++
			}
		}
		if allowed != tt.burst {
			t.Errorf("New(%d) burst = %d, want %d", tt.rpm, allowed, tt.burst)
		}
	}
}

func TestKeyed_IsolatesClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	k := NewKeyed(10, time.Minute)
	k.now = func() time.Time { return now }

	if !k.Allow("a") {
		t.Fatal("first request of a should pass")
	}
	if k.Allow("a") {
		t.Fatal("second request of a should exceed burst 1")
	}
	if !k.Allow("b") {
		t.Fatal("b has its own bucket")
	}

	// 10 rpm refills one token every 6s
	now = now.Add(6 * time.Second)
	if !k.Allow("a") {
		t.Fatal("a should have refilled")
	}
}

func TestKeyed_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	k := NewKeyed(60, time.Minute)
	k.now = func() time.Time { return now }

	k.Allow("old")
	now = now.Add(45 * time.Second)
	k.Allow("fresh")
	now = now.Add(30 * time.Second)

	if removed := k.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if k.Len() != 1 {
		t.Errorf("Len() = %d, want 1", k.Len())
	}
}
