package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			calls:    5,
			wantPass: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow("10.0.0.1") {
					passed++
				}
			}
			if passed != tt.wantPass {
				t.Errorf("passed %d requests, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	// Exhaust one client.
	rl.Allow("10.0.0.1")
	if rl.Allow("10.0.0.1") {
		t.Error("10.0.0.1 should be exhausted")
	}

	// Another client is unaffected.
	if !rl.Allow("10.0.0.2") {
		t.Error("10.0.0.2 should be independent and allowed")
	}
}

func TestKeyedRateLimiter_WaitContextCancel(t *testing.T) {
	rl := New(0.1, 1)
	defer rl.Stop()

	rl.Allow("10.0.0.1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx, "10.0.0.1"); err == nil {
		t.Error("Wait() should fail when context canceled")
	}
}

func TestKeyedRateLimiter_EntryEviction(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	rl.Allow("10.0.0.1")

	// Backdate the entry past the TTL and run one eviction pass by hand.
	rl.mu.Lock()
	rl.entries["10.0.0.1"].lastSeen = time.Now().Add(-2 * entryTTL)
	cutoff := time.Now().Add(-entryTTL)
	for key, e := range rl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(rl.entries, key)
		}
	}
	remaining := len(rl.entries)
	rl.mu.Unlock()

	if remaining != 0 {
		t.Errorf("expected idle entry to be evicted, %d remain", remaining)
	}
}
