package oms

import (
	"testing"

	"github.com/hourline/backtestcore/internal/coretypes"
)

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	t.Parallel()

	r := NewRateLimiter(3)
	for i := 0; i < 3; i++ {
		if !r.TryAcquire(0) {
			t.Fatalf("acquire %d should be allowed within the cap", i)
		}
	}
	if r.TryAcquire(0) {
		t.Error("4th acquire in the same instant should be rejected")
	}
	if got, want := r.Dropped(), int64(1); got != want {
		t.Errorf("Dropped() = %d, want %d", got, want)
	}
}

func TestRateLimiterSlidesWindow(t *testing.T) {
	t.Parallel()

	r := NewRateLimiter(2)
	if !r.TryAcquire(0) || !r.TryAcquire(1) {
		t.Fatal("first two acquires should be allowed")
	}
	if r.TryAcquire(2) {
		t.Error("3rd acquire still inside the 1s window should be rejected")
	}
	// Past the one-second window, the earliest events should have expired.
	if !r.TryAcquire(coretypes.Nanos(1_000_000_001)) {
		t.Error("acquire past the window should be allowed once old events evict")
	}
}

func TestRateLimiterReset(t *testing.T) {
	t.Parallel()

	r := NewRateLimiter(1)
	if !r.TryAcquire(0) {
		t.Fatal("first acquire should be allowed")
	}
	r.Reset()
	if !r.TryAcquire(0) {
		t.Error("acquire after Reset should be allowed again")
	}
	if r.Dropped() != 0 {
		t.Error("Reset should clear the dropped counter")
	}
}
