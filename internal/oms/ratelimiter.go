package oms

import "github.com/hourline/backtestcore/internal/coretypes"

// RateLimiter is a sliding one-second window event counter.
type RateLimiter struct {
	windowNs      coretypes.Nanos
	maxEvents     int
	events        []coretypes.Nanos
	totalEvents   int64
	droppedEvents int64
}

func NewRateLimiter(maxEvents int) *RateLimiter {
	return &RateLimiter{windowNs: coretypes.NanosPerSecond, maxEvents: maxEvents}
}

func (r *RateLimiter) evict(now coretypes.Nanos) {
	cutoff := now - r.windowNs
	i := 0
	for ; i < len(r.events); i++ {
		if r.events[i] > cutoff {
			break
		}
	}
	r.events = r.events[i:]
}

// TryAcquire reports whether another event is allowed at `now`, recording
// it if so.
func (r *RateLimiter) TryAcquire(now coretypes.Nanos) bool {
	r.evict(now)
	if len(r.events) >= r.maxEvents {
		r.droppedEvents++
		return false
	}
	r.events = append(r.events, now)
	r.totalEvents++
	return true
}

func (r *RateLimiter) Usage() int        { return len(r.events) }
func (r *RateLimiter) Dropped() int64    { return r.droppedEvents }
func (r *RateLimiter) Reset() {
	r.events = nil
	r.totalEvents = 0
	r.droppedEvents = 0
}
