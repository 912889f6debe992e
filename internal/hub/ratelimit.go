package hub

import "time"

const (
	bucketCapacity = 100
	bucketWindow   = 10 * time.Second
)

// rateLimiter is a fixed-window token bucket owned by a single
// connection's read goroutine, so it needs no locking. Bursts up to the
// full capacity are allowed at window boundaries and unused tokens do not
// carry over.
type rateLimiter struct {
	capacity    int
	window      time.Duration
	remaining   int
	windowStart time.Time
	now         func() time.Time
}

func newRateLimiter(capacity int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
	rl.remaining = capacity
	rl.windowStart = rl.now()

	return rl
}

// admit reports whether an inbound frame may be processed, consuming a
// token when it is. Rejected frames are dropped silently by the caller.
func (rl *rateLimiter) admit() bool {
	if rl.now().Sub(rl.windowStart) > rl.window {
		rl.remaining = rl.capacity
		rl.windowStart = rl.now()
	}

	// treat an already-empty bucket as reject rather than wrapping
	if rl.remaining <= 0 {
		return false
	}

	rl.remaining--
	return true
}
