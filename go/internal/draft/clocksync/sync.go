// Package clocksync corrects local time toward the server clock and renders
// pick countdowns from authoritative deadlines.
package clocksync

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Synchronizer maintains offset such that local now + offset ≈ server now.
// It is owned by the session goroutine and is not safe for concurrent use.
type Synchronizer struct {
	clock      clockwork.Clock
	offset     time.Duration
	observedAt time.Time
}

// NewSynchronizer creates a synchronizer with a zero offset.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
func NewSynchronizer(clock clockwork.Clock) *Synchronizer {
	return &Synchronizer{clock: clock}
}

// Observe records an authoritative server start time received just now and
// replaces any previous offset.
func (s *Synchronizer) Observe(serverStart time.Time) time.Duration {
	receipt := s.clock.Now()
	s.offset = serverStart.Sub(receipt)
	s.observedAt = receipt
	return s.offset
}

// Seed adopts an offset measured earlier, typically by the previous phase,
// as if it had been observed now.
func (s *Synchronizer) Seed(offset time.Duration) {
	s.offset = offset
	s.observedAt = s.clock.Now()
}

// Offset returns the current correction.
func (s *Synchronizer) Offset() time.Duration { return s.offset }

// Synced reports whether an authoritative time has been observed yet.
func (s *Synchronizer) Synced() bool { return !s.observedAt.IsZero() }

// ServerNow returns the local clock corrected by the offset.
func (s *Synchronizer) ServerNow() time.Time {
	return s.clock.Now().Add(s.offset)
}

// Remaining returns the whole seconds left until deadline on the server clock.
func (s *Synchronizer) Remaining(deadline *time.Time) int {
	return Remaining(deadline, s.clock.Now(), s.offset)
}

// Remaining computes max(0, floor((deadline - (now + offset)) / 1s)).
// A nil deadline has nothing left.
func Remaining(deadline *time.Time, now time.Time, offset time.Duration) int {
	if deadline == nil {
		return 0
	}
	left := deadline.Sub(now.Add(offset))
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}
