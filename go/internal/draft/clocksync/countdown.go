package clocksync

import (
	"time"
)

// TickInterval is how often countdowns are re-rendered.
const TickInterval = time.Second

// Countdown renders the remaining pick time. Each Tick recomputes from the
// current deadline and clock, so missed or delayed ticks never accumulate drift.
type Countdown struct {
	sync     *Synchronizer
	deadline *time.Time
}

// NewCountdown creates a countdown reading time through sync.
func NewCountdown(sync *Synchronizer) *Countdown {
	return &Countdown{sync: sync}
}

// SetDeadline swaps the deadline being counted toward. Nil stops the count at 0.
func (c *Countdown) SetDeadline(deadline *time.Time) {
	c.deadline = deadline
}

// Deadline returns the deadline being counted toward.
func (c *Countdown) Deadline() *time.Time { return c.deadline }

// Tick returns the remaining whole seconds right now.
func (c *Countdown) Tick() int {
	return c.sync.Remaining(c.deadline)
}

// PreRound is a relative countdown seeded from an event's delaySeconds.
// It never consults the server offset: it only counts local ticks down to zero.
type PreRound struct {
	roundNumber int
	remaining   int
	active      bool
}

// Seed starts the pre-round count for a round.
func (p *PreRound) Seed(roundNumber, delaySeconds int) {
	if delaySeconds < 0 {
		delaySeconds = 0
	}
	p.roundNumber = roundNumber
	p.remaining = delaySeconds
	p.active = true
}

// Tick advances one local second and returns what is left.
func (p *PreRound) Tick() int {
	if !p.active {
		return 0
	}
	if p.remaining > 0 {
		p.remaining--
	}
	return p.remaining
}

// Clear stops the pre-round count, usually once the round actually starts.
func (p *PreRound) Clear() {
	*p = PreRound{}
}

// Active reports whether a pre-round count is running.
func (p *PreRound) Active() bool { return p.active }

// Remaining returns the seconds left without advancing.
func (p *PreRound) Remaining() int { return p.remaining }

// RoundNumber returns the round the count leads into.
func (p *PreRound) RoundNumber() int { return p.roundNumber }
