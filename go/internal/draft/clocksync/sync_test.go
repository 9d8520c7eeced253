package clocksync

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestSynchronizer_OffsetFromServerStart(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))
	s := NewSynchronizer(clock)
	assert.False(t, s.Synced())

	receipt := clock.Now()
	serverStart := receipt.Add(5000 * time.Millisecond)
	offset := s.Observe(serverStart)

	assert.Equal(t, 5*time.Second, offset)
	assert.True(t, s.Synced())
	assert.True(t, s.ServerNow().Equal(serverStart))

	clock.Advance(time.Second)
	deadline := serverStart.Add(6 * time.Second)
	assert.Equal(t, 5, s.Remaining(&deadline))
}

func TestSynchronizer_LatestObservationWins(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSynchronizer(clock)

	s.Observe(clock.Now().Add(10 * time.Second))
	s.Observe(clock.Now().Add(-2 * time.Second))

	assert.Equal(t, -2*time.Second, s.Offset())
}

func TestSynchronizer_SeedCarriesOffset(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSynchronizer(clock)

	s.Seed(5 * time.Second)
	assert.True(t, s.Synced())
	assert.Equal(t, 5*time.Second, s.Offset())

	deadline := clock.Now().Add(30 * time.Second)
	assert.Equal(t, 25, s.Remaining(&deadline))

	s.Observe(clock.Now().Add(time.Second))
	assert.Equal(t, time.Second, s.Offset())
}

func TestRemaining(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := now.Add(d); return &v }

	cases := []struct {
		name     string
		deadline *time.Time
		offset   time.Duration
		want     int
	}{
		{"nil deadline", nil, 0, 0},
		{"floors partial seconds", at(9900 * time.Millisecond), 0, 9},
		{"offset ahead of server", at(10 * time.Second), 3 * time.Second, 7},
		{"offset behind server", at(10 * time.Second), -3 * time.Second, 13},
		{"past deadline clamps", at(-time.Second), 0, 0},
		{"exactly now", at(0), 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Remaining(tc.deadline, now, tc.offset))
		})
	}
}

func TestCountdown_SelfCorrectsAfterMissedTicks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSynchronizer(clock)
	c := NewCountdown(s)

	deadline := clock.Now().Add(30 * time.Second)
	c.SetDeadline(&deadline)
	assert.Equal(t, 30, c.Tick())

	// the host was suspended for 12s; no intermediate ticks ran
	clock.Advance(12 * time.Second)
	assert.Equal(t, 18, c.Tick())

	c.SetDeadline(nil)
	assert.Equal(t, 0, c.Tick())
}

func TestPreRound(t *testing.T) {
	var p PreRound
	assert.False(t, p.Active())
	assert.Equal(t, 0, p.Tick())

	p.Seed(2, 3)
	assert.True(t, p.Active())
	assert.Equal(t, 2, p.RoundNumber())
	assert.Equal(t, 3, p.Remaining())
	assert.Equal(t, 2, p.Tick())
	assert.Equal(t, 1, p.Tick())
	assert.Equal(t, 0, p.Tick())
	assert.Equal(t, 0, p.Tick())

	p.Clear()
	assert.False(t, p.Active())

	p.Seed(3, -4)
	assert.Equal(t, 0, p.Remaining())
}
