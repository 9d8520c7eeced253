package orchestrator

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// alreadyScheduled reports whether key is what the match is already waiting on.
func (o *Orchestrator) alreadyScheduled(matchID string, key scheduleKey) bool {
	o.lastScheduledMu.Lock()
	defer o.lastScheduledMu.Unlock()
	last, exists := o.lastScheduled[matchID]
	return exists && last.equal(key)
}

func (k scheduleKey) equal(other scheduleKey) bool {
	return k.roundNumber == other.roundNumber && k.waitingOn == other.waitingOn && k.at.Equal(other.at)
}

// schedule arms a one-shot timer that queues t at the given time. A repeat
// call with the same key is a no-op; a different key replaces the timer.
func (o *Orchestrator) schedule(matchID string, key scheduleKey, at time.Time, t task) {
	o.lastScheduledMu.Lock()
	if last, exists := o.lastScheduled[matchID]; exists && last.equal(key) {
		o.lastScheduledMu.Unlock()
		log.Debug().
			Str("match_id", matchID).
			Time("at", at).
			Msg("skipping duplicate schedule")
		return
	}
	o.lastScheduled[matchID] = key
	o.lastScheduledMu.Unlock()

	duration := at.Sub(o.clock.Now())
	if duration < 0 {
		duration = 0
	}
	st := scheduledTimer{timer: o.clock.NewTimer(duration), cancel: make(chan struct{})}
	o.replaceTimer(matchID, st)

	go func(id string, st scheduledTimer) {
		select {
		case <-st.timer.Chan():
			o.removeTimer(id, st)
			select {
			case o.workCh <- t:
				log.Debug().Str("match_id", id).Msg("timer fired - enqueued for processing")
			case <-o.done:
			}
		case <-st.cancel:
		case <-o.done:
		}
	}(matchID, st)

	log.Debug().
		Str("match_id", matchID).
		Int("round_number", key.roundNumber).
		Str("waiting_on", key.waitingOn).
		Time("deadline", at).
		Dur("duration", duration).
		Msg("scheduled one-shot timer")
}

// replaceTimer swaps in a new timer for a match, cancelling the old one.
func (o *Orchestrator) replaceTimer(matchID string, st scheduledTimer) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	if existing, exists := o.activeTimers[matchID]; exists {
		stopAndDrainTimer(existing.timer)
		close(existing.cancel)
		log.Debug().Str("match_id", matchID).Msg("replaced existing timer")
	}
	o.activeTimers[matchID] = st
}

// stopAndDrainTimer stops a timer and drains a pending fire.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// cancelTimer cancels and removes the active timer for a match.
func (o *Orchestrator) cancelTimer(matchID string) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()

	if st, exists := o.activeTimers[matchID]; exists {
		stopAndDrainTimer(st.timer)
		close(st.cancel)
		delete(o.activeTimers, matchID)
		log.Debug().Str("match_id", matchID).Msg("cancelled existing timer")
	}
}

// removeTimer drops st from the active map after it fired, unless it was
// already replaced.
func (o *Orchestrator) removeTimer(matchID string, st scheduledTimer) {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	if current, ok := o.activeTimers[matchID]; ok && current.cancel == st.cancel {
		delete(o.activeTimers, matchID)
	}
}

func (o *Orchestrator) clearScheduled(matchID string) {
	o.lastScheduledMu.Lock()
	delete(o.lastScheduled, matchID)
	o.lastScheduledMu.Unlock()
}

// forget drops all clock state for a finished match.
func (o *Orchestrator) forget(matchID string) {
	o.cancelTimer(matchID)
	o.clearScheduled(matchID)
}

// ActiveTimers returns how many matches have an armed timer.
func (o *Orchestrator) ActiveTimers() int {
	o.activeTimersMu.Lock()
	defer o.activeTimersMu.Unlock()
	return len(o.activeTimers)
}
