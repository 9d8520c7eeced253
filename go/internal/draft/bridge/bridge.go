// Package bridge subscribes a client session to its match's push events and
// turns them into refreshes, clock corrections and the one-shot round handoff.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

// ErrMissingCredentials is returned by Join when no session token is available.
// The session keeps working pull-only.
var ErrMissingCredentials = errors.New("missing session credentials")

// State is the bridge lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateJoined    State = "joined"
	StateListening State = "listening"
	StateHandedOff State = "handed_off"
	StateClosed    State = "closed"
)

// Host is what the bridge drives. All calls happen on the owner's goroutine.
type Host interface {
	// ApplySnapshot hot-applies an optimistic snapshot embedded in an event.
	ApplySnapshot(snap models.Snapshot)
	// RefreshRoundState refetches the authoritative round snapshot.
	RefreshRoundState()
	// RefreshPickable refetches the pick-eligible entity list.
	RefreshPickable()
	// ObserveServerStart corrects the clock offset from an authoritative start time.
	ObserveServerStart(serverStart time.Time)
	// SeedPreRound starts a relative pre-round countdown.
	SeedPreRound(roundNumber, delaySeconds int)
	// HandOff passes the round-start payload to the next phase.
	HandOff(payload events.RoundStartPayload)
}

// Session identifies who is listening to which match.
type Session struct {
	MatchID string
	UserID  string
	Creds   Credentials
}

// Bridge is the push-event state machine for one match session.
// Deliveries from the transport are forwarded through deliver so that Dispatch
// always runs on the owner's goroutine; the bridge itself holds no locks.
type Bridge struct {
	channel     PushChannel
	session     Session
	host        Host
	deliver     Handler
	state       State
	memberships []Membership
}

// New creates a bridge in the idle state. deliver must hand envelopes to the
// goroutine that calls Dispatch.
func New(channel PushChannel, session Session, host Host, deliver Handler) *Bridge {
	return &Bridge{
		channel: channel,
		session: session,
		host:    host,
		deliver: deliver,
		state:   StateIdle,
	}
}

// State returns the current lifecycle state.
func (b *Bridge) State() State { return b.state }

// Scopes returns the broadcast and targeted scopes of the session.
func (b *Bridge) Scopes() []events.Scope {
	return []events.Scope{
		{MatchID: b.session.MatchID},
		{MatchID: b.session.MatchID, UserID: b.session.UserID},
	}
}

// Join subscribes to both scopes and starts listening.
func (b *Bridge) Join(ctx context.Context) error {
	if b.state != StateIdle {
		return nil
	}
	if b.channel == nil || b.session.Creds.Token == "" || b.session.MatchID == "" || b.session.UserID == "" {
		return ErrMissingCredentials
	}

	for _, scope := range b.Scopes() {
		m, err := b.channel.Join(ctx, scope, b.session.Creds)
		if err != nil {
			b.leaveAll()
			return fmt.Errorf("join scope %s: %w", scope, err)
		}
		b.memberships = append(b.memberships, m)
	}
	b.state = StateJoined

	for _, m := range b.memberships {
		for _, t := range events.AllEventTypes {
			m.On(t, b.deliver)
		}
	}
	b.state = StateListening

	log.Info().
		Str("match_id", b.session.MatchID).
		Str("user_id", b.session.UserID).
		Msg("event bridge listening")
	return nil
}

// Dispatch handles one delivered envelope.
func (b *Bridge) Dispatch(env events.Envelope) {
	if b.state != StateListening {
		log.Debug().
			Str("event_type", string(env.EventType)).
			Str("state", string(b.state)).
			Msg("event bridge not listening - dropping event")
		return
	}
	if env.MatchID != "" && env.MatchID != b.session.MatchID {
		log.Debug().
			Str("event_match_id", env.MatchID).
			Str("match_id", b.session.MatchID).
			Msg("stale event for another match - ignoring")
		return
	}

	payload, err := events.ParsePayload(env)
	if err != nil {
		log.Warn().Err(err).Str("event_id", env.EventID).Msg("failed to parse event payload")
		return
	}

	switch p := payload.(type) {
	case events.PickMadePayload:
		b.handlePickMade(p)
	case events.RoundPreStartPayload:
		b.handleRoundPreStart(p)
	case events.RoundStartPayload:
		b.handleRoundStart(p)
	}
}

func (b *Bridge) handlePickMade(p events.PickMadePayload) {
	if p.MatchID != b.session.MatchID {
		log.Debug().Str("event_match_id", p.MatchID).Msg("stale pick-made - ignoring")
		return
	}
	if p.Data != nil && p.Data.Match.ID == b.session.MatchID {
		b.host.ApplySnapshot(*p.Data)
	}
	b.host.RefreshRoundState()
	b.host.RefreshPickable()
}

func (b *Bridge) handleRoundPreStart(p events.RoundPreStartPayload) {
	if p.MatchID != "" && p.MatchID != b.session.MatchID {
		log.Debug().Str("event_match_id", p.MatchID).Msg("stale round-pre-start - ignoring")
		return
	}
	if p.StartTime != nil {
		b.host.ObserveServerStart(*p.StartTime)
	}
	if p.DelaySeconds != nil && p.RoundNumber != nil {
		b.host.SeedPreRound(*p.RoundNumber, *p.DelaySeconds)
		b.host.RefreshRoundState()
	}
}

// handleRoundStart fires at most once. The handler is dropped from every
// membership before acting, and the state guard covers deliveries already in flight.
func (b *Bridge) handleRoundStart(p events.RoundStartPayload) {
	if p.MatchID != "" && p.MatchID != b.session.MatchID {
		return
	}
	if b.state == StateHandedOff {
		return
	}
	for _, m := range b.memberships {
		m.Off(events.EventTypeRoundStart)
	}
	b.state = StateHandedOff

	if p.StartTime != nil {
		b.host.ObserveServerStart(*p.StartTime)
	}

	roundNumber := 0
	if p.Round != nil {
		roundNumber = p.Round.RoundNumber
	}
	log.Info().
		Str("match_id", b.session.MatchID).
		Int("round_number", roundNumber).
		Msg("round started - handing off")

	b.host.HandOff(p)
}

// Close unsubscribes every event type and leaves both scopes.
func (b *Bridge) Close() {
	b.leaveAll()
	b.state = StateClosed
}

func (b *Bridge) leaveAll() {
	for _, m := range b.memberships {
		for _, t := range events.AllEventTypes {
			m.Off(t)
		}
		if err := m.Leave(); err != nil {
			log.Warn().Err(err).Str("scope", m.Scope().String()).Msg("failed to leave scope")
		}
	}
	b.memberships = nil
}
