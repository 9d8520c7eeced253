// Package session coordinates one user's live view of one match: it pulls
// round state, listens for pushed events and drives the pick countdown.
// All state is owned by the goroutine running Run; other goroutines talk to
// it through the inbox.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/draft/bridge"
	"github.com/mcdev12/matchdraft/go/internal/draft/clocksync"
	"github.com/mcdev12/matchdraft/go/internal/draft/events"
	"github.com/mcdev12/matchdraft/go/internal/draft/roundstate"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

var (
	ErrClosed           = errors.New("session closed")
	ErrNotReady         = errors.New("round state not loaded yet")
	ErrPickInFlight     = errors.New("a pick is already being submitted")
	ErrNotYourTurn      = errors.New("not your turn to pick")
	ErrEntityNotAllowed = errors.New("entity cannot be picked")
)

// MatchClient is the pull side of the match API.
type MatchClient interface {
	GetRoundState(ctx context.Context, matchID string) (*models.Snapshot, error)
	ListPickableEntities(ctx context.Context, matchID, userID string) ([]models.Entity, error)
	SubmitPick(ctx context.Context, round models.RoundRef, entityID string) (*models.Snapshot, error)
}

// Config holds session parameters.
type Config struct {
	MatchID       string
	UserID        string
	Token         string
	FetchTimeout  time.Duration
	SubmitTimeout time.Duration
	InboxSize     int
	// Resume is the previous phase's handoff. Its clock offset is kept until
	// a newer server start time supersedes it.
	Resume *Handoff
}

// Handoff is what a finished phase passes to the next one.
type Handoff struct {
	Start       events.RoundStartPayload
	ClockOffset time.Duration
	ClockSynced bool
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() Config {
	return Config{
		FetchTimeout:  10 * time.Second,
		SubmitTimeout: 15 * time.Second,
		InboxSize:     64,
	}
}

type pendingPick struct {
	ref       models.RoundRef
	entityID  string
	submitted bool
}

// Session is the per-match coordinator.
type Session struct {
	config Config
	client MatchClient
	clock  clockwork.Clock
	bridge *bridge.Bridge

	merger    *roundstate.Merger
	sync      *clocksync.Synchronizer
	countdown *clocksync.Countdown
	preRound  clocksync.PreRound

	state     *roundstate.State
	turn      roundstate.TurnContext
	pickable  []models.Entity
	pending   *pendingPick
	pullOnly  bool
	handedOff bool

	stateSeq        uint64
	stateAppliedSeq uint64
	pickableSeq     uint64

	ctx     context.Context
	inbox   chan msg
	updates chan View
	notices chan Notice
	handoff chan Handoff
	done    chan struct{}
}

// New creates a session. channel may be nil, in which case the session runs
// pull-only.
func New(config Config, client MatchClient, channel bridge.PushChannel, clock clockwork.Clock) *Session {
	if config.InboxSize <= 0 {
		config.InboxSize = DefaultSessionConfig().InboxSize
	}
	sync := clocksync.NewSynchronizer(clock)
	if config.Resume != nil && config.Resume.ClockSynced {
		sync.Seed(config.Resume.ClockOffset)
	}
	s := &Session{
		config:    config,
		client:    client,
		clock:     clock,
		merger:    roundstate.NewMerger(config.UserID),
		sync:      sync,
		countdown: clocksync.NewCountdown(sync),
		ctx:       context.Background(),
		inbox:     make(chan msg, config.InboxSize),
		updates:   make(chan View, 1),
		notices:   make(chan Notice, 16),
		handoff:   make(chan Handoff, 1),
		done:      make(chan struct{}),
	}
	s.bridge = bridge.New(channel, bridge.Session{
		MatchID: config.MatchID,
		UserID:  config.UserID,
		Creds:   bridge.Credentials{Token: config.Token},
	}, host{s}, s.deliver)
	return s
}

// Updates streams the latest view. Stale views are replaced, never queued.
func (s *Session) Updates() <-chan View { return s.updates }

// Notices streams non-fatal conditions.
func (s *Session) Notices() <-chan Notice { return s.notices }

// Handoff yields the round-start payload and the clock offset once the
// phase ends. Pass it as Config.Resume to the next phase.
func (s *Session) Handoff() <-chan Handoff { return s.handoff }

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run joins the push channel, performs the initial pulls and processes
// messages until ctx is cancelled or the phase is handed off.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer close(s.done)
	defer s.bridge.Close()

	if err := s.bridge.Join(ctx); err != nil {
		s.pullOnly = true
		if errors.Is(err, bridge.ErrMissingCredentials) {
			log.Warn().Str("match_id", s.config.MatchID).Msg("no push credentials - running pull-only")
		} else {
			log.Error().Err(err).Str("match_id", s.config.MatchID).Msg("failed to join push channel - running pull-only")
		}
		s.notify(Notice{Kind: NoticePullOnly, Message: "live updates unavailable", Err: err})
	}

	s.refreshRoundState()
	s.refreshPickable()

	ticker := s.clock.NewTicker(clocksync.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("match_id", s.config.MatchID).Msg("session stopping")
			return nil
		case m := <-s.inbox:
			s.handle(m)
			if s.handedOff {
				return nil
			}
		case <-ticker.Chan():
			s.tick()
		}
	}
}

// RequestPick asks the session to submit entityID for the current round.
// It returns once the request is accepted or rejected; the outcome of the
// submission itself arrives through Updates and Notices.
func (s *Session) RequestPick(ctx context.Context, entityID string) error {
	reply := make(chan error, 1)
	if err := s.post(ctx, pickRequested{entityID: entityID, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// View returns the current view.
func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.post(ctx, viewRequested{reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		return View{}, ErrClosed
	}
}

func (s *Session) post(ctx context.Context, m msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// deliver is called by transport goroutines.
func (s *Session) deliver(env events.Envelope) {
	select {
	case s.inbox <- eventDelivered{env: env}:
	case <-s.done:
	}
}

// background posts a result from a worker goroutine, discarding it once the
// session is gone.
func (s *Session) background(m msg) {
	select {
	case s.inbox <- m:
	case <-s.done:
	}
}

func (s *Session) handle(m msg) {
	switch m := m.(type) {
	case eventDelivered:
		s.bridge.Dispatch(m.env)
	case roundStateFetched:
		s.onRoundState(m)
	case pickableFetched:
		s.onPickable(m)
	case pickRequested:
		m.reply <- s.onPickRequested(m.entityID)
	case pickSubmitted:
		s.onPickSubmitted(m)
	case viewRequested:
		m.reply <- s.view()
	default:
		log.Warn().Str("type", fmt.Sprintf("%T", m)).Msg("unknown session message")
	}
}

func (s *Session) tick() {
	s.preRound.Tick()
	s.publish()
}

func (s *Session) refreshRoundState() {
	s.stateSeq++
	seq := s.stateSeq
	ctx, matchID := s.ctx, s.config.MatchID
	go func() {
		ctx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
		snap, err := s.client.GetRoundState(ctx, matchID)
		s.background(roundStateFetched{seq: seq, snap: snap, err: err})
	}()
}

func (s *Session) refreshPickable() {
	s.pickableSeq++
	seq := s.pickableSeq
	ctx, matchID, userID := s.ctx, s.config.MatchID, s.config.UserID
	go func() {
		ctx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
		entities, err := s.client.ListPickableEntities(ctx, matchID, userID)
		s.background(pickableFetched{seq: seq, entities: entities, err: err})
	}()
}

func (s *Session) onRoundState(m roundStateFetched) {
	if m.seq < s.stateAppliedSeq {
		log.Debug().Uint64("seq", m.seq).Msg("discarding out-of-order round state")
		return
	}
	if m.err != nil {
		log.Error().Err(m.err).Str("match_id", s.config.MatchID).Msg("failed to fetch round state")
		s.notify(Notice{Kind: NoticeRefreshFailed, Message: "could not refresh round state", Retryable: true, Err: m.err})
		return
	}
	if m.snap == nil {
		return
	}
	s.stateAppliedSeq = m.seq
	if s.pending != nil && s.pending.submitted {
		// an authoritative refetch after a successful submit settles the lock
		s.pending = nil
	}
	s.apply(*m.snap)
}

func (s *Session) onPickable(m pickableFetched) {
	if m.seq != s.pickableSeq {
		return
	}
	if m.err != nil {
		log.Error().Err(m.err).Str("match_id", s.config.MatchID).Msg("failed to fetch pickable entities")
		s.notify(Notice{Kind: NoticeRefreshFailed, Message: "could not refresh pickable entities", Retryable: true, Err: m.err})
		return
	}
	s.pickable = m.entities
	s.publish()
}

// applyUnpulled applies a snapshot that arrived outside the pull path, such
// as a submit response or an event payload. Pulls issued before it carry older
// state and are discarded when they land.
func (s *Session) applyUnpulled(snap models.Snapshot) {
	if snap.Match.ID == s.config.MatchID {
		s.stateSeq++
		s.stateAppliedSeq = s.stateSeq
	}
	s.apply(snap)
}

// apply merges a snapshot into the owned state and publishes the result.
func (s *Session) apply(snap models.Snapshot) {
	if snap.Match.ID != s.config.MatchID {
		log.Debug().
			Str("match_id", s.config.MatchID).
			Str("snapshot_match_id", snap.Match.ID).
			Msg("ignoring snapshot for another match")
		return
	}
	st, err := s.merger.Merge(snap)
	if err != nil {
		log.Error().Err(err).Str("match_id", s.config.MatchID).Msg("failed to merge snapshot")
		return
	}
	s.state = &st
	s.turn = st.Derive()
	s.countdown.SetDeadline(s.turn.PickDeadline)

	if s.pending != nil && s.localPickConfirmed(st) {
		s.pending = nil
	}
	s.publish()
}

func (s *Session) localPickConfirmed(st roundstate.State) bool {
	for _, r := range st.Rounds {
		if r.ID != s.pending.ref.RoundID {
			continue
		}
		if p, ok := r.Participant(st.Sides.LocalID); ok && p.HasPicked() {
			return true
		}
	}
	return false
}

func (s *Session) onPickRequested(entityID string) error {
	if s.state == nil {
		return ErrNotReady
	}
	if s.pending != nil {
		return ErrPickInFlight
	}
	if !s.turn.IsLocalTurn || s.turn.CurrentRound == nil {
		return ErrNotYourTurn
	}
	if _, taken := s.turn.PickedEntityMap[entityID]; taken {
		return fmt.Errorf("entity %s already picked: %w", entityID, ErrEntityNotAllowed)
	}
	if !s.isPickable(entityID) {
		return fmt.Errorf("entity %s not in pickable list: %w", entityID, ErrEntityNotAllowed)
	}

	ref := models.RoundRef{
		MatchID:       s.config.MatchID,
		RoundID:       s.turn.CurrentRound.ID,
		ParticipantID: s.state.Sides.LocalID,
	}
	s.pending = &pendingPick{ref: ref, entityID: entityID}
	s.publish()

	ctx := s.ctx
	go func() {
		ctx, cancel := context.WithTimeout(ctx, s.config.SubmitTimeout)
		defer cancel()
		snap, err := s.client.SubmitPick(ctx, ref, entityID)
		s.background(pickSubmitted{ref: ref, entityID: entityID, snap: snap, err: err})
	}()

	log.Info().
		Str("match_id", ref.MatchID).
		Str("round_id", ref.RoundID).
		Str("entity_id", entityID).
		Msg("submitting pick")
	return nil
}

func (s *Session) isPickable(entityID string) bool {
	for _, e := range s.pickable {
		if e.ID == entityID {
			return true
		}
	}
	return false
}

func (s *Session) onPickSubmitted(m pickSubmitted) {
	if s.pending == nil || s.pending.ref != m.ref || s.pending.entityID != m.entityID {
		return
	}
	if m.err != nil {
		log.Error().Err(m.err).Str("entity_id", m.entityID).Msg("pick submission failed")
		s.pending = nil
		s.notify(Notice{
			Kind:      NoticeSubmissionFailed,
			Message:   "pick was not accepted, try again",
			EntityID:  m.entityID,
			Retryable: true,
			Err:       m.err,
		})
		s.publish()
		return
	}

	s.pending.submitted = true
	if m.snap != nil {
		s.applyUnpulled(*m.snap)
	}
	s.refreshRoundState()
	s.refreshPickable()
}

func (s *Session) view() View {
	v := View{
		Ready:       s.state != nil,
		Turn:        s.turn,
		Pickable:    s.pickable,
		BridgeState: s.bridge.State(),
		PullOnly:    s.pullOnly,
		ClockOffset: s.sync.Offset(),
	}
	if s.state != nil {
		v.RemainingSec = s.countdown.Tick()
	}
	if s.preRound.Active() {
		v.PreRoundActive = true
		v.PreRoundRemaining = s.preRound.Remaining()
	}
	if s.pending != nil {
		v.PendingEntityID = s.pending.entityID
	}
	return v
}

// publish replaces whatever view is waiting with the current one.
func (s *Session) publish() {
	v := s.view()
	select {
	case <-s.updates:
	default:
	}
	s.updates <- v
}

func (s *Session) notify(n Notice) {
	select {
	case s.notices <- n:
	default:
		log.Warn().Str("kind", string(n.Kind)).Msg("notice buffer full - dropping notice")
	}
}

// host adapts the session to bridge.Host without exposing these methods.
type host struct{ s *Session }

func (h host) ApplySnapshot(snap models.Snapshot) { h.s.applyUnpulled(snap) }

func (h host) RefreshRoundState() { h.s.refreshRoundState() }

func (h host) RefreshPickable() { h.s.refreshPickable() }

func (h host) ObserveServerStart(serverStart time.Time) {
	offset := h.s.sync.Observe(serverStart)
	log.Debug().Dur("offset", offset).Msg("clock offset updated")
}

func (h host) SeedPreRound(roundNumber, delaySeconds int) {
	h.s.preRound.Seed(roundNumber, delaySeconds)
	h.s.publish()
}

func (h host) HandOff(payload events.RoundStartPayload) {
	h.s.preRound.Clear()
	h.s.handedOff = true
	h.s.publish()
	select {
	case h.s.handoff <- Handoff{
		Start:       payload,
		ClockOffset: h.s.sync.Offset(),
		ClockSynced: h.s.sync.Synced(),
	}:
	default:
	}
}
