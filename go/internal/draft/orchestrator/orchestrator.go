// Package orchestrator runs the server-side round clock: it announces and
// opens rounds, auto-picks when a picker's deadline passes and completes the
// match after the last round.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
	"github.com/mcdev12/matchdraft/go/internal/draft/matchsvc"
	"github.com/mcdev12/matchdraft/go/internal/draft/turn"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

// MatchApp is what the orchestrator drives on the match server.
type MatchApp interface {
	GetRoundState(ctx context.Context, matchID string) (*models.Snapshot, error)
	OpenRound(ctx context.Context, matchID string, roundNumber int) (*models.Snapshot, error)
	AutoPick(ctx context.Context, matchID string) (*models.Snapshot, error)
	CompleteMatch(ctx context.Context, matchID string) error
	ListActiveMatchIDs(ctx context.Context) ([]string, error)
}

// Publisher emits round lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

type Config struct {
	NumWorkers    int
	PreRoundDelay time.Duration // between round-pre-start and round-start
	StreamName    string
	ConsumerName  string
	AckWait       time.Duration
	MaxDeliver    int
	MaxAckPending int
}

func DefaultConfig() Config {
	return Config{
		NumWorkers:    10,
		PreRoundDelay: 5 * time.Second,
		StreamName:    "MATCH_EVENTS",
		ConsumerName:  "match-orchestrator",
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		MaxAckPending: 1000,
	}
}

const eventChannelBufferSize = 100

// task is queued work for one match. A non-zero openRound opens that round
// before the match is re-evaluated.
type task struct {
	matchID   string
	openRound int
}

// scheduleKey identifies what a match's pending timer is waiting for.
type scheduleKey struct {
	roundNumber int
	waitingOn   string // participant id, or preStart
	at          time.Time
}

const preStart = "pre-start"

type scheduledTimer struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

type Orchestrator struct {
	app        MatchApp
	publisher  Publisher
	clock      clockwork.Clock
	cfg        Config
	instanceID string

	consumer jetstream.Consumer

	workCh chan task
	done   chan struct{}

	locks sync.Map // match id -> *sync.Mutex

	activeTimers   map[string]scheduledTimer
	activeTimersMu sync.Mutex

	lastScheduled   map[string]scheduleKey
	lastScheduledMu sync.Mutex
}

func NewOrchestrator(app MatchApp, publisher Publisher, clock clockwork.Clock, cfg Config) *Orchestrator {
	return &Orchestrator{
		app:           app,
		publisher:     publisher,
		clock:         clock,
		cfg:           cfg,
		instanceID:    uuid.New().String()[:8], // short ID for logging
		workCh:        make(chan task, cfg.NumWorkers*2),
		done:          make(chan struct{}),
		activeTimers:  make(map[string]scheduledTimer),
		lastScheduled: make(map[string]scheduleKey),
	}
}

func (o *Orchestrator) lock(matchID string) func() {
	mu, _ := o.locks.LoadOrStore(matchID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Recover re-evaluates every active match so timers lost with a previous
// process are rebuilt.
func (o *Orchestrator) Recover(ctx context.Context) error {
	ids, err := o.app.ListActiveMatchIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := o.Evaluate(ctx, id); err != nil {
			log.Error().Err(err).Str("match_id", id).Msg("failed to recover match")
		}
	}
	log.Info().Str("instance", o.instanceID).Int("matches", len(ids)).Msg("recovered active matches")
	return nil
}

// Evaluate reads the match and brings its clock in line with the stored state.
func (o *Orchestrator) Evaluate(ctx context.Context, matchID string) error {
	unlock := o.lock(matchID)
	defer unlock()
	return o.evaluate(ctx, matchID)
}

func (o *Orchestrator) evaluate(ctx context.Context, matchID string) error {
	snap, err := o.app.GetRoundState(ctx, matchID)
	if err != nil {
		if errors.Is(err, matchsvc.ErrNotFound) {
			o.forget(matchID)
			return nil
		}
		return err
	}
	if snap.Match.Status == models.MatchStatusCompleted || snap.Match.Status == models.MatchStatusCancelled {
		o.forget(matchID)
		return nil
	}

	models.SortRounds(snap.Rounds)
	idx := models.FirstOpenRound(snap.Rounds)
	if idx < 0 {
		o.forget(matchID)
		return o.app.CompleteMatch(ctx, matchID)
	}
	round := snap.Rounds[idx]

	switch round.Status {
	case models.RoundStatusPending:
		return o.announceRound(ctx, matchID, round.RoundNumber)
	case models.RoundStatusSelectingPokemon:
		return o.watchPicker(ctx, snap.Match, &round)
	default:
		return nil
	}
}

// announceRound publishes round-pre-start once per round and schedules the
// round to open after the delay.
func (o *Orchestrator) announceRound(ctx context.Context, matchID string, roundNumber int) error {
	key := scheduleKey{roundNumber: roundNumber, waitingOn: preStart}
	if o.alreadyScheduled(matchID, key) {
		return nil
	}

	start := o.clock.Now().Add(o.cfg.PreRoundDelay).UTC()
	delay := int(o.cfg.PreRoundDelay / time.Second)
	o.publish(ctx, events.EventTypeRoundPreStart, matchID, events.RoundPreStartPayload{
		MatchID:      matchID,
		StartTime:    &start,
		RoundNumber:  &roundNumber,
		DelaySeconds: &delay,
		Message:      fmt.Sprintf("Round %d starts in %d seconds", roundNumber, delay),
	})

	o.schedule(matchID, key, start, task{matchID: matchID, openRound: roundNumber})
	return nil
}

// watchPicker auto-picks for the side on the clock once its deadline has
// passed, and otherwise waits for the deadline.
func (o *Orchestrator) watchPicker(ctx context.Context, match models.Match, round *models.Round) error {
	if len(match.Participants) < 2 {
		return nil
	}
	sides := turn.Sides{LocalID: match.Participants[0].ID, RemoteID: match.Participants[1].ID}
	picker := turn.Resolve(round, sides).Picker
	pickerID := picker.ParticipantID(sides)
	if pickerID == "" {
		log.Warn().Str("match_id", match.ID).Int("round_number", round.RoundNumber).Msg("open round has no picker")
		return nil
	}
	deadline := turn.ResolveDeadline(round, sides, picker)
	if deadline == nil {
		log.Warn().Str("match_id", match.ID).Int("round_number", round.RoundNumber).Msg("open round has no deadline")
		return nil
	}

	if o.clock.Now().Before(*deadline) {
		o.schedule(match.ID, scheduleKey{roundNumber: round.RoundNumber, waitingOn: pickerID, at: *deadline}, *deadline, task{matchID: match.ID})
		return nil
	}

	if _, err := o.app.AutoPick(ctx, match.ID); err != nil {
		if errors.Is(err, matchsvc.ErrNotYourTurn) || errors.Is(err, matchsvc.ErrRoundClosed) || errors.Is(err, matchsvc.ErrAlreadyPicked) {
			log.Debug().Err(err).Str("match_id", match.ID).Msg("auto-pick lost a race with a player pick")
			return o.evaluate(ctx, match.ID)
		}
		return fmt.Errorf("auto-pick: %w", err)
	}
	return o.evaluate(ctx, match.ID)
}

// handleTask runs queued work for a match.
func (o *Orchestrator) handleTask(ctx context.Context, t task) error {
	unlock := o.lock(t.matchID)
	defer unlock()

	if t.openRound > 0 {
		if err := o.openRound(ctx, t.matchID, t.openRound); err != nil {
			o.clearScheduled(t.matchID)
			return err
		}
	}
	return o.evaluate(ctx, t.matchID)
}

func (o *Orchestrator) openRound(ctx context.Context, matchID string, roundNumber int) error {
	if _, err := o.app.OpenRound(ctx, matchID, roundNumber); err != nil {
		if errors.Is(err, matchsvc.ErrRoundNotPending) {
			log.Debug().Str("match_id", matchID).Int("round_number", roundNumber).Msg("round no longer pending")
			return nil
		}
		return fmt.Errorf("open round %d: %w", roundNumber, err)
	}

	now := o.clock.Now().UTC()
	o.publish(ctx, events.EventTypeRoundStart, matchID, events.RoundStartPayload{
		MatchID:   matchID,
		StartTime: &now,
		Round:     &events.RoundRef{RoundNumber: roundNumber},
	})
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, eventType events.EventType, matchID string, payload any) {
	env, err := events.NewEnvelope(eventType, matchID, "", payload, o.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	if err := o.publisher.Publish(ctx, env); err != nil {
		log.Error().Err(err).
			Str("match_id", matchID).
			Str("event_type", string(eventType)).
			Msg("failed to publish event")
		return
	}
	log.Info().Str("match_id", matchID).Str("event_type", string(eventType)).Msg("emitted round event")
}
