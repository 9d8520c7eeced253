// Package matchsvc is the authoritative match server: it owns round state,
// validates picks and publishes the events clients react to.
package matchsvc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
	"github.com/mcdev12/matchdraft/go/internal/draft/turn"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrNotParticipant    = errors.New("not a participant of this match")
	ErrRoundClosed       = errors.New("round is not open for picks")
	ErrRoundNotPending   = errors.New("round is not pending")
	ErrNotYourTurn       = errors.New("not your turn to pick")
	ErrAlreadyPicked     = errors.New("already picked this round")
	ErrEntityUnavailable = errors.New("entity is not available")
)

// TimeLayout is how timestamps are rendered into snapshots.
const TimeLayout = time.RFC3339

// Repository defines what the app layer needs from storage.
type Repository interface {
	GetSnapshot(ctx context.Context, matchID string) (*models.Snapshot, error)
	ListOwnedEntities(ctx context.Context, userID string) ([]models.Entity, error)
	RecordPick(ctx context.Context, req RecordPickRequest) error
	OpenRound(ctx context.Context, req OpenRoundRequest) error
	UpdateRoundStatus(ctx context.Context, roundID string, status models.RoundStatus) error
	UpdateMatchStatus(ctx context.Context, matchID string, status models.MatchStatus) error
	ListActiveMatchIDs(ctx context.Context) ([]string, error)
}

// Publisher emits match events to the bus.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// RecordPickRequest sets a participant's selection once and optionally starts
// the opponent's pick clock.
type RecordPickRequest struct {
	RoundID           string
	ParticipantID     string
	EntityID          string
	NextParticipantID string
	NextDeadline      *time.Time
}

// OpenRoundRequest moves a round into selection with its deadlines.
type OpenRoundRequest struct {
	RoundID      string
	EndTimeRound time.Time
	Deadlines    map[string]time.Time // by match participant id
}

// AppConfig holds server rules.
type AppConfig struct {
	PickTimeout time.Duration
}

// DefaultAppConfig returns the default rules.
func DefaultAppConfig() AppConfig {
	return AppConfig{PickTimeout: 30 * time.Second}
}

// App handles match business logic.
type App struct {
	repo      Repository
	publisher Publisher
	clock     clockwork.Clock
	config    AppConfig

	locks sync.Map // match id -> *sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewApp creates a new match App.
func NewApp(repo Repository, publisher Publisher, clock clockwork.Clock, config AppConfig) *App {
	return &App{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		config:    config,
		rng:       rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

func (a *App) lock(matchID string) func() {
	mu, _ := a.locks.LoadOrStore(matchID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// GetRoundState returns the full snapshot of a match.
func (a *App) GetRoundState(ctx context.Context, matchID string) (*models.Snapshot, error) {
	snap, err := a.repo.GetSnapshot(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s: %w", matchID, err)
	}
	return snap, nil
}

// ListPickableEntities returns the user's entities not yet picked in the match.
func (a *App) ListPickableEntities(ctx context.Context, matchID, userID string) ([]models.Entity, error) {
	snap, err := a.GetRoundState(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Match.ParticipantForUser(userID); !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotParticipant)
	}
	return a.pickable(ctx, snap, userID)
}

func (a *App) pickable(ctx context.Context, snap *models.Snapshot, userID string) ([]models.Entity, error) {
	owned, err := a.repo.ListOwnedEntities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities for %s: %w", userID, err)
	}
	taken := pickedEntityIDs(snap)
	out := make([]models.Entity, 0, len(owned))
	for _, e := range owned {
		if !taken[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

// SubmitPick records entityID for ref. userID is the authenticated caller;
// an empty userID acts on behalf of the participant (auto-pick).
func (a *App) SubmitPick(ctx context.Context, userID string, ref models.RoundRef, entityID string) (*models.Snapshot, error) {
	unlock := a.lock(ref.MatchID)
	defer unlock()
	return a.submitPick(ctx, userID, ref, entityID)
}

func (a *App) submitPick(ctx context.Context, userID string, ref models.RoundRef, entityID string) (*models.Snapshot, error) {
	snap, err := a.GetRoundState(ctx, ref.MatchID)
	if err != nil {
		return nil, err
	}

	models.SortRounds(snap.Rounds)
	idx := models.FirstOpenRound(snap.Rounds)
	if idx < 0 || snap.Rounds[idx].ID != ref.RoundID {
		return nil, fmt.Errorf("round %s: %w", ref.RoundID, ErrRoundClosed)
	}
	round := snap.Rounds[idx]
	if round.Status != models.RoundStatusSelectingPokemon {
		return nil, fmt.Errorf("round %s is %s: %w", round.ID, round.Status, ErrRoundClosed)
	}

	var participant *models.Participant
	for i := range snap.Match.Participants {
		if snap.Match.Participants[i].ID == ref.ParticipantID {
			participant = &snap.Match.Participants[i]
		}
	}
	if participant == nil || (userID != "" && participant.UserID != userID) {
		return nil, fmt.Errorf("participant %s: %w", ref.ParticipantID, ErrNotParticipant)
	}
	opponent, _ := snap.Match.Opponent(participant.ID)

	rp, ok := round.Participant(participant.ID)
	if !ok {
		return nil, fmt.Errorf("participant %s not seated in round %d: %w", participant.ID, round.RoundNumber, ErrNotParticipant)
	}
	if rp.HasPicked() {
		return nil, ErrAlreadyPicked
	}
	if res := turn.Resolve(&round, turn.Sides{LocalID: participant.ID, RemoteID: opponent.ID}); !res.IsLocalTurn {
		return nil, ErrNotYourTurn
	}

	available, err := a.pickable(ctx, snap, participant.UserID)
	if err != nil {
		return nil, err
	}
	if !containsEntity(available, entityID) {
		return nil, fmt.Errorf("entity %s: %w", entityID, ErrEntityUnavailable)
	}

	req := RecordPickRequest{
		RoundID:       round.ID,
		ParticipantID: participant.ID,
		EntityID:      entityID,
	}
	if orp, ok := round.Participant(opponent.ID); ok && !orp.HasPicked() {
		next := a.clock.Now().Add(a.config.PickTimeout).UTC()
		req.NextParticipantID = opponent.ID
		req.NextDeadline = &next
	}
	if err := a.repo.RecordPick(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to record pick: %w", err)
	}

	log.Info().
		Str("match_id", ref.MatchID).
		Int("round_number", round.RoundNumber).
		Str("participant_id", participant.ID).
		Str("entity_id", entityID).
		Msg("pick recorded")

	if req.NextDeadline == nil {
		if err := a.repo.UpdateRoundStatus(ctx, round.ID, models.RoundStatusComplete); err != nil {
			return nil, fmt.Errorf("failed to complete round: %w", err)
		}
		log.Info().Str("match_id", ref.MatchID).Int("round_number", round.RoundNumber).Msg("round complete")
	}

	updated, err := a.GetRoundState(ctx, ref.MatchID)
	if err != nil {
		return nil, err
	}
	a.publish(ctx, events.EventTypePickMade, ref.MatchID, events.PickMadePayload{MatchID: ref.MatchID, Data: updated})
	return updated, nil
}

// AutoPick picks a random available entity for whichever side is on the
// clock in the open round.
func (a *App) AutoPick(ctx context.Context, matchID string) (*models.Snapshot, error) {
	unlock := a.lock(matchID)
	defer unlock()

	snap, err := a.GetRoundState(ctx, matchID)
	if err != nil {
		return nil, err
	}
	models.SortRounds(snap.Rounds)
	idx := models.FirstOpenRound(snap.Rounds)
	if idx < 0 || snap.Rounds[idx].Status != models.RoundStatusSelectingPokemon {
		return nil, ErrRoundClosed
	}
	round := snap.Rounds[idx]

	sides, ok := seatSides(snap.Match)
	if !ok {
		return nil, ErrNotParticipant
	}
	pickerID := turn.Resolve(&round, sides).Picker.ParticipantID(sides)
	if pickerID == "" {
		return nil, ErrNotYourTurn
	}
	var picker models.Participant
	for _, p := range snap.Match.Participants {
		if p.ID == pickerID {
			picker = p
		}
	}

	available, err := a.pickable(ctx, snap, picker.UserID)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("participant %s has nothing left: %w", pickerID, ErrEntityUnavailable)
	}
	a.rngMu.Lock()
	choice := available[a.rng.Intn(len(available))]
	a.rngMu.Unlock()

	log.Info().
		Str("match_id", matchID).
		Str("participant_id", pickerID).
		Str("entity_id", choice.ID).
		Msg("auto-pick on timeout")

	return a.submitPick(ctx, "", models.RoundRef{MatchID: matchID, RoundID: round.ID, ParticipantID: pickerID}, choice.ID)
}

// OpenRound moves a pending round into selection and starts the first
// picker's clock. Opening an already selecting round is a no-op.
func (a *App) OpenRound(ctx context.Context, matchID string, roundNumber int) (*models.Snapshot, error) {
	unlock := a.lock(matchID)
	defer unlock()

	snap, err := a.GetRoundState(ctx, matchID)
	if err != nil {
		return nil, err
	}
	models.SortRounds(snap.Rounds)
	idx := models.FirstOpenRound(snap.Rounds)
	if idx < 0 || snap.Rounds[idx].RoundNumber != roundNumber {
		return nil, fmt.Errorf("round %d: %w", roundNumber, ErrRoundNotPending)
	}
	round := snap.Rounds[idx]
	if round.Status == models.RoundStatusSelectingPokemon {
		return snap, nil
	}

	now := a.clock.Now().UTC()
	req := OpenRoundRequest{
		RoundID:      round.ID,
		EndTimeRound: now.Add(2 * a.config.PickTimeout),
		Deadlines:    make(map[string]time.Time),
	}
	if sides, ok := seatSides(snap.Match); ok {
		if first := turn.Resolve(&round, sides).Picker.ParticipantID(sides); first != "" {
			req.Deadlines[first] = now.Add(a.config.PickTimeout)
		}
	}
	if err := a.repo.OpenRound(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to open round %d: %w", roundNumber, err)
	}
	if snap.Match.Status == models.MatchStatusPending {
		if err := a.repo.UpdateMatchStatus(ctx, matchID, models.MatchStatusInProgress); err != nil {
			return nil, fmt.Errorf("failed to start match: %w", err)
		}
	}

	log.Info().Str("match_id", matchID).Int("round_number", roundNumber).Msg("round opened")
	return a.GetRoundState(ctx, matchID)
}

// CompleteMatch marks the match finished.
func (a *App) CompleteMatch(ctx context.Context, matchID string) error {
	if err := a.repo.UpdateMatchStatus(ctx, matchID, models.MatchStatusCompleted); err != nil {
		return fmt.Errorf("failed to complete match %s: %w", matchID, err)
	}
	log.Info().Str("match_id", matchID).Msg("match complete")
	return nil
}

// ListActiveMatchIDs returns matches that still need a round clock.
func (a *App) ListActiveMatchIDs(ctx context.Context) ([]string, error) {
	ids, err := a.repo.ListActiveMatchIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active matches: %w", err)
	}
	return ids, nil
}

func (a *App) publish(ctx context.Context, eventType events.EventType, matchID string, payload any) {
	if a.publisher == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, matchID, "", payload, a.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	if err := a.publisher.Publish(ctx, env); err != nil {
		// clients recover through their next pull
		log.Error().Err(err).
			Str("match_id", matchID).
			Str("event_type", string(eventType)).
			Msg("failed to publish event")
	}
}

// seatSides fixes the first seat as the local side.
func seatSides(m models.Match) (turn.Sides, bool) {
	if len(m.Participants) < 2 {
		return turn.Sides{}, false
	}
	return turn.Sides{LocalID: m.Participants[0].ID, RemoteID: m.Participants[1].ID}, true
}

func pickedEntityIDs(snap *models.Snapshot) map[string]bool {
	ids := make(map[string]bool)
	for _, r := range snap.Rounds {
		for _, rp := range r.Participants {
			if rp.HasPicked() {
				ids[*rp.SelectedUserPokemonID] = true
			}
		}
	}
	return ids
}

func containsEntity(entities []models.Entity, id string) bool {
	for _, e := range entities {
		if e.ID == id {
			return true
		}
	}
	return false
}

// FormatTime renders t the way snapshots carry timestamps.
func FormatTime(t time.Time) *string {
	s := t.UTC().Format(TimeLayout)
	return &s
}
