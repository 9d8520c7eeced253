// Package roundstate normalizes pulled match snapshots into the queryable
// per-round view the client works from.
package roundstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/matchdraft/go/internal/draft/turn"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

// ErrNotParticipant is returned when the local user has no seat in the match.
var ErrNotParticipant = errors.New("user is not a participant of this match")

// State is a normalized snapshot.
type State struct {
	Match             models.Match
	Rounds            []models.Round // ordered by round number
	Sides             turn.Sides
	CurrentRoundIndex int // -1 when the match has no rounds
	LocalPicks        [PickSlots]*string
	RemotePicks       [PickSlots]*string
	PickedEntities    map[string]models.Entity
}

// CurrentRound returns the round currently in play, or nil.
func (s State) CurrentRound() *models.Round {
	if s.CurrentRoundIndex < 0 || s.CurrentRoundIndex >= len(s.Rounds) {
		return nil
	}
	return &s.Rounds[s.CurrentRoundIndex]
}

// TurnContext is the derived, never persisted, view the host renders from.
type TurnContext struct {
	CurrentRoundIndex int                      `json:"currentRoundIndex"`
	CurrentRound      *models.Round            `json:"currentRound,omitempty"`
	IsLocalTurn       bool                     `json:"isLocalTurn"`
	IsRemoteTurn      bool                     `json:"isRemoteTurn"`
	Picker            turn.Picker              `json:"picker"`
	PickDeadline      *time.Time               `json:"pickDeadline,omitempty"`
	LocalPicks        [PickSlots]*string       `json:"localPicks"`
	RemotePicks       [PickSlots]*string       `json:"remotePicks"`
	PickedEntityMap   map[string]models.Entity `json:"pickedEntityMap"`
}

// Derive runs the turn and deadline resolvers against the current round.
func (s State) Derive() TurnContext {
	current := s.CurrentRound()
	res := turn.Resolve(current, s.Sides)

	entities := make(map[string]models.Entity, len(s.PickedEntities))
	for id, e := range s.PickedEntities {
		entities[id] = e
	}

	return TurnContext{
		CurrentRoundIndex: s.CurrentRoundIndex,
		CurrentRound:      current,
		IsLocalTurn:       res.IsLocalTurn,
		IsRemoteTurn:      res.IsRemoteTurn,
		Picker:            res.Picker,
		PickDeadline:      turn.ResolveDeadline(current, s.Sides, res.Picker),
		LocalPicks:        s.LocalPicks,
		RemotePicks:       s.RemotePicks,
		PickedEntityMap:   entities,
	}
}

// Merger normalizes snapshots for one user in one match and accumulates
// the cross-round entity lookup. It is owned by a single goroutine.
type Merger struct {
	userID   string
	picked   map[string]models.Entity
	selected map[seat]string
}

// seat addresses one side of one round.
type seat struct {
	roundID       string
	participantID string
}

// NewMerger creates a merger for the given local user.
func NewMerger(userID string) *Merger {
	return &Merger{
		userID:   userID,
		picked:   make(map[string]models.Entity),
		selected: make(map[seat]string),
	}
}

// Merge normalizes snap. Entries already seen are never dropped, so merging
// an older or partial snapshot cannot shrink the entity lookup, and a
// selection seen once stays selected even if a later snapshot omits it.
func (m *Merger) Merge(snap models.Snapshot) (State, error) {
	local, ok := snap.Match.ParticipantForUser(m.userID)
	if !ok {
		return State{}, fmt.Errorf("match %s: %w", snap.Match.ID, ErrNotParticipant)
	}
	sides := turn.Sides{LocalID: local.ID}
	if remote, ok := snap.Match.Opponent(local.ID); ok {
		sides.RemoteID = remote.ID
	}

	rounds := make([]models.Round, len(snap.Rounds))
	copy(rounds, snap.Rounds)
	models.SortRounds(rounds)
	m.keepSelections(rounds)

	history := TrackPicks(rounds, sides)
	for id, e := range history.Entities {
		if existing, seen := m.picked[id]; seen && e.Name == "" {
			// keep the richer record from an earlier expanded snapshot
			e = existing
		}
		m.picked[id] = e
	}

	entities := make(map[string]models.Entity, len(m.picked))
	for id, e := range m.picked {
		entities[id] = e
	}

	return State{
		Match:             snap.Match,
		Rounds:            rounds,
		Sides:             sides,
		CurrentRoundIndex: currentRoundIndex(rounds),
		LocalPicks:        history.Local,
		RemotePicks:       history.Remote,
		PickedEntities:    entities,
	}, nil
}

// keepSelections records every selection in rounds and restores the ones an
// older snapshot lost. Participant slices are copied before being touched.
func (m *Merger) keepSelections(rounds []models.Round) {
	for i := range rounds {
		r := &rounds[i]
		participants := make([]models.RoundParticipant, len(r.Participants))
		copy(participants, r.Participants)

		for j := range participants {
			rp := &participants[j]
			key := seat{roundID: r.ID, participantID: rp.MatchParticipantID}
			if rp.HasPicked() {
				m.selected[key] = *rp.SelectedUserPokemonID
				continue
			}
			id, seen := m.selected[key]
			if !seen {
				continue
			}
			rp.SelectedUserPokemonID = &id
			if e, ok := m.picked[id]; ok {
				rp.SelectedUserPokemon = &e
			}
		}
		r.Participants = participants
	}
}

// currentRoundIndex returns the first round not yet complete, or the last
// round once every round is complete.
func currentRoundIndex(rounds []models.Round) int {
	if i := models.FirstOpenRound(rounds); i >= 0 {
		return i
	}
	return len(rounds) - 1
}
