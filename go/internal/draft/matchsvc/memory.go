package matchsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcdev12/matchdraft/go/internal/models"
)

// MemoryRepository keeps matches in process. Used by tests and by the
// server when no database is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	matches  map[string]*models.Snapshot
	entities map[string][]models.Entity // by owner
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		matches:  make(map[string]*models.Snapshot),
		entities: make(map[string][]models.Entity),
	}
}

// PutMatch stores a copy of snap, replacing any match with the same id.
func (r *MemoryRepository) PutMatch(snap models.Snapshot) error {
	stored, err := cloneSnapshot(&snap)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[snap.Match.ID] = stored
	return nil
}

// PutEntities assigns entities to their owners.
func (r *MemoryRepository) PutEntities(entities ...models.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entities {
		r.entities[e.OwnerID] = append(r.entities[e.OwnerID], e)
	}
}

func (r *MemoryRepository) GetSnapshot(ctx context.Context, matchID string) (*models.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	return cloneSnapshot(snap)
}

func (r *MemoryRepository) ListOwnedEntities(ctx context.Context, userID string) ([]models.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Entity(nil), r.entities[userID]...), nil
}

func (r *MemoryRepository) RecordPick(ctx context.Context, req RecordPickRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	round, err := r.findRound(req.RoundID)
	if err != nil {
		return err
	}
	seat := seatIn(round, req.ParticipantID)
	if seat == nil {
		return fmt.Errorf("participant %s: %w", req.ParticipantID, ErrNotFound)
	}
	if seat.HasPicked() {
		return ErrAlreadyPicked
	}
	entityID := req.EntityID
	seat.SelectedUserPokemonID = &entityID
	seat.SelectedUserPokemon = r.entity(entityID)

	if req.NextDeadline != nil {
		if next := seatIn(round, req.NextParticipantID); next != nil && next.EndTimeSelected == nil {
			next.EndTimeSelected = FormatTime(*req.NextDeadline)
		}
	}
	return nil
}

func (r *MemoryRepository) OpenRound(ctx context.Context, req OpenRoundRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	round, err := r.findRound(req.RoundID)
	if err != nil {
		return err
	}
	round.Status = models.RoundStatusSelectingPokemon
	round.EndTimeRound = FormatTime(req.EndTimeRound)
	for participantID, deadline := range req.Deadlines {
		if seat := seatIn(round, participantID); seat != nil && seat.EndTimeSelected == nil {
			seat.EndTimeSelected = FormatTime(deadline)
		}
	}
	return nil
}

func (r *MemoryRepository) UpdateRoundStatus(ctx context.Context, roundID string, status models.RoundStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, err := r.findRound(roundID)
	if err != nil {
		return err
	}
	round.Status = status
	return nil
}

func (r *MemoryRepository) UpdateMatchStatus(ctx context.Context, matchID string, status models.MatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.matches[matchID]
	if !ok {
		return fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	snap.Match.Status = status
	return nil
}

func (r *MemoryRepository) ListActiveMatchIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, snap := range r.matches {
		if snap.Match.Status == models.MatchStatusPending || snap.Match.Status == models.MatchStatusInProgress {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *MemoryRepository) findRound(roundID string) (*models.Round, error) {
	for _, snap := range r.matches {
		for i := range snap.Rounds {
			if snap.Rounds[i].ID == roundID {
				return &snap.Rounds[i], nil
			}
		}
	}
	return nil, fmt.Errorf("round %s: %w", roundID, ErrNotFound)
}

func (r *MemoryRepository) entity(id string) *models.Entity {
	for _, list := range r.entities {
		for _, e := range list {
			if e.ID == id {
				e := e
				return &e
			}
		}
	}
	return nil
}

func seatIn(round *models.Round, participantID string) *models.RoundParticipant {
	for i := range round.Participants {
		if round.Participants[i].MatchParticipantID == participantID {
			return &round.Participants[i]
		}
	}
	return nil
}

// cloneSnapshot deep-copies through JSON so callers never share pointers
// with stored state.
func cloneSnapshot(snap *models.Snapshot) (*models.Snapshot, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var out models.Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &out, nil
}
