package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/matchdraft/go/internal/draft/bridge"
	"github.com/mcdev12/matchdraft/go/internal/draft/events"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

// fakeServer is an in-memory match backend shared by every client in a test.
type fakeServer struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	snap      models.Snapshot
	owned     map[string][]models.Entity // by user id
	submitErr error
	gate      chan struct{}
	channel   *fakeChannel
	fetches   int
	hold      chan struct{} // holds the next round-state response until closed
}

func newFakeServer(clock clockwork.Clock) *fakeServer {
	now := clock.Now().UTC()
	deadline := func(d time.Duration) *string { return strPtr(now.Add(d).Format(time.RFC3339)) }
	return &fakeServer{
		clock: clock,
		snap: models.Snapshot{
			Match: models.Match{
				ID:     "m1",
				Status: models.MatchStatusInProgress,
				Participants: []models.Participant{
					{ID: "p1", UserID: "u1", DisplayName: "Ash"},
					{ID: "p2", UserID: "u2", DisplayName: "Gary"},
				},
			},
			Rounds: []models.Round{
				{ID: "r1", RoundNumber: 1, Status: models.RoundStatusSelectingPokemon, Participants: []models.RoundParticipant{
					{MatchParticipantID: "p1", OrderSelected: intPtr(1), EndTimeSelected: deadline(30 * time.Second)},
					{MatchParticipantID: "p2", OrderSelected: intPtr(2), EndTimeSelected: deadline(60 * time.Second)},
				}},
				{ID: "r2", RoundNumber: 2, Status: models.RoundStatusPending, Participants: []models.RoundParticipant{
					{MatchParticipantID: "p1", OrderSelected: intPtr(2)},
					{MatchParticipantID: "p2", OrderSelected: intPtr(1)},
				}},
				{ID: "r3", RoundNumber: 3, Status: models.RoundStatusPending, Participants: []models.RoundParticipant{
					{MatchParticipantID: "p1", OrderSelected: intPtr(1)},
					{MatchParticipantID: "p2", OrderSelected: intPtr(2)},
				}},
			},
		},
		owned: map[string][]models.Entity{
			"u1": {{ID: "e1", OwnerID: "u1", Name: "Pikachu"}, {ID: "e2", OwnerID: "u1", Name: "Bulbasaur"}, {ID: "e3", OwnerID: "u1", Name: "Onix"}},
			"u2": {{ID: "e4", OwnerID: "u2", Name: "Eevee"}, {ID: "e5", OwnerID: "u2", Name: "Squirtle"}, {ID: "e6", OwnerID: "u2", Name: "Abra"}},
		},
	}
}

func (f *fakeServer) clone() *models.Snapshot {
	data, _ := json.Marshal(f.snap)
	var out models.Snapshot
	_ = json.Unmarshal(data, &out)
	return &out
}

func (f *fakeServer) pickedIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, r := range f.snap.Rounds {
		for _, rp := range r.Participants {
			if rp.HasPicked() {
				ids[*rp.SelectedUserPokemonID] = true
			}
		}
	}
	return ids
}

func (f *fakeServer) GetRoundState(ctx context.Context, matchID string) (*models.Snapshot, error) {
	f.mu.Lock()
	f.fetches++
	if matchID != f.snap.Match.ID {
		f.mu.Unlock()
		return nil, errors.New("match not found")
	}
	snap := f.clone()
	hold := f.hold
	f.hold = nil
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return snap, nil
}

// holdNextFetch makes the next GetRoundState capture its snapshot immediately
// but return it only once the returned channel is closed.
func (f *fakeServer) holdNextFetch() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = make(chan struct{})
	return f.hold
}

func (f *fakeServer) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeServer) ListPickableEntities(ctx context.Context, matchID, userID string) ([]models.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	taken := f.pickedIDs()
	var out []models.Entity
	for _, e := range f.owned[userID] {
		if !taken[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeServer) SubmitPick(ctx context.Context, ref models.RoundRef, entityID string) (*models.Snapshot, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	if f.submitErr != nil {
		err := f.submitErr
		f.mu.Unlock()
		return nil, err
	}
	var entity *models.Entity
	for _, list := range f.owned {
		for i := range list {
			if list[i].ID == entityID {
				entity = &list[i]
			}
		}
	}
	for ri := range f.snap.Rounds {
		r := &f.snap.Rounds[ri]
		if r.ID != ref.RoundID {
			continue
		}
		for pi := range r.Participants {
			if r.Participants[pi].MatchParticipantID == ref.ParticipantID {
				r.Participants[pi].SelectedUserPokemonID = strPtr(entityID)
				r.Participants[pi].SelectedUserPokemon = entity
			}
		}
	}
	snap := f.clone()
	channel := f.channel
	f.mu.Unlock()

	if channel != nil {
		channel.publish(f.envelope(events.EventTypePickMade, events.PickMadePayload{MatchID: snap.Match.ID, Data: snap}))
	}
	return snap, nil
}

func (f *fakeServer) setSubmitErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

// openRound completes every earlier round and moves roundNumber into selection.
func (f *fakeServer) openRound(roundNumber int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.snap.Rounds {
		switch r := &f.snap.Rounds[i]; {
		case r.RoundNumber < roundNumber:
			r.Status = models.RoundStatusComplete
		case r.RoundNumber == roundNumber:
			r.Status = models.RoundStatusSelectingPokemon
		}
	}
}

func (f *fakeServer) envelope(t events.EventType, payload any) events.Envelope {
	env, err := events.NewEnvelope(t, "m1", "", payload, f.clock.Now())
	if err != nil {
		panic(fmt.Sprintf("build envelope: %v", err))
	}
	return env
}

// fakeChannel routes published envelopes to every joined membership whose
// scope matches.
type fakeChannel struct {
	mu          sync.Mutex
	memberships []*fakeMembership
	joinErr     error
}

func (c *fakeChannel) Join(ctx context.Context, scope events.Scope, creds bridge.Credentials) (bridge.Membership, error) {
	if c.joinErr != nil {
		return nil, c.joinErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m := &fakeMembership{scope: scope, handlers: make(map[events.EventType]bridge.Handler)}
	c.memberships = append(c.memberships, m)
	return m, nil
}

func (c *fakeChannel) publish(env events.Envelope) {
	c.mu.Lock()
	targets := append([]*fakeMembership(nil), c.memberships...)
	c.mu.Unlock()

	for _, m := range targets {
		if m.scope != events.EnvelopeScope(env) {
			continue
		}
		if h := m.handler(env.EventType); h != nil {
			h(env)
		}
	}
}

type fakeMembership struct {
	mu       sync.Mutex
	scope    events.Scope
	handlers map[events.EventType]bridge.Handler
}

func (m *fakeMembership) Scope() events.Scope { return m.scope }

func (m *fakeMembership) On(t events.EventType, h bridge.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[t] = h
}

func (m *fakeMembership) Off(t events.EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, t)
}

func (m *fakeMembership) Leave() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = make(map[events.EventType]bridge.Handler)
	return nil
}

func (m *fakeMembership) handler(t events.EventType) bridge.Handler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[t]
}
