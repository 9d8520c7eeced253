package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

// --- Host ---

type MockHost struct {
	mock.Mock
}

func (m *MockHost) ApplySnapshot(snap models.Snapshot) { m.Called(snap) }
func (m *MockHost) RefreshRoundState()                 { m.Called() }
func (m *MockHost) RefreshPickable()                   { m.Called() }
func (m *MockHost) ObserveServerStart(t time.Time)     { m.Called(t) }
func (m *MockHost) SeedPreRound(roundNumber, delay int) {
	m.Called(roundNumber, delay)
}
func (m *MockHost) HandOff(p events.RoundStartPayload) { m.Called(p) }

// --- PushChannel ---

// fakeChannel delivers published envelopes to every joined membership whose
// scope matches, the way the bus would.
type fakeChannel struct {
	mu          sync.Mutex
	memberships []*fakeMembership
	joinErr     error
}

func (c *fakeChannel) Join(ctx context.Context, scope events.Scope, creds Credentials) (Membership, error) {
	if c.joinErr != nil {
		return nil, c.joinErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m := &fakeMembership{scope: scope, handlers: newHandlerSet(), creds: creds}
	c.memberships = append(c.memberships, m)
	return m, nil
}

func (c *fakeChannel) publish(env events.Envelope) int {
	c.mu.Lock()
	targets := append([]*fakeMembership(nil), c.memberships...)
	c.mu.Unlock()

	delivered := 0
	for _, m := range targets {
		if m.left || m.scope != events.EnvelopeScope(env) {
			continue
		}
		if m.handlers.dispatch(env) {
			delivered++
		}
	}
	return delivered
}

type fakeMembership struct {
	scope    events.Scope
	creds    Credentials
	handlers *handlerSet
	left     bool
}

func (m *fakeMembership) Scope() events.Scope              { return m.scope }
func (m *fakeMembership) On(t events.EventType, h Handler) { m.handlers.on(t, h) }
func (m *fakeMembership) Off(t events.EventType)           { m.handlers.off(t) }
func (m *fakeMembership) Leave() error                     { m.left = true; return nil }
func (m *fakeMembership) registered(t events.EventType) bool {
	m.handlers.mu.RLock()
	defer m.handlers.mu.RUnlock()
	_, ok := m.handlers.handlers[t]
	return ok
}
