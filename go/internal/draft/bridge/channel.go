package bridge

import (
	"context"
	"sync"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
)

// Credentials authenticate a push channel join.
type Credentials struct {
	Token string
}

// Handler receives a pushed envelope. Transports invoke it on their own goroutines.
type Handler func(events.Envelope)

// PushChannel is a push transport able to join subscription scopes.
type PushChannel interface {
	Join(ctx context.Context, scope events.Scope, creds Credentials) (Membership, error)
}

// Membership is a joined scope. Handlers are registered per event type.
type Membership interface {
	Scope() events.Scope
	On(eventType events.EventType, h Handler)
	Off(eventType events.EventType)
	Leave() error
}

// handlerSet is the per-membership handler registry shared by the transports.
type handlerSet struct {
	mu       sync.RWMutex
	handlers map[events.EventType]Handler
}

func newHandlerSet() *handlerSet {
	return &handlerSet{handlers: make(map[events.EventType]Handler)}
}

func (s *handlerSet) on(eventType events.EventType, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[eventType] = h
}

func (s *handlerSet) off(eventType events.EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, eventType)
}

// dispatch reports whether a handler was registered for the envelope.
func (s *handlerSet) dispatch(env events.Envelope) bool {
	s.mu.RLock()
	h, ok := s.handlers[env.EventType]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	h(env)
	return true
}
