package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of match event
type EventType string

const (
	EventTypePickMade      EventType = "pick-made"
	EventTypeRoundPreStart EventType = "round-pre-start"
	EventTypeRoundStart    EventType = "round-start"
)

// AllEventTypes lists every event the push channel carries.
var AllEventTypes = []EventType{EventTypePickMade, EventTypeRoundPreStart, EventTypeRoundStart}

// Envelope is the wire frame for every pushed event.
// UserID is set only for targeted events.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	MatchID   string          `json:"matchId"`
	UserID    string          `json:"userId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a fresh envelope.
func NewEnvelope(eventType EventType, matchID, userID string, payload any, at time.Time) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		MatchID:   matchID,
		UserID:    userID,
		Timestamp: at.UTC(),
		Payload:   data,
	}, nil
}

// ParsePayload parses envelope data into the appropriate payload struct
func ParsePayload(env Envelope) (any, error) {
	switch env.EventType {
	case EventTypePickMade:
		var payload PickMadePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRoundPreStart:
		var payload RoundPreStartPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRoundStart:
		var payload RoundStartPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}
}

const subjectRoot = "match"

// StreamSubjects is the subject filter covering every match event.
const StreamSubjects = subjectRoot + ".>"

// PickMadeSubjectFilter matches broadcast pick-made events of every match.
const PickMadeSubjectFilter = subjectRoot + ".*.events." + string(EventTypePickMade)

// Scope is a subscription scope on the push channel: a match broadcast scope,
// or a (match, user) targeted scope when UserID is set.
type Scope struct {
	MatchID string
	UserID  string
}

// Targeted reports whether the scope is keyed by a user.
func (s Scope) Targeted() bool { return s.UserID != "" }

func (s Scope) String() string {
	if s.Targeted() {
		return s.MatchID + "/" + s.UserID
	}
	return s.MatchID
}

// Subject returns the bus subject for an event in this scope.
func (s Scope) Subject(eventType EventType) string {
	if s.Targeted() {
		return fmt.Sprintf("%s.%s.users.%s.events.%s", subjectRoot, s.MatchID, s.UserID, eventType)
	}
	return fmt.Sprintf("%s.%s.events.%s", subjectRoot, s.MatchID, eventType)
}

// Wildcard returns the subject filter matching every event in this scope.
func (s Scope) Wildcard() string {
	if s.Targeted() {
		return fmt.Sprintf("%s.%s.users.%s.events.*", subjectRoot, s.MatchID, s.UserID)
	}
	return fmt.Sprintf("%s.%s.events.*", subjectRoot, s.MatchID)
}

// EnvelopeScope returns the scope an envelope was published to.
func EnvelopeScope(env Envelope) Scope {
	return Scope{MatchID: env.MatchID, UserID: env.UserID}
}

// EventTypeFromSubject extracts the trailing event type token of a subject.
func EventTypeFromSubject(subject string) EventType {
	i := strings.LastIndexByte(subject, '.')
	return EventType(subject[i+1:])
}
