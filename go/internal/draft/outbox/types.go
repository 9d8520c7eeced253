package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
	"github.com/mcdev12/matchdraft/go/internal/draft/matchsvc/db"
)

// Event is one stored outbox row.
type Event struct {
	ID        uuid.UUID
	MatchID   string
	EventType events.EventType
	Envelope  json.RawMessage
	CreatedAt time.Time
}

func eventFromRow(row db.MatchOutbox) Event {
	return Event{
		ID:        row.ID,
		MatchID:   row.MatchID,
		EventType: events.EventType(row.EventType),
		Envelope:  row.Envelope,
		CreatedAt: row.CreatedAt,
	}
}

// Decode returns the envelope the row was written from.
func (e Event) Decode() (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(e.Envelope, &env); err != nil {
		return events.Envelope{}, fmt.Errorf("decode outbox event %s: %w", e.ID, err)
	}
	return env, nil
}
