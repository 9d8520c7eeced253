package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Match struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

type MatchParticipant struct {
	ID          uuid.UUID `json:"id"`
	MatchID     uuid.UUID `json:"match_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Seat        int32     `json:"seat"`
}

type Round struct {
	ID           uuid.UUID    `json:"id"`
	MatchID      uuid.UUID    `json:"match_id"`
	RoundNumber  int32        `json:"round_number"`
	Status       string       `json:"status"`
	EndTimeRound sql.NullTime `json:"end_time_round"`
}

type UserEntity struct {
	ID         uuid.UUID             `json:"id"`
	OwnerID    string                `json:"owner_id"`
	Name       string                `json:"name"`
	Species    sql.NullString        `json:"species"`
	Level      sql.NullInt32         `json:"level"`
	ImageUrl   sql.NullString        `json:"image_url"`
	Attributes pqtype.NullRawMessage `json:"attributes"`
}

type MatchOutbox struct {
	ID        uuid.UUID       `json:"id"`
	MatchID   string          `json:"match_id"`
	EventType string          `json:"event_type"`
	Envelope  json.RawMessage `json:"envelope"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    sql.NullTime    `json:"sent_at"`
}
