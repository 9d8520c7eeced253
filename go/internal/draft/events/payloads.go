package events

import (
	"time"

	"github.com/mcdev12/matchdraft/go/internal/models"
)

// Event payload types shared by the server, the gateway and the client session

// PickMadePayload is the payload for a pick-made event.
// Data is an optional optimistic full snapshot taken right after the pick.
type PickMadePayload struct {
	MatchID string           `json:"matchId"`
	Data    *models.Snapshot `json:"data,omitempty"`
}

// RoundPreStartPayload is the payload for a round-pre-start event
type RoundPreStartPayload struct {
	MatchID      string     `json:"matchId"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	RoundNumber  *int       `json:"roundNumber,omitempty"`
	DelaySeconds *int       `json:"delaySeconds,omitempty"`
	Message      string     `json:"message,omitempty"`
}

// RoundRef identifies the round a round-start event opens.
type RoundRef struct {
	RoundNumber int `json:"roundNumber"`
}

// RoundStartPayload is the payload for a round-start event
type RoundStartPayload struct {
	MatchID   string     `json:"matchId,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	Round     *RoundRef  `json:"round,omitempty"`
}
