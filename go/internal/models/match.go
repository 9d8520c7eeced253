package models

// MatchStatus defines the overall status of a match.
type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "PENDING"
	MatchStatusInProgress MatchStatus = "IN_PROGRESS"
	MatchStatusCompleted  MatchStatus = "COMPLETE"
	MatchStatusCancelled  MatchStatus = "CANCELLED"
)

// Match is the server-owned record of a two-player match.
type Match struct {
	ID           string        `json:"id"`
	Status       MatchStatus   `json:"status"`
	Participants []Participant `json:"participants"`
}

// Participant is a match-scoped seat linked to a user.
type Participant struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Snapshot is a full point-in-time view of a match and its rounds as served by the pull interface.
type Snapshot struct {
	Match  Match   `json:"match"`
	Rounds []Round `json:"rounds"`
}

// ParticipantForUser returns the participant linked to userID.
func (m Match) ParticipantForUser(userID string) (Participant, bool) {
	for _, p := range m.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// Opponent returns the participant that is not participantID.
func (m Match) Opponent(participantID string) (Participant, bool) {
	for _, p := range m.Participants {
		if p.ID != participantID {
			return p, true
		}
	}
	return Participant{}, false
}

// RoundRef addresses the round a pick is submitted for.
type RoundRef struct {
	MatchID       string `json:"matchId"`
	RoundID       string `json:"roundId"`
	ParticipantID string `json:"participantId"`
}
