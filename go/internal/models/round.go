package models

import "sort"

// RoundStatus defines the status of a round.
type RoundStatus string

const (
	RoundStatusPending          RoundStatus = "PENDING"
	RoundStatusSelectingPokemon RoundStatus = "SELECTING_POKEMON"
	RoundStatusComplete         RoundStatus = "COMPLETE"
	RoundStatusCancelled        RoundStatus = "CANCELLED"
)

// IsPickPhase reports whether picks may be made while a round is in this status.
func (s RoundStatus) IsPickPhase() bool {
	return s == RoundStatusPending || s == RoundStatusSelectingPokemon
}

// Round is one ordinal round of a match.
// Deadlines stay raw strings as delivered; callers parse them and skip invalid values.
type Round struct {
	ID           string             `json:"id"`
	RoundNumber  int                `json:"roundNumber"`
	Status       RoundStatus        `json:"status"`
	EndTimeRound *string            `json:"endTimeRound,omitempty"`
	Participants []RoundParticipant `json:"participants"`
}

// RoundParticipant is one side's pick state inside a round.
type RoundParticipant struct {
	MatchParticipantID    string  `json:"matchParticipantId"`
	SelectedUserPokemonID *string `json:"selectedUserPokemonId"`
	SelectedUserPokemon   *Entity `json:"selectedUserPokemon,omitempty"`
	OrderSelected         *int    `json:"orderSelected,omitempty"`
	EndTimeSelected       *string `json:"endTimeSelected,omitempty"`
}

// HasPicked reports whether this side has locked in an entity.
func (rp RoundParticipant) HasPicked() bool {
	return rp.SelectedUserPokemonID != nil && *rp.SelectedUserPokemonID != ""
}

// Participant returns the round participant for a match participant id.
func (r Round) Participant(matchParticipantID string) (RoundParticipant, bool) {
	for _, rp := range r.Participants {
		if rp.MatchParticipantID == matchParticipantID {
			return rp, true
		}
	}
	return RoundParticipant{}, false
}

// IsClosed reports whether no further picks can happen in the round.
func (r Round) IsClosed() bool {
	return r.Status == RoundStatusComplete || r.Status == RoundStatusCancelled
}

// SortRounds orders rounds by round number in place.
func SortRounds(rounds []Round) {
	sort.SliceStable(rounds, func(i, j int) bool {
		return rounds[i].RoundNumber < rounds[j].RoundNumber
	})
}

// FirstOpenRound returns the index of the first round that is not closed,
// or -1. rounds must be sorted.
func FirstOpenRound(rounds []Round) int {
	for i, r := range rounds {
		if !r.IsClosed() {
			return i
		}
	}
	return -1
}
