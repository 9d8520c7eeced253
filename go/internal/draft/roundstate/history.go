package roundstate

import (
	"github.com/mcdev12/matchdraft/go/internal/draft/turn"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

// PickSlots is the number of picks each side makes in a match.
const PickSlots = 3

// History is the pick record derived from every round of a snapshot.
type History struct {
	Local    [PickSlots]*string
	Remote   [PickSlots]*string
	Entities map[string]models.Entity
}

// TrackPicks scans all rounds, in order, for locked-in selections.
// Each side's picks fill its slots in round order, so a round without a pick
// (cancelled, or still open) leaves no gap before later picks.
func TrackPicks(rounds []models.Round, sides turn.Sides) History {
	h := History{Entities: make(map[string]models.Entity)}
	var local, remote int

	for _, r := range rounds {
		for _, rp := range r.Participants {
			if !rp.HasPicked() {
				continue
			}
			id := *rp.SelectedUserPokemonID

			entity := models.Entity{ID: id}
			if rp.SelectedUserPokemon != nil {
				entity = *rp.SelectedUserPokemon
				entity.ID = id
			}
			h.Entities[id] = entity

			switch rp.MatchParticipantID {
			case sides.LocalID:
				if local < PickSlots {
					h.Local[local] = &id
					local++
				}
			case sides.RemoteID:
				if remote < PickSlots {
					h.Remote[remote] = &id
					remote++
				}
			}
		}
	}
	return h
}
