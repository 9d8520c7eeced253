// Package turn derives whose turn it is and when that turn ends from a round snapshot.
// Everything here is pure: the same round always yields the same answer.
package turn

import "github.com/mcdev12/matchdraft/go/internal/models"

// Picker identifies the side expected to act.
type Picker string

const (
	PickerNone   Picker = "none"
	PickerLocal  Picker = "local"
	PickerRemote Picker = "remote"
)

// Sides names the two match participants from the point of view of one user.
type Sides struct {
	LocalID  string
	RemoteID string
}

// Result is the resolved turn for a round.
type Result struct {
	IsLocalTurn  bool   `json:"isLocalTurn"`
	IsRemoteTurn bool   `json:"isRemoteTurn"`
	Picker       Picker `json:"picker"`
}

func resultFor(p Picker) Result {
	return Result{
		IsLocalTurn:  p == PickerLocal,
		IsRemoteTurn: p == PickerRemote,
		Picker:       p,
	}
}

// Resolve returns the active picker of a round.
// PENDING and SELECTING_POKEMON resolve identically; any other status has no picker.
func Resolve(round *models.Round, sides Sides) Result {
	if round == nil || !round.Status.IsPickPhase() {
		return resultFor(PickerNone)
	}

	local, okLocal := round.Participant(sides.LocalID)
	remote, okRemote := round.Participant(sides.RemoteID)
	if !okLocal || !okRemote {
		return resultFor(PickerNone)
	}

	localPicked, remotePicked := local.HasPicked(), remote.HasPicked()
	switch {
	case localPicked && remotePicked:
		// waiting for the server to advance the round
		return resultFor(PickerNone)
	case localPicked:
		return resultFor(PickerRemote)
	case remotePicked:
		return resultFor(PickerLocal)
	}

	return resultFor(byOrder(local.OrderSelected, remote.OrderSelected))
}

// byOrder breaks the tie when neither side has picked. Lower order acts first.
// With an order missing on either side only an explicit order of 1 grants the turn.
func byOrder(local, remote *int) Picker {
	if local != nil && remote != nil {
		switch {
		case *local < *remote:
			return PickerLocal
		case *remote < *local:
			return PickerRemote
		default:
			return PickerNone
		}
	}
	if local != nil && *local == 1 {
		return PickerLocal
	}
	if remote != nil && *remote == 1 {
		return PickerRemote
	}
	return PickerNone
}

// ParticipantID returns the match participant id of the picker, or "" for PickerNone.
func (p Picker) ParticipantID(sides Sides) string {
	switch p {
	case PickerLocal:
		return sides.LocalID
	case PickerRemote:
		return sides.RemoteID
	default:
		return ""
	}
}
