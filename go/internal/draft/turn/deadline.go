package turn

import (
	"time"

	"github.com/mcdev12/matchdraft/go/internal/models"
)

// ResolveDeadline picks the authoritative deadline for the active picker.
// Candidates in order: picker's own deadline, the shared round deadline,
// the local side's deadline, the remote side's deadline. Unparsable values are skipped.
func ResolveDeadline(round *models.Round, sides Sides, picker Picker) *time.Time {
	if round == nil {
		return nil
	}

	var candidates []*string
	if id := picker.ParticipantID(sides); id != "" {
		if rp, ok := round.Participant(id); ok {
			candidates = append(candidates, rp.EndTimeSelected)
		}
	}
	candidates = append(candidates, round.EndTimeRound)
	if rp, ok := round.Participant(sides.LocalID); ok {
		candidates = append(candidates, rp.EndTimeSelected)
	}
	if rp, ok := round.Participant(sides.RemoteID); ok {
		candidates = append(candidates, rp.EndTimeSelected)
	}

	for _, c := range candidates {
		if t, ok := ParseTimestamp(c); ok {
			return &t
		}
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a wire timestamp. Layouts without a zone are read as UTC.
func ParseTimestamp(raw *string) (time.Time, bool) {
	if raw == nil || *raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
