package turn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchdraft/go/internal/models"
)

func TestResolveDeadline(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *string {
		s := base.Add(d).Format(time.RFC3339Nano)
		return &s
	}

	cases := []struct {
		name   string
		round  func() *models.Round
		picker Picker
		want   *time.Time
	}{
		{
			name: "picker deadline beats round deadline",
			round: func() *models.Round {
				r := round(models.RoundStatusSelectingPokemon,
					models.RoundParticipant{EndTimeSelected: at(30 * time.Second)},
					models.RoundParticipant{})
				r.EndTimeRound = at(60 * time.Second)
				return r
			},
			picker: PickerLocal,
			want:   timePtr(base.Add(30 * time.Second)),
		},
		{
			name: "round deadline when picker has none",
			round: func() *models.Round {
				r := round(models.RoundStatusSelectingPokemon,
					models.RoundParticipant{EndTimeSelected: at(10 * time.Second)},
					models.RoundParticipant{})
				r.EndTimeRound = at(60 * time.Second)
				return r
			},
			picker: PickerRemote,
			want:   timePtr(base.Add(60 * time.Second)),
		},
		{
			name: "local deadline guards a desynced picker",
			round: func() *models.Round {
				return round(models.RoundStatusSelectingPokemon,
					models.RoundParticipant{EndTimeSelected: at(15 * time.Second)},
					models.RoundParticipant{})
			},
			picker: PickerRemote,
			want:   timePtr(base.Add(15 * time.Second)),
		},
		{
			name: "remote deadline as last resort",
			round: func() *models.Round {
				return round(models.RoundStatusSelectingPokemon,
					models.RoundParticipant{},
					models.RoundParticipant{EndTimeSelected: at(20 * time.Second)})
			},
			picker: PickerNone,
			want:   timePtr(base.Add(20 * time.Second)),
		},
		{
			name: "malformed candidates are skipped",
			round: func() *models.Round {
				r := round(models.RoundStatusSelectingPokemon,
					models.RoundParticipant{EndTimeSelected: strPtr("not-a-time")},
					models.RoundParticipant{EndTimeSelected: at(45 * time.Second)})
				r.EndTimeRound = strPtr("")
				return r
			},
			picker: PickerLocal,
			want:   timePtr(base.Add(45 * time.Second)),
		},
		{
			name: "nothing valid",
			round: func() *models.Round {
				return round(models.RoundStatusSelectingPokemon,
					models.RoundParticipant{EndTimeSelected: strPtr("garbage")},
					models.RoundParticipant{})
			},
			picker: PickerLocal,
			want:   nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveDeadline(tc.round(), sides, tc.picker)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tc.want.Equal(*got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestParseTimestamp_NaiveLayoutIsUTC(t *testing.T) {
	got, ok := ParseTimestamp(strPtr("2025-03-01T12:00:05.250"))
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 5, 250_000_000, time.UTC), got)
}

func timePtr(t time.Time) *time.Time { return &t }
