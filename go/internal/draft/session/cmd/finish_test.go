package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchdraft/go/internal/draft/roundstate"
	"github.com/mcdev12/matchdraft/go/internal/draft/session"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

type countingFetcher struct {
	snap  *models.Snapshot
	err   error
	calls int
}

func (f *countingFetcher) GetRoundState(ctx context.Context, matchID string) (*models.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func closedRoundView(id string, status models.RoundStatus) session.View {
	return session.View{
		Ready: true,
		Turn:  roundstate.TurnContext{CurrentRound: &models.Round{ID: id, Status: status}},
	}
}

func twoRounds(second models.RoundStatus) *models.Snapshot {
	return &models.Snapshot{
		Match: models.Match{ID: "m1", Status: models.MatchStatusCompleted, Participants: []models.Participant{
			{ID: "p1", UserID: "u1"},
			{ID: "p2", UserID: "u2"},
		}},
		Rounds: []models.Round{
			{ID: "r1", RoundNumber: 1, Status: models.RoundStatusComplete},
			{ID: "r2", RoundNumber: 2, Status: second},
		},
	}
}

func TestFinishWatchChecksEachClosedRoundOnce(t *testing.T) {
	ctx := context.Background()
	fetcher := &countingFetcher{snap: twoRounds(models.RoundStatusPending)}
	var out bytes.Buffer
	w := &finishWatch{client: fetcher, matchID: "m1", userID: "u1", out: &out}

	finished, err := w.finished(ctx, session.View{Ready: true, Turn: roundstate.TurnContext{
		CurrentRound: &models.Round{ID: "r1", Status: models.RoundStatusSelectingPokemon},
	}})
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Zero(t, fetcher.calls, "open round needs no check")

	for i := 0; i < 5; i++ {
		finished, err = w.finished(ctx, closedRoundView("r1", models.RoundStatusComplete))
		require.NoError(t, err)
		assert.False(t, finished)
	}
	assert.Equal(t, 1, fetcher.calls)
	assert.Empty(t, out.String())

	fetcher.snap = twoRounds(models.RoundStatusComplete)
	finished, err = w.finished(ctx, closedRoundView("r2", models.RoundStatusComplete))
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, 2, fetcher.calls)
	assert.Contains(t, out.String(), "match m1 COMPLETE")
}

func TestFinishWatchRetriesAfterTransientError(t *testing.T) {
	ctx := context.Background()
	fetcher := &countingFetcher{err: errors.New("connection reset")}
	w := &finishWatch{client: fetcher, matchID: "m1", userID: "u1", out: &bytes.Buffer{}}
	v := closedRoundView("r2", models.RoundStatusComplete)

	finished, err := w.finished(ctx, v)
	require.NoError(t, err)
	assert.False(t, finished)

	fetcher.err = nil
	fetcher.snap = twoRounds(models.RoundStatusComplete)
	finished, err = w.finished(ctx, v)
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, 2, fetcher.calls)

	w = &finishWatch{client: &countingFetcher{err: connect.NewError(connect.CodeNotFound, errors.New("no match"))}, matchID: "m1", out: &bytes.Buffer{}}
	_, err = w.finished(ctx, v)
	assert.Error(t, err)
}
