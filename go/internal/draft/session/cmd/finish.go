package main

import (
	"context"
	"io"

	"github.com/mcdev12/matchdraft/go/internal/draft/matchapi"
	"github.com/mcdev12/matchdraft/go/internal/draft/session"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

type roundStateFetcher interface {
	GetRoundState(ctx context.Context, matchID string) (*models.Snapshot, error)
}

// finishWatch confirms with the server that the match is over once the
// current round reads closed. Each round id and status pair is checked once.
type finishWatch struct {
	client  roundStateFetcher
	matchID string
	userID  string
	out     io.Writer
	checked string
}

func (w *finishWatch) finished(ctx context.Context, v session.View) (bool, error) {
	round := v.Turn.CurrentRound
	if !v.Ready || round == nil || !round.IsClosed() {
		return false, nil
	}
	key := round.ID + "/" + string(round.Status)
	if key == w.checked {
		return false, nil
	}

	snap, err := w.client.GetRoundState(ctx, w.matchID)
	if err != nil {
		if matchapi.Retryable(err) {
			return false, nil
		}
		return false, err
	}
	w.checked = key
	if models.FirstOpenRound(snap.Rounds) >= 0 {
		return false, nil
	}
	renderSummary(w.out, snap, w.userID)
	return true, nil
}
