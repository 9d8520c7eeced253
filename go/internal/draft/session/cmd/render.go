package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mcdev12/matchdraft/go/internal/draft/session"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

// renderView prints the turn context, countdown and choices.
func renderView(w io.Writer, v session.View) {
	if !v.Ready {
		fmt.Fprintln(w, "loading round state...")
		return
	}

	round := v.Turn.CurrentRound
	if round != nil {
		fmt.Fprintf(w, "round %d [%s]", round.RoundNumber, round.Status)
	}
	switch {
	case v.PreRoundActive:
		fmt.Fprintf(w, "  starts in %ds\n", v.PreRoundRemaining)
	case v.Turn.IsLocalTurn:
		fmt.Fprintf(w, "  YOUR PICK  %ds left\n", v.RemainingSec)
	case v.Turn.IsRemoteTurn:
		fmt.Fprintf(w, "  opponent picking  %ds left\n", v.RemainingSec)
	default:
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "  you:      %s\n", picks(v.Turn.LocalPicks[:], v.Turn.PickedEntityMap))
	fmt.Fprintf(w, "  opponent: %s\n", picks(v.Turn.RemotePicks[:], v.Turn.PickedEntityMap))

	if v.PendingEntityID != "" {
		fmt.Fprintf(w, "  submitting %s...\n", v.PendingEntityID)
	} else if v.Turn.IsLocalTurn {
		fmt.Fprintln(w, "  pick one of:")
		for _, e := range v.Pickable {
			fmt.Fprintf(w, "    %-12s %s (lv %d)\n", e.ID, e.Name, e.Level)
		}
	}
	if v.PullOnly {
		fmt.Fprintln(w, "  (live updates unavailable)")
	}
}

func picks(slots []*string, known map[string]models.Entity) string {
	var names []string
	for _, id := range slots {
		if id == nil {
			names = append(names, "-")
			continue
		}
		if e, ok := known[*id]; ok && e.Name != "" {
			names = append(names, e.Name)
		} else {
			names = append(names, *id)
		}
	}
	return strings.Join(names, ", ")
}

func renderNotice(w io.Writer, n session.Notice) {
	switch n.Kind {
	case session.NoticeSubmissionFailed:
		if n.Retryable {
			fmt.Fprintf(w, "! pick %s failed (%s), try again\n", n.EntityID, n.Message)
		} else {
			fmt.Fprintf(w, "! pick %s rejected: %s\n", n.EntityID, n.Message)
		}
	default:
		fmt.Fprintf(w, "! %s\n", n.Message)
	}
}

// renderSummary prints every round's selections once the match is over.
func renderSummary(w io.Writer, snap *models.Snapshot, userID string) {
	rounds := append([]models.Round(nil), snap.Rounds...)
	models.SortRounds(rounds)

	me, _ := snap.Match.ParticipantForUser(userID)
	fmt.Fprintf(w, "match %s %s\n", snap.Match.ID, snap.Match.Status)
	for _, r := range rounds {
		var mine, theirs string
		for _, rp := range r.Participants {
			name := "-"
			if rp.SelectedUserPokemon != nil {
				name = rp.SelectedUserPokemon.Name
			} else if rp.SelectedUserPokemonID != nil {
				name = *rp.SelectedUserPokemonID
			}
			if rp.MatchParticipantID == me.ID {
				mine = name
			} else {
				theirs = name
			}
		}
		fmt.Fprintf(w, "  round %d: %s vs %s\n", r.RoundNumber, mine, theirs)
	}
}
