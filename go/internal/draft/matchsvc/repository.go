package matchsvc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/matchdraft/go/internal/draft/matchsvc/db"
	"github.com/mcdev12/matchdraft/go/internal/models"
	"github.com/mcdev12/matchdraft/go/internal/sqlutil"
)

// PostgresRepository stores matches in Postgres.
type PostgresRepository struct {
	queries *db.Queries
	db      *sql.DB
}

func NewPostgresRepository(database *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		queries: db.New(database),
		db:      database,
	}
}

func parseID(kind, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	return parsed, nil
}

func (r *PostgresRepository) GetSnapshot(ctx context.Context, matchID string) (*models.Snapshot, error) {
	id, err := parseID("match", matchID)
	if err != nil {
		return nil, err
	}

	match, err := r.queries.GetMatch(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	participants, err := r.queries.ListMatchParticipants(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	rounds, err := r.queries.ListRounds(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	seats, err := r.queries.ListRoundParticipantsByMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list round participants: %w", err)
	}

	snap := &models.Snapshot{
		Match: models.Match{
			ID:           match.ID.String(),
			Status:       models.MatchStatus(match.Status),
			Participants: make([]models.Participant, 0, len(participants)),
		},
		Rounds: make([]models.Round, 0, len(rounds)),
	}
	for _, p := range participants {
		snap.Match.Participants = append(snap.Match.Participants, models.Participant{
			ID:          p.ID.String(),
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
		})
	}

	byRound := make(map[uuid.UUID][]models.RoundParticipant, len(rounds))
	for _, s := range seats {
		byRound[s.RoundID] = append(byRound[s.RoundID], r.dbSeatToModel(s))
	}
	for _, rd := range rounds {
		round := models.Round{
			ID:           rd.ID.String(),
			RoundNumber:  int(rd.RoundNumber),
			Status:       models.RoundStatus(rd.Status),
			Participants: byRound[rd.ID],
		}
		if t := sqlutil.FromSqlTime(rd.EndTimeRound); t != nil {
			round.EndTimeRound = FormatTime(*t)
		}
		snap.Rounds = append(snap.Rounds, round)
	}
	return snap, nil
}

func (r *PostgresRepository) dbSeatToModel(s db.ListRoundParticipantsByMatchRow) models.RoundParticipant {
	rp := models.RoundParticipant{
		MatchParticipantID: s.MatchParticipantID.String(),
		OrderSelected:      sqlutil.FromSqlInt32(s.OrderSelected),
	}
	if t := sqlutil.FromSqlTime(s.EndTimeSelected); t != nil {
		rp.EndTimeSelected = FormatTime(*t)
	}
	if id := sqlutil.FromNullUUID(s.SelectedEntityID); id != nil {
		entityID := *id
		rp.SelectedUserPokemonID = id
		if s.Name.Valid {
			rp.SelectedUserPokemon = &models.Entity{
				ID:         entityID,
				Name:       s.Name.String,
				Species:    sqlutil.FromSqlString(s.Species, ""),
				Level:      levelOf(s.Level),
				ImageURL:   sqlutil.FromSqlString(s.ImageUrl, ""),
				Attributes: rawAttributes(s.Attributes.RawMessage, s.Attributes.Valid),
			}
		}
	}
	return rp
}

func (r *PostgresRepository) ListOwnedEntities(ctx context.Context, userID string) ([]models.Entity, error) {
	rows, err := r.queries.ListEntitiesByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	entities := make([]models.Entity, len(rows))
	for i, e := range rows {
		entities[i] = models.Entity{
			ID:         e.ID.String(),
			OwnerID:    e.OwnerID,
			Name:       e.Name,
			Species:    sqlutil.FromSqlString(e.Species, ""),
			Level:      levelOf(e.Level),
			ImageURL:   sqlutil.FromSqlString(e.ImageUrl, ""),
			Attributes: rawAttributes(e.Attributes.RawMessage, e.Attributes.Valid),
		}
	}
	return entities, nil
}

// RecordPick writes the selection and the opponent's deadline in one transaction.
func (r *PostgresRepository) RecordPick(ctx context.Context, req RecordPickRequest) error {
	roundID, err := parseID("round", req.RoundID)
	if err != nil {
		return err
	}
	participantID, err := parseID("participant", req.ParticipantID)
	if err != nil {
		return err
	}
	entityID, err := parseID("entity", req.EntityID)
	if err != nil {
		return err
	}

	return sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		rows, err := q.SelectEntity(ctx, db.SelectEntityParams{
			RoundID:            roundID,
			MatchParticipantID: participantID,
			SelectedEntityID:   uuid.NullUUID{UUID: entityID, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("select entity: %w", err)
		}
		if rows == 0 {
			return ErrAlreadyPicked
		}

		if req.NextDeadline == nil {
			return nil
		}
		nextID, err := parseID("participant", req.NextParticipantID)
		if err != nil {
			return err
		}
		if err := q.SetEndTimeSelected(ctx, db.SetEndTimeSelectedParams{
			RoundID:            roundID,
			MatchParticipantID: nextID,
			EndTimeSelected:    sqlutil.ToSqlTime(req.NextDeadline),
		}); err != nil {
			return fmt.Errorf("set next deadline: %w", err)
		}
		return nil
	})
}

// OpenRound flips the round into selection and seeds pick deadlines.
func (r *PostgresRepository) OpenRound(ctx context.Context, req OpenRoundRequest) error {
	roundID, err := parseID("round", req.RoundID)
	if err != nil {
		return err
	}
	return sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *db.Queries) error {
		if err := q.OpenRound(ctx, db.OpenRoundParams{
			ID:           roundID,
			EndTimeRound: sqlutil.ToSqlTime(&req.EndTimeRound),
		}); err != nil {
			return fmt.Errorf("open round: %w", err)
		}
		for participant, deadline := range req.Deadlines {
			participantID, err := parseID("participant", participant)
			if err != nil {
				return err
			}
			if err := q.SetEndTimeSelected(ctx, db.SetEndTimeSelectedParams{
				RoundID:            roundID,
				MatchParticipantID: participantID,
				EndTimeSelected:    sqlutil.ToSqlTime(&deadline),
			}); err != nil {
				return fmt.Errorf("set deadline: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresRepository) UpdateRoundStatus(ctx context.Context, roundID string, status models.RoundStatus) error {
	id, err := parseID("round", roundID)
	if err != nil {
		return err
	}
	if err := r.queries.UpdateRoundStatus(ctx, db.UpdateRoundStatusParams{ID: id, Status: string(status)}); err != nil {
		return fmt.Errorf("failed to update round status: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateMatchStatus(ctx context.Context, matchID string, status models.MatchStatus) error {
	id, err := parseID("match", matchID)
	if err != nil {
		return err
	}
	if err := r.queries.UpdateMatchStatus(ctx, db.UpdateMatchStatusParams{ID: id, Status: string(status)}); err != nil {
		return fmt.Errorf("failed to update match status: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListActiveMatchIDs(ctx context.Context) ([]string, error) {
	ids, err := r.queries.ListActiveMatchIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active matches: %w", err)
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out, nil
}

func levelOf(v sql.NullInt32) int {
	if l := sqlutil.FromSqlInt32(v); l != nil {
		return *l
	}
	return 0
}

func rawAttributes(raw json.RawMessage, valid bool) json.RawMessage {
	if !valid || len(raw) == 0 {
		return nil
	}
	return raw
}
