package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const getMatch = `-- name: GetMatch :one
SELECT id, status FROM matches WHERE id = $1
`

func (q *Queries) GetMatch(ctx context.Context, id uuid.UUID) (Match, error) {
	row := q.db.QueryRowContext(ctx, getMatch, id)
	var i Match
	err := row.Scan(&i.ID, &i.Status)
	return i, err
}

const updateMatchStatus = `-- name: UpdateMatchStatus :exec
UPDATE matches SET status = $2 WHERE id = $1
`

type UpdateMatchStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateMatchStatus(ctx context.Context, arg UpdateMatchStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateMatchStatus, arg.ID, arg.Status)
	return err
}

const listActiveMatchIDs = `-- name: ListActiveMatchIDs :many
SELECT id FROM matches WHERE status IN ('PENDING', 'IN_PROGRESS') ORDER BY created_at
`

func (q *Queries) ListActiveMatchIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := q.db.QueryContext(ctx, listActiveMatchIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listMatchParticipants = `-- name: ListMatchParticipants :many
SELECT id, match_id, user_id, display_name, seat
FROM match_participants WHERE match_id = $1 ORDER BY seat
`

func (q *Queries) ListMatchParticipants(ctx context.Context, matchID uuid.UUID) ([]MatchParticipant, error) {
	rows, err := q.db.QueryContext(ctx, listMatchParticipants, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MatchParticipant
	for rows.Next() {
		var i MatchParticipant
		if err := rows.Scan(&i.ID, &i.MatchID, &i.UserID, &i.DisplayName, &i.Seat); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRounds = `-- name: ListRounds :many
SELECT id, match_id, round_number, status, end_time_round
FROM rounds WHERE match_id = $1 ORDER BY round_number
`

func (q *Queries) ListRounds(ctx context.Context, matchID uuid.UUID) ([]Round, error) {
	rows, err := q.db.QueryContext(ctx, listRounds, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Round
	for rows.Next() {
		var i Round
		if err := rows.Scan(&i.ID, &i.MatchID, &i.RoundNumber, &i.Status, &i.EndTimeRound); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRoundParticipantsByMatch = `-- name: ListRoundParticipantsByMatch :many
SELECT rp.round_id, rp.match_participant_id, rp.selected_entity_id, rp.order_selected, rp.end_time_selected,
       e.name, e.species, e.level, e.image_url, e.attributes
FROM round_participants rp
JOIN rounds r ON r.id = rp.round_id
LEFT JOIN user_entities e ON e.id = rp.selected_entity_id
WHERE r.match_id = $1
ORDER BY r.round_number, rp.order_selected NULLS LAST
`

type ListRoundParticipantsByMatchRow struct {
	RoundID            uuid.UUID             `json:"round_id"`
	MatchParticipantID uuid.UUID             `json:"match_participant_id"`
	SelectedEntityID   uuid.NullUUID         `json:"selected_entity_id"`
	OrderSelected      sql.NullInt32         `json:"order_selected"`
	EndTimeSelected    sql.NullTime          `json:"end_time_selected"`
	Name               sql.NullString        `json:"name"`
	Species            sql.NullString        `json:"species"`
	Level              sql.NullInt32         `json:"level"`
	ImageUrl           sql.NullString        `json:"image_url"`
	Attributes         pqtype.NullRawMessage `json:"attributes"`
}

func (q *Queries) ListRoundParticipantsByMatch(ctx context.Context, matchID uuid.UUID) ([]ListRoundParticipantsByMatchRow, error) {
	rows, err := q.db.QueryContext(ctx, listRoundParticipantsByMatch, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListRoundParticipantsByMatchRow
	for rows.Next() {
		var i ListRoundParticipantsByMatchRow
		if err := rows.Scan(
			&i.RoundID,
			&i.MatchParticipantID,
			&i.SelectedEntityID,
			&i.OrderSelected,
			&i.EndTimeSelected,
			&i.Name,
			&i.Species,
			&i.Level,
			&i.ImageUrl,
			&i.Attributes,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listEntitiesByOwner = `-- name: ListEntitiesByOwner :many
SELECT id, owner_id, name, species, level, image_url, attributes
FROM user_entities WHERE owner_id = $1 ORDER BY name
`

func (q *Queries) ListEntitiesByOwner(ctx context.Context, ownerID string) ([]UserEntity, error) {
	rows, err := q.db.QueryContext(ctx, listEntitiesByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UserEntity
	for rows.Next() {
		var i UserEntity
		if err := rows.Scan(
			&i.ID,
			&i.OwnerID,
			&i.Name,
			&i.Species,
			&i.Level,
			&i.ImageUrl,
			&i.Attributes,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const selectEntity = `-- name: SelectEntity :execrows
UPDATE round_participants
SET selected_entity_id = $3, selected_at = NOW()
WHERE round_id = $1 AND match_participant_id = $2 AND selected_entity_id IS NULL
`

type SelectEntityParams struct {
	RoundID            uuid.UUID     `json:"round_id"`
	MatchParticipantID uuid.UUID     `json:"match_participant_id"`
	SelectedEntityID   uuid.NullUUID `json:"selected_entity_id"`
}

func (q *Queries) SelectEntity(ctx context.Context, arg SelectEntityParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, selectEntity, arg.RoundID, arg.MatchParticipantID, arg.SelectedEntityID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setEndTimeSelected = `-- name: SetEndTimeSelected :exec
UPDATE round_participants
SET end_time_selected = $3
WHERE round_id = $1 AND match_participant_id = $2 AND end_time_selected IS NULL
`

type SetEndTimeSelectedParams struct {
	RoundID            uuid.UUID    `json:"round_id"`
	MatchParticipantID uuid.UUID    `json:"match_participant_id"`
	EndTimeSelected    sql.NullTime `json:"end_time_selected"`
}

func (q *Queries) SetEndTimeSelected(ctx context.Context, arg SetEndTimeSelectedParams) error {
	_, err := q.db.ExecContext(ctx, setEndTimeSelected, arg.RoundID, arg.MatchParticipantID, arg.EndTimeSelected)
	return err
}

const updateRoundStatus = `-- name: UpdateRoundStatus :exec
UPDATE rounds SET status = $2 WHERE id = $1
`

type UpdateRoundStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateRoundStatus(ctx context.Context, arg UpdateRoundStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateRoundStatus, arg.ID, arg.Status)
	return err
}

const openRound = `-- name: OpenRound :exec
UPDATE rounds SET status = 'SELECTING_POKEMON', end_time_round = $2 WHERE id = $1
`

type OpenRoundParams struct {
	ID           uuid.UUID    `json:"id"`
	EndTimeRound sql.NullTime `json:"end_time_round"`
}

func (q *Queries) OpenRound(ctx context.Context, arg OpenRoundParams) error {
	_, err := q.db.ExecContext(ctx, openRound, arg.ID, arg.EndTimeRound)
	return err
}
