package db

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

const insertOutbox = `-- name: InsertOutbox :exec
INSERT INTO match_outbox (id, match_id, event_type, envelope) VALUES ($1, $2, $3, $4)
`

type InsertOutboxParams struct {
	ID        uuid.UUID       `json:"id"`
	MatchID   string          `json:"match_id"`
	EventType string          `json:"event_type"`
	Envelope  json.RawMessage `json:"envelope"`
}

func (q *Queries) InsertOutbox(ctx context.Context, arg InsertOutboxParams) error {
	_, err := q.db.ExecContext(ctx, insertOutbox, arg.ID, arg.MatchID, arg.EventType, arg.Envelope)
	return err
}

const fetchOutboxByID = `-- name: FetchOutboxByID :one
SELECT id, match_id, event_type, envelope, created_at, sent_at
FROM match_outbox WHERE id = $1 AND sent_at IS NULL
`

func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (MatchOutbox, error) {
	row := q.db.QueryRowContext(ctx, fetchOutboxByID, id)
	var i MatchOutbox
	err := row.Scan(
		&i.ID,
		&i.MatchID,
		&i.EventType,
		&i.Envelope,
		&i.CreatedAt,
		&i.SentAt,
	)
	return i, err
}

const fetchUnsentOutbox = `-- name: FetchUnsentOutbox :many
SELECT id, match_id, event_type, envelope, created_at, sent_at
FROM match_outbox WHERE sent_at IS NULL ORDER BY created_at LIMIT $1
`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]MatchOutbox, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MatchOutbox
	for rows.Next() {
		var i MatchOutbox
		if err := rows.Scan(
			&i.ID,
			&i.MatchID,
			&i.EventType,
			&i.Envelope,
			&i.CreatedAt,
			&i.SentAt,
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

const markOutboxSent = `-- name: MarkOutboxSent :exec
UPDATE match_outbox SET sent_at = NOW() WHERE id = $1
`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id)
	return err
}
