package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
	"github.com/mcdev12/matchdraft/go/internal/draft/matchsvc/db"
)

// ErrNotFound is returned when an outbox row is missing or already sent.
var ErrNotFound = errors.New("outbox event not found or already sent")

type Repository struct {
	queries *db.Queries
}

func NewRepository(dbConn *sql.DB) *Repository {
	return &Repository{queries: db.New(dbConn)}
}

// Insert stores env. The envelope's event id becomes the row id.
func (r *Repository) Insert(ctx context.Context, env events.Envelope) error {
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", env.EventID, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	err = r.queries.InsertOutbox(ctx, db.InsertOutboxParams{
		ID:        id,
		MatchID:   env.MatchID,
		EventType: string(env.EventType),
		Envelope:  data,
	})
	if err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", env.EventType, err)
	}
	return nil
}

func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]Event, error) {
	rows, err := r.queries.FetchUnsentOutbox(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	out := make([]Event, len(rows))
	for i, row := range rows {
		out[i] = eventFromRow(row)
	}
	return out, nil
}

func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (Event, error) {
	row, err := r.queries.FetchOutboxByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	return eventFromRow(row), nil
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.MarkOutboxSent(ctx, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

// Writer stores events for later relay. It satisfies the match service's
// publisher so picks and round transitions land in the outbox.
type Writer struct {
	store interface {
		Insert(ctx context.Context, env events.Envelope) error
	}
}

func NewWriter(repo *Repository) *Writer {
	return &Writer{store: repo}
}

func (w *Writer) Publish(ctx context.Context, env events.Envelope) error {
	return w.store.Insert(ctx, env)
}
