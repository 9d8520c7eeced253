package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/matchdraft/go/internal/dbconfig"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

// Fixture is the same layout the match server loads in memory mode.
type Fixture struct {
	Matches  []models.Snapshot `json:"matches"`
	Entities []models.Entity   `json:"entities"`
}

func main() {
	ctx := context.Background()

	path := os.Getenv("SEED_FILE")
	if path == "" {
		path = "go/internal/assets/match_fixture.json"
	}

	// 1) Load the fixture
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read fixture: %v\n", err)
		os.Exit(1)
	}
	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal fixture: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Entities first, rounds reference them
	total, inserted, skipped, errs := len(fixture.Entities), 0, 0, 0
	for _, e := range fixture.Entities {
		tag, err := pool.Exec(ctx, `
            INSERT INTO user_entities (
              id, owner_id, name, species, level, image_url, attributes
            ) VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (id) DO NOTHING
        `, e.ID, e.OwnerID, e.Name, nullString(e.Species), nullInt(e.Level), nullString(e.ImageURL), nullJSON(e.Attributes))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error inserting entity %s: %v\n", e.ID, err)
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	fmt.Printf(
		"Entities seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)

	// 4) One transaction per match
	total, inserted, skipped, errs = len(fixture.Matches), 0, 0, 0
	for _, snap := range fixture.Matches {
		created, err := seedMatch(ctx, pool, snap)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "error seeding match %s: %v\n", snap.Match.ID, err)
			errs++
		case created:
			inserted++
		default:
			skipped++
		}
	}
	fmt.Printf(
		"Matches seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)
}

// seedMatch writes a match with its seats and rounds. An existing match is
// left untouched.
func seedMatch(ctx context.Context, pool *pgxpool.Pool, snap models.Snapshot) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	status := snap.Match.Status
	if status == "" {
		status = models.MatchStatusPending
	}
	tag, err := tx.Exec(ctx, `
        INSERT INTO matches (id, status) VALUES ($1,$2)
        ON CONFLICT (id) DO NOTHING
    `, snap.Match.ID, status)
	if err != nil {
		return false, fmt.Errorf("insert match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	for i, p := range snap.Match.Participants {
		if _, err := tx.Exec(ctx, `
            INSERT INTO match_participants (id, match_id, user_id, display_name, seat)
            VALUES ($1,$2,$3,$4,$5)
        `, p.ID, snap.Match.ID, p.UserID, p.DisplayName, i+1); err != nil {
			return false, fmt.Errorf("insert participant %s: %w", p.ID, err)
		}
	}

	for _, r := range snap.Rounds {
		if err := seedRound(ctx, tx, snap.Match, r); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func seedRound(ctx context.Context, tx pgx.Tx, match models.Match, r models.Round) error {
	status := r.Status
	if status == "" {
		status = models.RoundStatusPending
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO rounds (id, match_id, round_number, status, end_time_round)
        VALUES ($1,$2,$3,$4,$5)
    `, r.ID, match.ID, r.RoundNumber, status, r.EndTimeRound); err != nil {
		return fmt.Errorf("insert round %d: %w", r.RoundNumber, err)
	}

	// Seats missing from the fixture still get an empty row.
	for _, p := range match.Participants {
		rp, _ := r.Participant(p.ID)
		if _, err := tx.Exec(ctx, `
            INSERT INTO round_participants (
              round_id, match_participant_id, selected_entity_id,
              order_selected, end_time_selected
            ) VALUES ($1,$2,$3,$4,$5)
        `, r.ID, p.ID, rp.SelectedUserPokemonID, rp.OrderSelected, rp.EndTimeSelected); err != nil {
			return fmt.Errorf("insert round %d participant %s: %w", r.RoundNumber, p.ID, err)
		}
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func nullJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
