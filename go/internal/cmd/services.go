package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/dbconfig"
	"github.com/mcdev12/matchdraft/go/internal/draft/eventbus"
	"github.com/mcdev12/matchdraft/go/internal/draft/matchsvc"
	"github.com/mcdev12/matchdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/matchdraft/go/internal/draft/outbox"
	"github.com/mcdev12/matchdraft/go/internal/models"
)

type Services struct {
	Match        *matchsvc.Service
	Orchestrator *orchestrator.Orchestrator
	Relay        *outbox.Listener // nil without Postgres

	bus      *eventbus.JetStreamPublisher
	database *sql.DB
}

func (s *Services) Close() {
	if err := s.bus.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close event bus")
	}
}

// Ready reports whether the stores the match server depends on are reachable.
func (s *Services) Ready(ctx context.Context) error {
	if s.database != nil {
		if err := s.database.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if !s.bus.Connected() {
		return errors.New("event bus disconnected")
	}
	return nil
}

// setupServices wires storage, publishing, the match app and its round clock.
// With a database, events go through the outbox; otherwise straight to the bus.
func setupServices(ctx context.Context, config *Config, database *sql.DB, dbConfig dbconfig.Config) (*Services, error) {
	clock := clockwork.NewRealClock()

	busConfig := eventbus.DefaultJetStreamConfig()
	busConfig.URL = getEnv("NATS_URL", busConfig.URL)
	busConfig.Token = os.Getenv("NATS_TOKEN")
	bus, err := eventbus.NewJetStreamPublisher(ctx, busConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect event bus: %w", err)
	}
	services := &Services{bus: bus, database: database}

	var (
		repo      matchsvc.Repository
		publisher matchsvc.Publisher
	)
	if database != nil {
		repo = matchsvc.NewPostgresRepository(database)

		outboxRepo := outbox.NewRepository(database)
		publisher = outbox.NewWriter(outboxRepo)

		listenerConfig := outbox.DefaultListenerConfig()
		listenerConfig.DatabaseURL = dbConfig.DSN()
		notifier, err := outbox.NewPQNotifier(listenerConfig)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to listen for outbox events: %w", err)
		}
		services.Relay = outbox.NewListener(outboxRepo, notifier, bus, clock, listenerConfig)
	} else {
		memory := matchsvc.NewMemoryRepository()
		if path := os.Getenv("MEMORY_FIXTURE"); path != "" {
			if err := loadFixture(path, memory); err != nil {
				services.Close()
				return nil, err
			}
		}
		repo = memory
		publisher = bus
	}

	appConfig := matchsvc.DefaultAppConfig()
	appConfig.PickTimeout = config.Rules.PickTimeout
	app := matchsvc.NewApp(repo, publisher, clock, appConfig)

	orchConfig := orchestrator.DefaultConfig()
	orchConfig.PreRoundDelay = config.Rules.PreRoundDelay
	orchConfig.NumWorkers = config.Orchestrator.Workers
	orchConfig.StreamName = busConfig.StreamName
	services.Orchestrator = orchestrator.NewOrchestrator(app, publisher, clock, orchConfig)
	if err := services.Orchestrator.EnsureConsumer(ctx, bus.JetStream()); err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to bind orchestrator consumer: %w", err)
	}

	auth, err := matchsvc.NewAuthenticator(os.Getenv("AUTH_TOKENS"), os.Getenv("AUTH_JWT_SECRET"))
	if err != nil {
		services.Close()
		return nil, err
	}
	if auth == nil {
		log.Warn().Msg("AUTH_TOKENS and AUTH_JWT_SECRET not set, accepting unauthenticated callers")
	}
	services.Match = matchsvc.NewService(app, auth)

	return services, nil
}

// fixture seeds the in-memory store.
type fixture struct {
	Matches  []models.Snapshot `json:"matches"`
	Entities []models.Entity   `json:"entities"`
}

func loadFixture(path string, repo *matchsvc.MemoryRepository) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}
	var f fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse fixture: %w", err)
	}
	for _, snap := range f.Matches {
		if err := repo.PutMatch(snap); err != nil {
			return err
		}
	}
	repo.PutEntities(f.Entities...)
	log.Info().Int("matches", len(f.Matches)).Int("entities", len(f.Entities)).Msg("loaded memory fixture")
	return nil
}
