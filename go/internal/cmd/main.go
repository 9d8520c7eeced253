package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/matchdraft/go/internal/dbconfig"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	setupLogging()

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConfig := dbconfig.NewConfigFromEnv()
	var database *sql.DB
	storage := getEnv("STORAGE", "postgres")
	switch storage {
	case "postgres":
		database, err = setupDatabase(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to setup database")
		}
		defer database.Close()
	case "memory":
	default:
		log.Fatal().Str("storage", storage).Msg("STORAGE must be postgres or memory")
	}

	services, err := setupServices(ctx, config, database, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup services")
	}
	defer services.Close()

	server := setupServer(services)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := services.Orchestrator.RunScheduler(gCtx); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
		return nil
	})
	if services.Relay != nil {
		g.Go(func() error {
			if err := services.Relay.Start(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Str("storage", storage).
			Dur("pick_timeout", config.Rules.PickTimeout).
			Int("workers", config.Orchestrator.Workers).
			Msg("match server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("shutting down match server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("match server stopped with error")
	}
	log.Info().Msg("match server shutdown complete")
}
