package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/draft/gateway"
	"github.com/mcdev12/matchdraft/go/internal/draft/matchsvc"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	port := getEnv("GATEWAY_PORT", "8081")

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig.Connection.URL = getEnv("NATS_URL", gatewayConfig.JetStreamConfig.Connection.URL)
	gatewayConfig.JetStreamConfig.Connection.Token = os.Getenv("NATS_TOKEN")
	gatewayConfig.JetStreamConfig.ConsumerName = getEnv("GATEWAY_CONSUMER", gatewayConfig.JetStreamConfig.ConsumerName)

	auth, err := matchsvc.NewAuthenticator(os.Getenv("AUTH_TOKENS"), os.Getenv("AUTH_JWT_SECRET"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid auth settings")
	}
	if auth == nil {
		log.Warn().Msg("AUTH_TOKENS and AUTH_JWT_SECRET not set, accepting unauthenticated joins")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info().
		Str("nats_url", gatewayConfig.JetStreamConfig.Connection.URL).
		Str("port", port).
		Msg("starting match gateway")

	gatewayService, err := gateway.NewService(ctx, gatewayConfig, auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service":     "match-gateway",
			"connections": gatewayService.GetStats().TotalConnections,
		})
	})

	handler := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	}).Handler(mux)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", port),
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	// let the consumer drain
	time.Sleep(time.Second)
	log.Info().Msg("match gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
