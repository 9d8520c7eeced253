// Package gateway relays match events from the bus to WebSocket clients,
// one connection per push scope.
package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Service is the gateway: WebSocket connections fed by a JetStream consumer.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
}

type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates the gateway and binds its bus consumer.
func NewService(ctx context.Context, config Config, auth Authenticator) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	eventConsumer, err := NewEventConsumer(ctx, connectionManager, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, auth),
		eventConsumer:     eventConsumer,
	}, nil
}

// Start runs the connection manager and the bus consumer until ctx is
// cancelled or the consumer fails.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting match gateway service")

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.connectionManager.Start(gCtx)
		return nil
	})
	g.Go(func() error {
		if err := s.eventConsumer.Start(gCtx); err != nil {
			return fmt.Errorf("event consumer: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.Stop()
	return err
}

// Stop releases the bus consumer.
func (s *Service) Stop() {
	if err := s.eventConsumer.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop event consumer")
	}
	log.Info().Msg("match gateway service stopped")
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
}

// GetStats counts live connections per scope.
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
