package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
)

// NATSChannelConfig holds configuration for the NATS push channel
type NATSChannelConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSChannelConfig returns default NATS push channel configuration
func DefaultNATSChannelConfig() NATSChannelConfig {
	return NATSChannelConfig{
		URL:           nats.DefaultURL,
		Name:          "matchdraft-client",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSChannel is a PushChannel over core NATS subscriptions.
// One connection is shared by every scope joined with the same token.
type NATSChannel struct {
	config NATSChannelConfig

	mu    sync.Mutex
	nc    *nats.Conn
	token string
}

// NewNATSChannel creates a NATS push channel. Connections are opened on first Join.
func NewNATSChannel(config NATSChannelConfig) *NATSChannel {
	return &NATSChannel{config: config}
}

func (c *NATSChannel) connect(creds Credentials) (*nats.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nc != nil && !c.nc.IsClosed() && c.token == creds.Token {
		return c.nc, nil
	}
	if c.nc != nil {
		c.nc.Close()
	}

	opts := []nats.Option{
		nats.Name(c.config.Name),
		nats.Token(creds.Token),
		nats.MaxReconnects(c.config.MaxReconnects),
		nats.ReconnectWait(c.config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(c.config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	c.nc = nc
	c.token = creds.Token
	return nc, nil
}

// Join subscribes to every event subject of scope.
func (c *NATSChannel) Join(ctx context.Context, scope events.Scope, creds Credentials) (Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nc, err := c.connect(creds)
	if err != nil {
		return nil, err
	}

	m := &natsMembership{scope: scope, handlers: newHandlerSet()}
	sub, err := nc.Subscribe(scope.Wildcard(), m.handleMsg)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", scope.Wildcard(), err)
	}
	m.sub = sub

	log.Debug().
		Str("scope", scope.String()).
		Str("subject", scope.Wildcard()).
		Msg("joined NATS scope")
	return m, nil
}

// Close closes the shared connection.
func (c *NATSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
	return nil
}

type natsMembership struct {
	scope    events.Scope
	sub      *nats.Subscription
	handlers *handlerSet
}

func (m *natsMembership) handleMsg(msg *nats.Msg) {
	var env events.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal event envelope")
		return
	}
	if env.EventType == "" {
		env.EventType = events.EventTypeFromSubject(msg.Subject)
	}
	if !m.handlers.dispatch(env) {
		log.Debug().
			Str("subject", msg.Subject).
			Str("event_type", string(env.EventType)).
			Msg("no handler registered - dropping event")
	}
}

func (m *natsMembership) Scope() events.Scope { return m.scope }

func (m *natsMembership) On(eventType events.EventType, h Handler) { m.handlers.on(eventType, h) }

func (m *natsMembership) Off(eventType events.EventType) { m.handlers.off(eventType) }

func (m *natsMembership) Leave() error {
	if m.sub == nil {
		return nil
	}
	if err := m.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
		return fmt.Errorf("unsubscribe %s: %w", m.scope, err)
	}
	m.sub = nil
	return nil
}
