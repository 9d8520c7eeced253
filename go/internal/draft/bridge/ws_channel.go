package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
)

// WebSocketChannelConfig holds configuration for the gateway push channel
type WebSocketChannelConfig struct {
	GatewayURL       string // e.g. ws://localhost:8081/ws/match
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	MaxMessageSize   int64
}

// DefaultWebSocketChannelConfig returns default gateway push channel configuration
func DefaultWebSocketChannelConfig() WebSocketChannelConfig {
	return WebSocketChannelConfig{
		GatewayURL:       "ws://localhost:8081/ws/match",
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		MaxMessageSize:   1 << 20,
	}
}

// WebSocketChannel is a PushChannel that joins scopes through the gateway.
// Each scope is its own connection.
type WebSocketChannel struct {
	config WebSocketChannelConfig
	dialer *websocket.Dialer
}

// NewWebSocketChannel creates a gateway push channel.
func NewWebSocketChannel(config WebSocketChannelConfig) *WebSocketChannel {
	return &WebSocketChannel{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
	}
}

// ScopeURL returns the gateway URL for scope.
func (c *WebSocketChannel) ScopeURL(scope events.Scope) (string, error) {
	u, err := url.Parse(c.config.GatewayURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway URL: %w", err)
	}
	q := u.Query()
	q.Set("match_id", scope.MatchID)
	if scope.Targeted() {
		q.Set("user_id", scope.UserID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Join dials the gateway for scope and starts reading events.
func (c *WebSocketChannel) Join(ctx context.Context, scope events.Scope, creds Credentials) (Membership, error) {
	target, err := c.ScopeURL(scope)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+creds.Token)

	conn, resp, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial gateway (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	m := &wsMembership{
		scope:    scope,
		conn:     conn,
		handlers: newHandlerSet(),
		done:     make(chan struct{}),
	}
	conn.SetReadLimit(c.config.MaxMessageSize)
	go m.readPump(c.config.ReadTimeout)

	log.Debug().Str("scope", scope.String()).Str("url", target).Msg("joined gateway scope")
	return m, nil
}

type wsMembership struct {
	scope     events.Scope
	conn      *websocket.Conn
	handlers  *handlerSet
	done      chan struct{}
	closeOnce sync.Once
}

// readPump handles reading events from the gateway connection
func (m *wsMembership) readPump(readTimeout time.Duration) {
	defer m.closeOnce.Do(func() { close(m.done) })

	m.conn.SetReadDeadline(time.Now().Add(readTimeout))
	m.conn.SetPingHandler(func(data string) error {
		m.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return m.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		var env events.Envelope
		if err := m.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("scope", m.scope.String()).Msg("unexpected gateway close")
			}
			return
		}
		m.conn.SetReadDeadline(time.Now().Add(readTimeout))
		m.handlers.dispatch(env)
	}
}

func (m *wsMembership) Scope() events.Scope { return m.scope }

func (m *wsMembership) On(eventType events.EventType, h Handler) { m.handlers.on(eventType, h) }

func (m *wsMembership) Off(eventType events.EventType) { m.handlers.off(eventType) }

func (m *wsMembership) Leave() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "leave")
	_ = m.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := m.conn.Close()

	select {
	case <-m.done:
	case <-time.After(time.Second):
	}
	return err
}
