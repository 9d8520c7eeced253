package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/matchdraft/go/internal/draft/bridge"
	"github.com/mcdev12/matchdraft/go/internal/draft/events"
)

type tokenTable map[string]string

func (t tokenTable) Authenticate(ctx context.Context, token string) (string, error) {
	if user, ok := t[token]; ok {
		return user, nil
	}
	return "", assert.AnError
}

func newTestGateway(t *testing.T, auth Authenticator) (*ConnectionManager, *httptest.Server) {
	t.Helper()
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewWebSocketHandler(cm, auth).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return cm, server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/match"
}

func envelope(t *testing.T, eventType events.EventType, userID string) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(eventType, "m1", userID, map[string]string{"matchId": "m1"}, time.Now())
	require.NoError(t, err)
	return env
}

func TestGateway_RelaysByScope(t *testing.T) {
	cm, server := newTestGateway(t, tokenTable{"tok1": "u1"})
	channel := bridge.NewWebSocketChannel(bridge.WebSocketChannelConfig{
		GatewayURL:       wsURL(server),
		HandshakeTimeout: time.Second,
		ReadTimeout:      5 * time.Second,
		MaxMessageSize:   1 << 20,
	})
	ctx := context.Background()
	creds := bridge.Credentials{Token: "tok1"}

	broadcast, err := channel.Join(ctx, events.Scope{MatchID: "m1"}, creds)
	require.NoError(t, err)
	defer broadcast.Leave()
	targeted, err := channel.Join(ctx, events.Scope{MatchID: "m1", UserID: "u1"}, creds)
	require.NoError(t, err)
	defer targeted.Leave()

	fromBroadcast := make(chan events.Envelope, 4)
	fromTargeted := make(chan events.Envelope, 4)
	for _, et := range events.AllEventTypes {
		broadcast.On(et, func(env events.Envelope) { fromBroadcast <- env })
		targeted.On(et, func(env events.Envelope) { fromTargeted <- env })
	}

	require.Eventually(t, func() bool { return cm.GetConnectionStats().TotalConnections == 2 }, time.Second, 5*time.Millisecond)
	stats := cm.GetConnectionStats()
	assert.Equal(t, 1, stats.ActiveMatches)
	assert.Equal(t, 1, stats.Scopes["m1/u1"])

	pick := envelope(t, events.EventTypePickMade, "")
	cm.Broadcast(pick)
	select {
	case got := <-fromBroadcast:
		assert.Equal(t, pick.EventID, got.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast event not relayed")
	}

	start := envelope(t, events.EventTypeRoundStart, "u1")
	cm.Broadcast(start)
	select {
	case got := <-fromTargeted:
		assert.Equal(t, start.EventID, got.EventID)
		assert.Equal(t, "u1", got.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("targeted event not relayed")
	}

	// other users' targeted events never reach this client
	cm.Broadcast(envelope(t, events.EventTypeRoundStart, "u2"))
	select {
	case got := <-fromTargeted:
		t.Fatalf("unexpected event %s", got.EventID)
	case got := <-fromBroadcast:
		t.Fatalf("unexpected event %s", got.EventID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGateway_RejectsBadJoins(t *testing.T) {
	_, server := newTestGateway(t, tokenTable{"tok1": "u1"})

	tests := []struct {
		name   string
		query  string
		token  string
		status int
	}{
		{"missing match", "", "tok1", http.StatusBadRequest},
		{"missing token", "?match_id=m1", "", http.StatusUnauthorized},
		{"unknown token", "?match_id=m1", "nope", http.StatusUnauthorized},
		{"other user's scope", "?match_id=m1&user_id=u2", "tok1", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.token != "" {
				header.Set("Authorization", "Bearer "+tt.token)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server)+tt.query, header)
			if conn != nil {
				conn.Close()
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestConnectionStatsEndpoint(t *testing.T) {
	_, server := newTestGateway(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server)+"?match_id=m1", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		resp, err := http.Get(server.URL + "/ws/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var stats ConnectionStats
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return false
		}
		return stats.TotalConnections == 1 && stats.Scopes["m1"] == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRelay_RejectsGarbage(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	assert.Error(t, relay(cm, []byte("{}")))

	data, err := json.Marshal(envelope(t, events.EventTypePickMade, ""))
	require.NoError(t, err)
	require.NoError(t, relay(cm, data))
	assert.Len(t, cm.broadcastCh, 1)
}
