package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/matchdraft/go/internal/draft/events"
)

// Authenticator maps a bearer token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// WebSocketHandler handles WebSocket upgrade requests for match scopes
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	auth              Authenticator
}

// NewWebSocketHandler creates a handler. A nil auth accepts any caller.
func NewWebSocketHandler(cm *ConnectionManager, auth Authenticator) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		auth:              auth,
	}
}

// HandleMatchConnection joins the match broadcast scope, or the targeted
// scope when user_id is given. Targeted scopes are only open to their user.
func (h *WebSocketHandler) HandleMatchConnection(w http.ResponseWriter, r *http.Request) {
	scope := events.Scope{
		MatchID: r.URL.Query().Get("match_id"),
		UserID:  r.URL.Query().Get("user_id"),
	}
	if scope.MatchID == "" {
		http.Error(w, "match_id is required", http.StatusBadRequest)
		return
	}

	userID := scope.UserID
	if h.auth != nil {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		authed, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if scope.Targeted() && authed != scope.UserID {
			log.Warn().
				Str("user_id", authed).
				Str("scope", scope.String()).
				Msg("rejected join of another user's scope")
			http.Error(w, "scope belongs to another user", http.StatusForbidden)
			return
		}
		userID = authed
	}

	if err := h.connectionManager.UpgradeConnection(w, r, userID, scope); err != nil {
		// the upgrader has already written the HTTP error
		log.Error().
			Err(err).
			Str("scope", scope.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/match", h.HandleMatchConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
