// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/fusion/internal/auth"
	"github.com/jason-s-yu/fusion/internal/broadcast"
	"github.com/jason-s-yu/fusion/internal/lobby"
	"github.com/jason-s-yu/fusion/internal/middleware"
	"github.com/jason-s-yu/fusion/internal/session"
	"github.com/jason-s-yu/fusion/internal/store"
	"github.com/sirupsen/logrus"
)

// APIServer adapts the lobby service and session manager to HTTP and serves broadcast
// subscriptions over WebSocket.
type APIServer struct {
	Lobbies  *lobby.Service
	Sessions *session.Manager
	Stats    store.UserStats
	Issuer   *auth.Issuer
	Hub      *broadcast.Hub
	Logger   logrus.FieldLogger

	// OriginPatterns are the WebSocket origins accepted; nil accepts same-origin only.
	OriginPatterns []string
}

// Routes registers every endpoint on a new mux wrapped with request logging.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	// lobby endpoints
	mux.HandleFunc("POST /lobbies", s.handleCreateLobby)
	mux.HandleFunc("GET /lobbies", s.handleListLobbies)
	mux.HandleFunc("GET /lobbies/{code}", s.handleGetLobby)
	mux.HandleFunc("PUT /lobbies/{code}", s.requireOwner(s.handleUpdateLobby))
	mux.HandleFunc("DELETE /lobbies/{code}", s.requireOwner(s.handleRemoveLobby))
	mux.HandleFunc("POST /lobbies/{code}/players", s.handleJoinLobby)
	mux.HandleFunc("DELETE /players/me", s.requirePlayer(s.handleLeaveLobby))

	// session endpoints
	mux.HandleFunc("POST /lobbies/{code}/start", s.requireOwner(s.handleStartSession))
	mux.HandleFunc("POST /lobbies/{code}/abort", s.requireOwner(s.handleAbortSession))
	mux.HandleFunc("POST /moves", s.requirePlayer(s.handlePlayMove))
	mux.HandleFunc("GET /players/me", s.requirePlayer(s.handleGetPlayer))
	mux.HandleFunc("GET /users/{id}/stats", s.handleUserStats)

	// broadcast subscriptions
	mux.HandleFunc("GET /ws/lobbies", s.handleLobbyListWS)
	mux.HandleFunc("GET /ws/lobbies/{code}", s.handleLobbyWS)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return middleware.LogMiddleware(s.Logger)(mux)
}
