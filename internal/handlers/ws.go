// internal/handlers/ws.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/fusion/internal/broadcast"
	"github.com/jason-s-yu/fusion/internal/middleware"
)

// Subprotocol is the WebSocket subprotocol clients must request.
const Subprotocol = "lobby"

func (s *APIServer) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, bool) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: s.OriginPatterns,
	})
	if err != nil {
		s.Logger.WithError(err).Warn("websocket accept error")
		return nil, false
	}
	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
		return nil, false
	}
	return c, true
}

// handleLobbyListWS streams UPDATE_LOBBY_LIST broadcasts to anyone.
func (s *APIServer) handleLobbyListWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.accept(w, r)
	if !ok {
		return
	}
	s.serve(r, c, broadcast.LobbyListChannel)
}

// handleLobbyWS streams one lobby's broadcasts to a player of that lobby.
func (s *APIServer) handleLobbyWS(w http.ResponseWriter, r *http.Request) {
	code, err := lobbyCode(r)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}

	c, ok := s.accept(w, r)
	if !ok {
		return
	}
	sess, err := s.Issuer.Authenticate(requestToken(r))
	if err != nil {
		c.Close(InvalidAuthTokenError, "invalid auth token")
		return
	}
	if sess.LobbyCode != code {
		c.Close(websocket.StatusPolicyViolation, "player is not in lobby "+strconv.FormatInt(code, 10))
		return
	}
	if _, err := s.Lobbies.GetLobby(r.Context(), code); err != nil {
		c.Close(InvalidLobbyCodeError, "lobby does not exist")
		return
	}
	s.serve(r, c, broadcast.LobbyChannel(code))
}

func (s *APIServer) serve(r *http.Request, c *websocket.Conn, channel string) {
	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)
	s.Hub.Serve(r.Context(), c, channel, r.RemoteAddr)
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, r.Context().Err())
}
