// internal/handlers/player.go
package handlers

import (
	"context"
	"net/http"

	"github.com/jason-s-yu/fusion/internal/auth"
	"github.com/jason-s-yu/fusion/internal/models"
)

type sessionKey struct{}

// sessionFrom returns the session stored by requirePlayer.
func sessionFrom(ctx context.Context) auth.Session {
	s, _ := ctx.Value(sessionKey{}).(auth.Session)
	return s
}

// requirePlayer rejects requests without a valid player token.
func (s *APIServer) requirePlayer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Issuer.Authenticate(requestToken(r))
		if err != nil {
			writeError(w, s.Logger, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	}
}

// requireOwner additionally requires the player to own the lobby in the path.
func (s *APIServer) requireOwner(next http.HandlerFunc) http.HandlerFunc {
	return s.requirePlayer(func(w http.ResponseWriter, r *http.Request) {
		code, err := lobbyCode(r)
		if err != nil {
			writeError(w, s.Logger, err)
			return
		}
		if err := s.Lobbies.RequireOwner(r.Context(), code, sessionFrom(r.Context()).PlayerToken); err != nil {
			writeError(w, s.Logger, err)
			return
		}
		next(w, r)
	})
}

type playerResponse struct {
	Token  string         `json:"token"`
	Player *models.Player `json:"player"`
	Lobby  *models.Lobby  `json:"lobby,omitempty"`
}

// issueToken signs a token for the new player and also sets it as the auth cookie.
func (s *APIServer) issueToken(w http.ResponseWriter, p *models.Player) (string, error) {
	token, err := s.Issuer.Issue(auth.Session{PlayerToken: p.Token, LobbyCode: p.LobbyCode, UserID: p.UserID})
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func (s *APIServer) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	l, err := s.Lobbies.LobbyOfPlayer(r.Context(), sess.PlayerToken)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, playerResponse{Player: l.Player(sess.PlayerToken), Lobby: l})
}
