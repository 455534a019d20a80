// internal/handlers/game.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/jason-s-yu/fusion/internal/apperr"
)

type moveRequest struct {
	Words []string `json:"words"`
}

func (s *APIServer) handleStartSession(w http.ResponseWriter, r *http.Request) {
	code, err := lobbyCode(r)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	if err := s.Sessions.StartSession(r.Context(), code); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	l, err := s.Lobbies.GetLobby(r.Context(), code)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *APIServer) handleAbortSession(w http.ResponseWriter, r *http.Request) {
	code, err := lobbyCode(r)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	if err := s.Sessions.AbortSession(r.Context(), code); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePlayMove combines the posted words for the calling player.
func (s *APIServer) handlePlayMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	if req.Words == nil {
		writeError(w, s.Logger, fmt.Errorf("words are required: %w", apperr.ErrInvalidMove))
		return
	}

	res, err := s.Sessions.PlayMove(r.Context(), sessionFrom(r.Context()).PlayerToken, req.Words)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
