// internal/handlers/lobby.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/models"
)

// RemovedByOwner is the KICK message sent when the owner closes a lobby.
const RemovedByOwner = "The lobby was closed by its owner"

type playerRequest struct {
	Name         string `json:"name"`
	PublicAccess *bool  `json:"publicAccess,omitempty"`
	// UserID links the player to an account for win/loss tracking.
	UserID string `json:"userId,omitempty"`
}

func (req playerRequest) userID() (uuid.UUID, error) {
	if req.UserID == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(req.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid userId: %w", apperr.ErrInvalidArgument)
	}
	return id, nil
}

// handleCreateLobby creates a lobby owned by a new player and returns the owner's token.
func (s *APIServer) handleCreateLobby(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	userID, err := req.userID()
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}

	owner, l, err := s.Lobbies.CreateLobby(r.Context(), req.Name, userID, req.PublicAccess)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	token, err := s.issueToken(w, owner)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, playerResponse{Token: token, Player: owner, Lobby: l})
}

func (s *APIServer) handleListLobbies(w http.ResponseWriter, r *http.Request) {
	list, err := s.Lobbies.PublicLobbies(r.Context())
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *APIServer) handleGetLobby(w http.ResponseWriter, r *http.Request) {
	code, err := lobbyCode(r)
	if err != nil {
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

func (s *APIServer) handleJoinLobby(w http.ResponseWriter, r *http.Request) {
	code, err := lobbyCode(r)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	var req playerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	userID, err := req.userID()
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}

	p, err := s.Lobbies.JoinLobby(r.Context(), code, req.Name, userID)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	token, err := s.issueToken(w, p)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, playerResponse{Token: token, Player: p})
}

func (s *APIServer) handleLeaveLobby(w http.ResponseWriter, r *http.Request) {
	if err := s.Lobbies.LeaveLobby(r.Context(), sessionFrom(r.Context()).PlayerToken); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateLobbyResponse struct {
	Changes map[string]bool `json:"changes"`
	Lobby   *models.Lobby   `json:"lobby"`
}

func (s *APIServer) handleUpdateLobby(w http.ResponseWriter, r *http.Request) {
	code, err := lobbyCode(r)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	settings := map[string]interface{}{}
	if err := decodeBody(r, &settings); err != nil {
		writeError(w, s.Logger, err)
		return
	}

	changes, l, err := s.Lobbies.UpdateLobby(r.Context(), code, settings)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updateLobbyResponse{Changes: changes, Lobby: l})
}

func (s *APIServer) handleRemoveLobby(w http.ResponseWriter, r *http.Request) {
	code, err := lobbyCode(r)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	if err := s.Lobbies.RemoveLobby(r.Context(), code, RemovedByOwner); err != nil {
		writeError(w, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleUserStats(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, s.Logger, fmt.Errorf("invalid user id: %w", apperr.ErrInvalidArgument))
		return
	}
	if s.Stats == nil {
		writeError(w, s.Logger, fmt.Errorf("stats are not tracked: %w", apperr.ErrNotFound))
		return
	}
	st, err := s.Stats.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
