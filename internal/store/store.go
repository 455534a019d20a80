// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/fusion/internal/models"
)

// ErrCodeTaken is returned by Create when another lobby already holds the code.
var ErrCodeTaken = errors.New("lobby code already in use")

// Lobbies persists lobbies together with their players.
//
// Update and Delete are units of work: fn runs with exclusive access to one lobby, and its changes
// are committed only when fn returns nil. Units on different lobbies never block each other.
type Lobbies interface {
	// Create stores a new lobby; ErrCodeTaken if the code is in use.
	Create(ctx context.Context, l *models.Lobby) error
	// Get returns a snapshot of the lobby, or an error wrapping apperr.ErrNotFound.
	Get(ctx context.Context, code int64) (*models.Lobby, error)
	// List returns snapshots of every lobby ordered by code.
	List(ctx context.Context) ([]*models.Lobby, error)
	// Codes enumerates the codes of every lobby.
	Codes(ctx context.Context) ([]int64, error)
	Exists(ctx context.Context, code int64) (bool, error)
	// Update runs fn on the lobby and commits its changes when fn returns nil.
	Update(ctx context.Context, code int64, fn func(l *models.Lobby) error) error
	// Delete runs fn on the lobby, then removes the lobby and its players. An error from fn
	// aborts the deletion and is returned.
	Delete(ctx context.Context, code int64, fn func(l *models.Lobby) error) error
	// LobbyOfPlayer resolves the lobby a player token belongs to.
	LobbyOfPlayer(ctx context.Context, token uuid.UUID) (int64, error)
}

// UserStats keeps aggregate results for linked accounts.
type UserStats interface {
	RecordResult(ctx context.Context, userID uuid.UUID, won bool) error
	RecordCombination(ctx context.Context, userID uuid.UUID, result models.Word) error
	Get(ctx context.Context, userID uuid.UUID) (models.UserStats, error)
}
