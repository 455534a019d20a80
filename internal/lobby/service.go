// internal/lobby/service.go
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/broadcast"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/jason-s-yu/fusion/internal/store"
	"github.com/jason-s-yu/fusion/internal/timer"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Lobby codes are drawn uniformly from [MinCode, MaxCode].
const (
	MinCode = 1000
	MaxCode = 9999
)

var errLobbyNotEmpty = errors.New("lobby is not empty")

// Service manages lobby membership and settings. Sessions are run by session.Manager.
type Service struct {
	lobbies store.Lobbies
	arena   *timer.Arena
	gateway broadcast.Gateway
	clock   clockwork.Clock
	logger  logrus.FieldLogger

	// MaxCodeAttempts bounds the search for a free lobby code.
	MaxCodeAttempts int
	// Rand draws lobby codes.
	Rand   *rand.Rand
	randMu sync.Mutex
}

func NewService(lobbies store.Lobbies, arena *timer.Arena, gateway broadcast.Gateway, clock clockwork.Clock, logger logrus.FieldLogger) *Service {
	return &Service{
		lobbies:         lobbies,
		arena:           arena,
		gateway:         gateway,
		clock:           clock,
		logger:          logger,
		MaxCodeAttempts: 1000,
		Rand:            rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (s *Service) drawCode() int64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return MinCode + s.Rand.Int64N(MaxCode-MinCode+1)
}

// GenerateCode returns a code not used by any lobby at the time of the call.
func (s *Service) GenerateCode(ctx context.Context) (int64, error) {
	for i := 0; i < s.MaxCodeAttempts; i++ {
		code := s.drawCode()
		exists, err := s.lobbies.Exists(ctx, code)
		if err != nil {
			return 0, fmt.Errorf("check lobby code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return 0, fmt.Errorf("no free lobby code after %d attempts: %w", s.MaxCodeAttempts, apperr.ErrInternal)
}

// CreateLobby creates a lobby owned by a new player. public defaults to true when nil.
func (s *Service) CreateLobby(ctx context.Context, ownerName string, userID uuid.UUID, public *bool) (*models.Player, *models.Lobby, error) {
	ownerName = strings.TrimSpace(ownerName)
	if ownerName == "" {
		return nil, nil, fmt.Errorf("player name must not be empty: %w", apperr.ErrInvalidArgument)
	}

	for i := 0; i < s.MaxCodeAttempts; i++ {
		code, err := s.GenerateCode(ctx)
		if err != nil {
			return nil, nil, err
		}

		l := models.NewLobby(code, ownerName+"'s Lobby", s.clock.Now())
		if public != nil {
			l.Public = *public
		}
		owner := models.NewPlayer(ownerName, code)
		owner.UserID = userID
		l.AddPlayer(owner)
		l.OwnerToken = owner.Token

		err = s.lobbies.Create(ctx, l)
		if errors.Is(err, store.ErrCodeTaken) {
			// lost a race for the code
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("create lobby: %w", err)
		}

		s.logger.WithFields(logrus.Fields{"lobby_code": code, "player": owner.Token}).Info("lobby created")
		s.PublishLobbyList(ctx)
		return owner, l, nil
	}
	return nil, nil, fmt.Errorf("no free lobby code: %w", apperr.ErrInternal)
}

// JoinLobby adds a new player to a lobby that is waiting for its next round. userID may be
// uuid.Nil for anonymous players.
func (s *Service) JoinLobby(ctx context.Context, code int64, name string, userID uuid.UUID) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("player name must not be empty: %w", apperr.ErrInvalidArgument)
	}

	p := models.NewPlayer(name, code)
	p.UserID = userID
	err := s.lobbies.Update(ctx, code, func(l *models.Lobby) error {
		if l.Status != models.LobbyPregame {
			return fmt.Errorf("lobby %d does not accept new players until the game is finished: %w", code, apperr.ErrForbidden)
		}
		l.AddPlayer(p)
		l.Touch(s.clock.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"lobby_code": code, "player": p.Token}).Info("player joined")
	s.publishPlayers(ctx, code)
	return p, nil
}

// LeaveLobby removes the player. An owner hands the lobby to the next player; the last player to
// leave removes the lobby.
func (s *Service) LeaveLobby(ctx context.Context, token uuid.UUID) error {
	code, err := s.lobbies.LobbyOfPlayer(ctx, token)
	if err != nil {
		return err
	}

	empty := false
	err = s.lobbies.Update(ctx, code, func(l *models.Lobby) error {
		if !l.RemovePlayer(token) {
			return fmt.Errorf("player %s in lobby %d: %w", token, code, apperr.ErrNotFound)
		}
		l.Touch(s.clock.Now())
		empty = len(l.Players) == 0
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"lobby_code": code, "player": token}).Info("player left")

	if !empty {
		s.publishPlayers(ctx, code)
		return nil
	}

	err = s.lobbies.Delete(ctx, code, func(l *models.Lobby) error {
		if len(l.Players) > 0 {
			return errLobbyNotEmpty
		}
		s.arena.Cancel(code)
		return nil
	})
	switch {
	case errors.Is(err, errLobbyNotEmpty):
		s.publishPlayers(ctx, code)
		return nil
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("remove empty lobby %d: %w", code, err)
	}
	s.logger.WithField("lobby_code", code).Info("empty lobby removed")
	s.PublishLobbyList(ctx)
	return nil
}

// UpdateLobby applies new settings and reports which of them changed. Mode and time limit are
// fixed while a round is running.
func (s *Service) UpdateLobby(ctx context.Context, code int64, settings map[string]interface{}) (map[string]bool, *models.Lobby, error) {
	var (
		changes map[string]bool
		updated *models.Lobby
	)
	err := s.lobbies.Update(ctx, code, func(l *models.Lobby) error {
		var err error
		changes, err = l.ApplySettings(settings)
		if err != nil {
			return fmt.Errorf("%v: %w", err, apperr.ErrInvalidArgument)
		}
		if l.Status == models.LobbyPlaying && (changes[models.SettingMode] || changes[models.SettingGameTime]) {
			return fmt.Errorf("mode and game time cannot change while lobby %d is playing: %w", code, apperr.ErrInvalidState)
		}
		l.Touch(s.clock.Now())
		updated = l.Clone()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	changed := false
	for _, c := range changes {
		changed = changed || c
	}
	if changed {
		data, err := json.Marshal(changes)
		if err == nil {
			s.gateway.Publish(broadcast.LobbyChannel(code), broadcast.Message{
				Instruction: broadcast.UpdateLobby,
				Message:     string(data),
			})
		}
		if changes[models.SettingName] || changes[models.SettingPublicAccess] || changes[models.SettingMode] {
			s.PublishLobbyList(ctx)
		}
	}
	return changes, updated, nil
}

// RemoveLobby deletes the lobby and its players, cancelling any running countdown, and kicks
// whoever is still subscribed.
func (s *Service) RemoveLobby(ctx context.Context, code int64, reason string) error {
	err := s.lobbies.Delete(ctx, code, func(l *models.Lobby) error {
		s.arena.Cancel(code)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.WithField("lobby_code", code).Info("lobby removed")
	s.gateway.Publish(broadcast.LobbyChannel(code), broadcast.Message{Instruction: broadcast.Kick, Message: reason})
	s.PublishLobbyList(ctx)
	return nil
}

// RequireOwner fails with ErrForbidden unless the token belongs to the lobby's owner.
func (s *Service) RequireOwner(ctx context.Context, code int64, token uuid.UUID) error {
	l, err := s.lobbies.Get(ctx, code)
	if err != nil {
		return err
	}
	if l.OwnerToken == uuid.Nil || l.OwnerToken != token {
		return fmt.Errorf("only the owner of lobby %d may do this: %w", code, apperr.ErrForbidden)
	}
	return nil
}

func (s *Service) GetLobby(ctx context.Context, code int64) (*models.Lobby, error) {
	return s.lobbies.Get(ctx, code)
}

// LobbyOfPlayer resolves the lobby the player is in.
func (s *Service) LobbyOfPlayer(ctx context.Context, token uuid.UUID) (*models.Lobby, error) {
	code, err := s.lobbies.LobbyOfPlayer(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.lobbies.Get(ctx, code)
}

// PublicLobbies lists the lobbies anyone may join, ordered by code.
func (s *Service) PublicLobbies(ctx context.Context) ([]models.LobbySummary, error) {
	all, err := s.lobbies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lobbies: %w", err)
	}
	out := make([]models.LobbySummary, 0, len(all))
	for _, l := range all {
		if l.Public {
			out = append(out, l.Summary())
		}
	}
	return out, nil
}

// PublishLobbyList broadcasts the public lobby list on the global channel.
func (s *Service) PublishLobbyList(ctx context.Context) {
	list, err := s.PublicLobbies(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to build lobby list")
		return
	}
	data, err := json.Marshal(list)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode lobby list")
		return
	}
	s.gateway.Publish(broadcast.LobbyListChannel, broadcast.Message{
		Instruction: broadcast.UpdateLobbyList,
		Message:     string(data),
	})
}

func (s *Service) publishPlayers(ctx context.Context, code int64) {
	l, err := s.lobbies.Get(ctx, code)
	if err != nil {
		s.logger.WithError(err).WithField("lobby_code", code).Warn("failed to load lobby for player update")
		return
	}
	data, err := json.Marshal(l.Players)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode players")
		return
	}
	s.gateway.Publish(broadcast.LobbyChannel(code), broadcast.Message{
		Instruction: broadcast.UpdatePlayers,
		Message:     string(data),
	})
}
