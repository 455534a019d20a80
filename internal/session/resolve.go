// internal/session/resolve.go
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/broadcast"
	"github.com/jason-s-yu/fusion/internal/game"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/sirupsen/logrus"
)

// MoveResult is the outcome of one move as seen by the player who made it.
type MoveResult struct {
	Word   models.Word    `json:"word"`
	Player *models.Player `json:"player"`
	// Won is set when this move ended the round.
	Won bool `json:"won"`
}

// PlayMove resolves a combination for the player. The lobby and the player must both be PLAYING.
// A winning move ends the round in the same unit of work.
//
// The combination is resolved while the lobby is held, so moves of one lobby are applied one at a
// time; the generator call inside is bounded by its own timeout.
func (m *Manager) PlayMove(ctx context.Context, token uuid.UUID, inputs []string) (MoveResult, error) {
	code, err := m.lobbies.LobbyOfPlayer(ctx, token)
	if err != nil {
		return MoveResult{}, err
	}

	var (
		out      MoveResult
		userID   uuid.UUID
		unlocked []string
		ended    bool
		results  []result
	)
	err = m.lobbies.Update(ctx, code, func(l *models.Lobby) error {
		if l.Status != models.LobbyPlaying {
			return fmt.Errorf("lobby %d is not playing: %w", code, apperr.ErrInvalidState)
		}
		p := l.Player(token)
		if p == nil {
			return fmt.Errorf("player %s in lobby %d: %w", token, code, apperr.ErrNotFound)
		}
		if p.Status != models.PlayerPlaying {
			return fmt.Errorf("player %s is %s: %w", p.Name, p.Status, apperr.ErrInvalidState)
		}

		strategy, err := game.New(l.Mode, m.deps)
		if err != nil {
			return err
		}
		word, err := strategy.MakeCombination(ctx, p, inputs)
		if err != nil {
			return err
		}
		p.RecordCombination(word)
		unlocked = m.checkAchievements(p, word)
		l.Touch(m.clock.Now())

		if strategy.WinConditionReached(p) {
			p.Status = models.PlayerWon
			p.Points += strategy.WinBonus()
			out.Won = true
			results, ended = m.end(l)
		}

		out.Word = word
		out.Player = p.Clone()
		userID = p.UserID
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}

	log := m.logger.WithFields(logrus.Fields{"lobby_code": code, "player": token, "result": out.Word.Name})
	log.Debug("move resolved")

	if m.stats != nil && userID != uuid.Nil {
		if err := m.stats.RecordCombination(ctx, userID, out.Word); err != nil {
			log.WithError(err).Error("failed to record combination for user")
		}
	}
	for _, title := range unlocked {
		m.gateway.Publish(broadcast.LobbyChannel(code), broadcast.Message{
			Instruction: broadcast.Achievement,
			Message:     fmt.Sprintf("%s unlocked %s", out.Player.Name, title),
		})
	}
	if ended {
		m.finish(ctx, code, results, StopWon)
	}
	return out, nil
}

func (m *Manager) checkAchievements(p *models.Player, word models.Word) []string {
	var unlocked []string
	for _, a := range m.Achievements {
		if a.Unlocked(p, word) && p.Unlock(a.Title()) {
			unlocked = append(unlocked, a.Title())
		}
	}
	return unlocked
}
