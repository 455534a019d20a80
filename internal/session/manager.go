// internal/session/manager.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/broadcast"
	"github.com/jason-s-yu/fusion/internal/game"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/jason-s-yu/fusion/internal/store"
	"github.com/jason-s-yu/fusion/internal/timer"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// STOP messages by cause.
const (
	StopTimeUp  = "Time is up!"
	StopWon     = "The target word was found!"
	StopEnded   = "The game was ended."
	AbortReason = "The game was aborted by the lobby owner."
)

var errStaleCountdown = errors.New("stale countdown")

// Manager drives lobbies through PREGAME -> PLAYING -> PREGAME.
//
// Every transition happens inside a store unit of work on the one lobby it touches. EndSession is
// the single place a round ends; whichever caller finds the lobby PLAYING performs the
// transition, everybody else observes PREGAME and does nothing.
type Manager struct {
	lobbies store.Lobbies
	stats   store.UserStats
	arena   *timer.Arena
	gateway broadcast.Gateway
	deps    game.Deps
	clock   clockwork.Clock
	logger  logrus.FieldLogger

	// Achievements are checked after every resolved move.
	Achievements []Achievement
}

// NewManager wires a manager and registers it as the arena's listener. stats may be nil.
func NewManager(
	lobbies store.Lobbies,
	stats store.UserStats,
	arena *timer.Arena,
	gateway broadcast.Gateway,
	deps game.Deps,
	clock clockwork.Clock,
	logger logrus.FieldLogger,
) *Manager {
	m := &Manager{
		lobbies:      lobbies,
		stats:        stats,
		arena:        arena,
		gateway:      gateway,
		deps:         deps,
		clock:        clock,
		logger:       logger,
		Achievements: DefaultAchievements(),
	}
	arena.SetListener(m)
	return m
}

// result is what a finished round leaves to do after its unit of work committed.
type result struct {
	userID uuid.UUID
	won    bool
}

// StartSession sets up every player with the lobby's mode, arms the countdown when the lobby has
// a time limit and broadcasts START with the limit in seconds.
func (m *Manager) StartSession(ctx context.Context, code int64) error {
	var (
		timeLimit int
		armed     bool
		gen       uint64
	)
	err := m.lobbies.Update(ctx, code, func(l *models.Lobby) error {
		if len(l.Players) == 0 {
			return fmt.Errorf("lobby %d has no players: %w", code, apperr.ErrInvalidState)
		}
		if l.Status == models.LobbyPlaying {
			return fmt.Errorf("lobby %d is already playing: %w", code, apperr.ErrInvalidState)
		}

		strategy, err := game.New(l.Mode, m.deps)
		if err != nil {
			return err
		}
		if err := strategy.SetupPlayers(ctx, l.Players); err != nil {
			return err
		}

		now := m.clock.Now()
		l.Status = models.LobbyPlaying
		l.StartedAt = now
		l.Touch(now)

		timeLimit = l.TimeLimit
		if timeLimit > 0 {
			gen = m.arena.Arm(code, timeLimit)
			armed = true
		}
		return nil
	})
	if err != nil {
		if armed {
			m.arena.Discard(code, gen)
		}
		return err
	}

	m.logger.WithFields(logrus.Fields{"lobby_code": code, "time_limit": timeLimit}).Info("session started")
	m.gateway.Publish(broadcast.LobbyChannel(code), broadcast.Message{
		Instruction: broadcast.Start,
		Message:     strconv.Itoa(timeLimit),
	})
	return nil
}

// EndSession ends the running round. Calling it on a lobby that is not PLAYING is a no-op.
func (m *Manager) EndSession(ctx context.Context, code int64) error {
	var (
		ended   bool
		results []result
	)
	err := m.lobbies.Update(ctx, code, func(l *models.Lobby) error {
		results, ended = m.end(l)
		if !ended {
			return errNothingToDo
		}
		return nil
	})
	if errors.Is(err, errNothingToDo) {
		return nil
	}
	if err != nil {
		return err
	}
	m.finish(ctx, code, results, StopEnded)
	return nil
}

// AbortSession ends the running round on request, announcing ABORT_GAME before STOP.
func (m *Manager) AbortSession(ctx context.Context, code int64) error {
	var results []result
	err := m.lobbies.Update(ctx, code, func(l *models.Lobby) error {
		var ended bool
		results, ended = m.end(l)
		if !ended {
			return fmt.Errorf("lobby %d is not playing: %w", code, apperr.ErrInvalidState)
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.gateway.Publish(broadcast.LobbyChannel(code), broadcast.Message{
		Instruction: broadcast.AbortGame,
		Message:     AbortReason,
	})
	m.finish(ctx, code, results, StopEnded)
	return nil
}

var errNothingToDo = errors.New("nothing to do")

// end performs the PLAYING -> PREGAME transition on a lobby inside a unit of work. It reports
// false when the lobby was not playing.
func (m *Manager) end(l *models.Lobby) ([]result, bool) {
	if l.Status != models.LobbyPlaying {
		return nil, false
	}
	m.arena.Cancel(l.Code)

	anyWon := false
	for _, p := range l.Players {
		if p.Status == models.PlayerWon {
			anyWon = true
			break
		}
	}

	var results []result
	for _, p := range l.Players {
		if p.Status == models.PlayerPlaying {
			if anyWon {
				p.Status = models.PlayerLost
			} else {
				p.Status = models.PlayerReady
			}
		}
		if p.UserID == uuid.Nil {
			continue
		}
		switch p.Status {
		case models.PlayerWon:
			results = append(results, result{userID: p.UserID, won: true})
		case models.PlayerLost:
			results = append(results, result{userID: p.UserID, won: false})
		}
	}

	l.Status = models.LobbyPregame
	l.TimeLimit = 0
	l.Touch(m.clock.Now())
	return results, true
}

// finish runs the side effects of an ended round once its unit of work committed.
func (m *Manager) finish(ctx context.Context, code int64, results []result, message string) {
	log := m.logger.WithField("lobby_code", code)
	if m.stats != nil {
		for _, r := range results {
			if err := m.stats.RecordResult(ctx, r.userID, r.won); err != nil {
				log.WithError(err).WithField("user", r.userID).Error("failed to record result")
			}
		}
	}
	log.WithField("reason", message).Info("session ended")
	m.gateway.Publish(broadcast.LobbyChannel(code), broadcast.Message{
		Instruction: broadcast.Stop,
		Message:     message,
	})
}

// Checkpoint relays a countdown checkpoint to the lobby.
func (m *Manager) Checkpoint(code int64, remaining int) {
	m.gateway.Publish(broadcast.LobbyChannel(code), broadcast.Message{
		Instruction: broadcast.UpdateTimer,
		Message:     strconv.Itoa(remaining),
	})
}

// Expired resolves a countdown that ran out. It opens its own unit of work: a lobby deleted in the
// meantime only discards the countdown, and a countdown that was cancelled or replaced before the
// unit started changes nothing. In timed modes every player still PLAYING loses.
func (m *Manager) Expired(ctx context.Context, code int64, gen uint64) error {
	var (
		ended   bool
		results []result
	)
	err := m.lobbies.Update(ctx, code, func(l *models.Lobby) error {
		if !m.arena.IsCurrent(code, gen) {
			return errStaleCountdown
		}
		if l.Status != models.LobbyPlaying {
			m.arena.Discard(code, gen)
			return errStaleCountdown
		}
		if l.Mode.Timed() {
			for _, p := range l.Players {
				if p.Status == models.PlayerPlaying {
					p.Status = models.PlayerLost
				}
			}
		}
		results, ended = m.end(l)
		return nil
	})
	switch {
	case errors.Is(err, errStaleCountdown):
		return nil
	case errors.Is(err, apperr.ErrNotFound):
		m.arena.Discard(code, gen)
		return nil
	case err != nil:
		return fmt.Errorf("expire lobby %d: %w", code, err)
	}
	if ended {
		m.finish(ctx, code, results, StopTimeUp)
	}
	return nil
}
