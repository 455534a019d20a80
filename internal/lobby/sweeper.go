// internal/lobby/sweeper.go
package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/broadcast"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/sirupsen/logrus"
)

// InactivityMessage is sent with KICK to lobbies closed by the sweeper.
const InactivityMessage = "The lobby was closed due to inactivity"

var errStillActive = errors.New("lobby still active")

// Sweeper periodically removes lobbies that have been idle for at least Threshold.
type Sweeper struct {
	svc       *Service
	Period    time.Duration
	Threshold time.Duration
}

func NewSweeper(svc *Service, period, threshold time.Duration) *Sweeper {
	return &Sweeper{svc: svc, Period: period, Threshold: threshold}
}

// Run sweeps every Period until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := sw.svc.clock.NewTicker(sw.Period)
	defer ticker.Stop()

	sw.svc.logger.WithFields(logrus.Fields{
		"period":    sw.Period,
		"threshold": sw.Threshold,
	}).Info("lobby sweeper started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			sw.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Each idle lobby is removed in its own unit of work; a failure is logged and
// the pass moves on. It returns the codes that were removed.
func (sw *Sweeper) Sweep(ctx context.Context) []int64 {
	s := sw.svc
	codes, err := s.lobbies.Codes(ctx)
	if err != nil {
		s.logger.WithError(err).Error("sweeper could not enumerate lobbies")
		return nil
	}

	var removed []int64
	for _, code := range codes {
		var lastActivity time.Time
		err := s.lobbies.Delete(ctx, code, func(l *models.Lobby) error {
			if s.clock.Since(l.LastActivity) < sw.Threshold {
				return errStillActive
			}
			lastActivity = l.LastActivity
			s.arena.Cancel(code)
			return nil
		})
		switch {
		case errors.Is(err, errStillActive), errors.Is(err, apperr.ErrNotFound):
			continue
		case err != nil:
			s.logger.WithError(err).WithField("lobby_code", code).Error("sweeper failed to remove lobby")
			continue
		}

		removed = append(removed, code)
		s.gateway.Publish(broadcast.LobbyChannel(code), broadcast.Message{
			Instruction: broadcast.Kick,
			Message:     InactivityMessage,
		})
		s.logger.WithFields(logrus.Fields{
			"lobby_code":    code,
			"last_activity": lastActivity,
		}).Info("lobby closed due to inactivity")
	}

	s.PublishLobbyList(ctx)
	return removed
}
