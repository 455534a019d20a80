// internal/game/modes.go
package game

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/sirupsen/logrus"
)

// Standard is free play: no goal, no win.
type Standard struct {
	deps Deps
}

func (s *Standard) Mode() models.GameMode { return models.ModeStandard }

func (s *Standard) SetupPlayers(ctx context.Context, players []*models.Player) error {
	resetAll(players)
	return nil
}

func (s *Standard) MakeCombination(ctx context.Context, p *models.Player, inputs []string) (models.Word, error) {
	return combine(ctx, s.deps.Words, p, inputs)
}

func (s *Standard) WinConditionReached(p *models.Player) bool { return false }

func (s *Standard) WinBonus() int { return 0 }

// TargetWord is a race to a shared target word drawn from a reachability band. FUSIONFRENZY and
// WOMBOCOMBO differ only in the band and the bonus.
type TargetWord struct {
	deps Deps
	mode models.GameMode

	Min, Max float64
	Bonus    int
}

func (t *TargetWord) Mode() models.GameMode { return t.mode }

func (t *TargetWord) SetupPlayers(ctx context.Context, players []*models.Player) error {
	target, err := t.deps.Words.GetRandomWordWithinReachability(ctx, t.Min, t.Max)
	if err != nil {
		return fmt.Errorf("pick target word: %w", err)
	}
	resetAll(players)
	for _, p := range players {
		p.TargetWord = target.Name
	}
	t.deps.Logger.WithFields(logrus.Fields{
		"mode":   t.mode,
		"target": target.Name,
	}).Debug("assigned target word")
	return nil
}

func (t *TargetWord) MakeCombination(ctx context.Context, p *models.Player, inputs []string) (models.Word, error) {
	return combine(ctx, t.deps.Words, p, inputs)
}

func (t *TargetWord) WinConditionReached(p *models.Player) bool {
	return p.TargetWord != "" && p.HasWord(p.TargetWord)
}

func (t *TargetWord) WinBonus() int { return t.Bonus }
