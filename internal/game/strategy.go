// internal/game/strategy.go
package game

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/jason-s-yu/fusion/internal/words"
	"github.com/sirupsen/logrus"
)

// WordSource is the part of the word service a game mode needs.
type WordSource interface {
	GetOrCreateCombination(ctx context.Context, a, b string) (models.Word, error)
	GetRandomWordWithinReachability(ctx context.Context, min, max float64) (models.Word, error)
}

// Deps are the collaborators shared by every mode.
type Deps struct {
	Words  WordSource
	Logger logrus.FieldLogger
}

// Strategy is the rule set of one game mode. Implementations keep no per-round state; everything
// lives on the players so a strategy can be built fresh for every call.
type Strategy interface {
	Mode() models.GameMode
	// SetupPlayers resets every player for a new round and assigns mode-specific goals.
	SetupPlayers(ctx context.Context, players []*models.Player) error
	// MakeCombination validates the move, resolves it and adds the result to the inventory. On
	// error the player is left untouched.
	MakeCombination(ctx context.Context, p *models.Player, inputs []string) (models.Word, error)
	// WinConditionReached reports whether the player has met the goal of the round.
	WinConditionReached(p *models.Player) bool
	// WinBonus is the number of points granted on winning.
	WinBonus() int
}

// New returns the strategy for the mode.
func New(mode models.GameMode, deps Deps) (Strategy, error) {
	switch mode {
	case models.ModeStandard:
		return &Standard{deps: deps}, nil
	case models.ModeFusionFrenzy:
		return &TargetWord{
			deps:  deps,
			mode:  models.ModeFusionFrenzy,
			Min:   0.1,
			Max:   0.3,
			Bonus: 1000,
		}, nil
	case models.ModeWomboCombo:
		return &TargetWord{
			deps:  deps,
			mode:  models.ModeWomboCombo,
			Min:   0.01,
			Max:   0.1,
			Bonus: 2000,
		}, nil
	default:
		return nil, fmt.Errorf("no rules for game mode %q: %w", mode, apperr.ErrInternal)
	}
}

// combine is the pairwise fusion shared by all modes: exactly two words, both in the inventory.
func combine(ctx context.Context, ws WordSource, p *models.Player, inputs []string) (models.Word, error) {
	if len(inputs) != 2 {
		return models.Word{}, fmt.Errorf("exactly two words can be combined, got %d: %w", len(inputs), apperr.ErrInvalidMove)
	}
	for _, w := range inputs {
		if !p.HasWord(w) {
			return models.Word{}, fmt.Errorf("word %q is not in the inventory: %w", models.NormalizeWord(w), apperr.ErrInvalidMove)
		}
	}

	result, err := ws.GetOrCreateCombination(ctx, inputs[0], inputs[1])
	if err != nil {
		return models.Word{}, err
	}
	p.AddWord(result.Name)
	return result, nil
}

func resetAll(players []*models.Player) {
	for _, p := range players {
		p.Reset(words.StartingWords)
	}
}
