// internal/session/achievements.go
package session

import (
	"unicode/utf8"

	"github.com/jason-s-yu/fusion/internal/models"
)

// Achievement is a one-time award checked after every move.
type Achievement interface {
	Title() string
	Unlocked(p *models.Player, result models.Word) bool
}

// LongWord is unlocked by creating a word longer than MinLength characters.
type LongWord struct {
	MinLength int
}

func (a LongWord) Title() string { return "Supercalifragilisticexpialidocious" }

func (a LongWord) Unlocked(p *models.Player, result models.Word) bool {
	return utf8.RuneCountInString(result.Name) > a.MinLength
}

// FirstDiscovery is unlocked by creating a word nobody had created before.
type FirstDiscovery struct{}

func (FirstDiscovery) Title() string { return "Pioneer" }

func (FirstDiscovery) Unlocked(p *models.Player, result models.Word) bool {
	return result.NewlyDiscovered
}

// DefaultAchievements is the set a new Manager checks.
func DefaultAchievements() []Achievement {
	return []Achievement{LongWord{MinLength: 11}, FirstDiscovery{}}
}
