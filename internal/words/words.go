// internal/words/words.go
package words

import (
	"context"
	"math"

	"github.com/jason-s-yu/fusion/internal/models"
)

// StartingWords is the inventory every player begins a round with.
var StartingWords = []string{"water", "earth", "fire", "air"}

// StartingReachability marks the seed vocabulary as maximally reachable.
const StartingReachability = 1e6

// Repository stores the word graph: words and the combinations that produce them.
type Repository interface {
	// Lookup returns the result of a known combination. The pair must be in canonical order.
	Lookup(ctx context.Context, w1, w2 string) (models.Word, bool, error)
	// Record stores w1+w2 => result and creates or strengthens the result word with Derive, all
	// atomically. If the pair is already known the stored result wins. The returned word has
	// NewlyDiscovered set only if this call created it.
	Record(ctx context.Context, w1, w2, result string) (models.Word, error)
	Word(ctx context.Context, name string) (models.Word, bool, error)
	// Within returns the words whose reachability lies in [min, max].
	Within(ctx context.Context, min, max float64) ([]models.Word, error)
	// Closest returns the derived word (depth > 0) whose reachability is nearest to target.
	Closest(ctx context.Context, target float64) (models.Word, bool, error)
	// Names lists every known word.
	Names(ctx context.Context) ([]string, error)
	// Seed inserts the words that do not exist yet.
	Seed(ctx context.Context, words []models.Word) error
}

// Derive computes the stored state of a word produced by a combination whose deeper parent has
// parentDepth. A new word sits one level below its parents with reachability 1/2^depth. A word
// reached again through another pair gains 1/2^(parentDepth+1) reachability and keeps the
// shallower of the two depths.
func Derive(existing *models.Word, name string, parentDepth int) models.Word {
	depth := parentDepth + 1
	gain := math.Pow(0.5, float64(depth))
	if existing == nil {
		return models.Word{Name: name, Depth: depth, Reachability: gain, NewlyDiscovered: true}
	}
	w := *existing
	w.NewlyDiscovered = false
	w.Reachability += gain
	if depth < w.Depth {
		w.Depth = depth
	}
	return w
}

// SeedWords returns the starting vocabulary as word records.
func SeedWords() []models.Word {
	out := make([]models.Word, len(StartingWords))
	for i, name := range StartingWords {
		out[i] = models.Word{Name: name, Depth: 0, Reachability: StartingReachability}
	}
	return out
}
