// internal/words/memory.go
package words

import (
	"context"
	"math"
	"slices"
	"sync"

	"github.com/jason-s-yu/fusion/internal/models"
)

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu           sync.RWMutex
	words        map[string]models.Word
	combinations map[[2]string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		words:        make(map[string]models.Word),
		combinations: make(map[[2]string]string),
	}
}

func (r *MemoryRepository) Lookup(ctx context.Context, w1, w2 string) (models.Word, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.combinations[[2]string{w1, w2}]
	if !ok {
		return models.Word{}, false, nil
	}
	return r.words[result], true, nil
}

func (r *MemoryRepository) Record(ctx context.Context, w1, w2, result string) (models.Word, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := [2]string{w1, w2}
	if known, ok := r.combinations[key]; ok {
		return r.words[known], nil
	}

	parentDepth := max(r.words[w1].Depth, r.words[w2].Depth)
	var existing *models.Word
	if w, ok := r.words[result]; ok {
		existing = &w
	}
	w := Derive(existing, result, parentDepth)

	stored := w
	stored.NewlyDiscovered = false
	r.words[result] = stored
	r.combinations[key] = result
	return w, nil
}

func (r *MemoryRepository) Word(ctx context.Context, name string) (models.Word, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.words[name]
	return w, ok, nil
}

func (r *MemoryRepository) Within(ctx context.Context, min, max float64) ([]models.Word, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Word
	for _, w := range r.words {
		if w.Reachability >= min && w.Reachability <= max {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b models.Word) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

func (r *MemoryRepository) Closest(ctx context.Context, target float64) (models.Word, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best models.Word
	found := false
	for _, w := range r.words {
		if w.Depth == 0 {
			continue
		}
		d := math.Abs(w.Reachability - target)
		if !found || d < math.Abs(best.Reachability-target) || (d == math.Abs(best.Reachability-target) && w.Name < best.Name) {
			best, found = w, true
		}
	}
	return best, found, nil
}

func (r *MemoryRepository) Names(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.words))
	for name := range r.words {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

func (r *MemoryRepository) Seed(ctx context.Context, words []models.Word) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range words {
		if _, ok := r.words[w.Name]; !ok {
			w.NewlyDiscovered = false
			r.words[w.Name] = w
		}
	}
	return nil
}
