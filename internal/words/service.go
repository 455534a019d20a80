// internal/words/service.go
package words

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Cache is a best-effort lookaside cache of combination results.
type Cache interface {
	Get(ctx context.Context, w1, w2 string) (models.Word, bool, error)
	Set(ctx context.Context, w1, w2 string, result models.Word) error
}

// Service resolves combinations, generating each unordered pair at most once.
type Service struct {
	repo      Repository
	cache     Cache
	generator Generator
	logger    logrus.FieldLogger
	group     singleflight.Group

	// Rand picks target words and pregeneration pairs.
	Rand   *rand.Rand
	randMu sync.Mutex
}

// NewService wires the service. cache may be nil. generator should already be wrapped in a
// Fallback; its errors are treated as generator failures.
func NewService(repo Repository, cache Cache, generator Generator, logger logrus.FieldLogger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		generator: generator,
		logger:    logger,
		Rand:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

type flightResult struct {
	word  models.Word
	owner *struct{}
}

// GetOrCreateCombination returns the result of combining a and b in either order. The generator
// runs only the first time a pair is seen, with the words in the order given, and falls back to a.
// Concurrent callers for the same pair share one call, which runs detached from any single caller
// so an abandoned request cannot decide the pair. NewlyDiscovered is set only for the caller whose
// call created the result word.
func (s *Service) GetOrCreateCombination(ctx context.Context, a, b string) (models.Word, error) {
	a, b = models.NormalizeWord(a), models.NormalizeWord(b)
	if a == "" || b == "" {
		return models.Word{}, fmt.Errorf("empty word in combination: %w", apperr.ErrInvalidMove)
	}
	if err := ctx.Err(); err != nil {
		return models.Word{}, fmt.Errorf("combine %s and %s: %w", a, b, err)
	}
	w1, w2 := models.PairKey(a, b)

	me := &struct{}{}
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(w1+"+"+w2, func() (interface{}, error) {
		w, err := s.resolve(flightCtx, a, b)
		return flightResult{word: w, owner: me}, err
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return models.Word{}, fmt.Errorf("combine %s and %s: %w", a, b, ctx.Err())
	}
	if res.Err != nil {
		return models.Word{}, res.Err
	}
	fr := res.Val.(flightResult)
	w := fr.word
	if fr.owner != me {
		w.NewlyDiscovered = false
	}
	return w, nil
}

// resolve looks the pair up and generates it when unknown. a and b are normalized and in the
// caller's order; storage and cache use the canonical pair.
func (s *Service) resolve(ctx context.Context, a, b string) (models.Word, error) {
	w1, w2 := models.PairKey(a, b)
	log := s.logger.WithFields(logrus.Fields{"word1": w1, "word2": w2})

	if s.cache != nil {
		w, ok, err := s.cache.Get(ctx, w1, w2)
		if err != nil {
			log.WithError(err).Warn("combination cache read failed")
		} else if ok {
			return w, nil
		}
	}

	w, ok, err := s.repo.Lookup(ctx, w1, w2)
	if err != nil {
		return models.Word{}, fmt.Errorf("lookup combination: %w", err)
	}
	if !ok {
		result, err := s.generator.Generate(ctx, a, b)
		result = models.NormalizeWord(result)
		if err != nil || result == "" {
			log.WithError(err).Warn("generator failed, using first word")
			result = a
		}
		w, err = s.repo.Record(ctx, w1, w2, result)
		if err != nil {
			return models.Word{}, fmt.Errorf("record combination: %w", err)
		}
		log.WithFields(logrus.Fields{"result": w.Name, "new": w.NewlyDiscovered}).Debug("generated combination")
	}

	if s.cache != nil {
		cached := w
		cached.NewlyDiscovered = false
		if err := s.cache.Set(ctx, w1, w2, cached); err != nil {
			log.WithError(err).Warn("combination cache write failed")
		}
	}
	return w, nil
}

// GetRandomWordWithinReachability picks a uniformly random word with reachability in [min, max].
// When the band is empty it falls back to the derived word closest to the middle of the band.
func (s *Service) GetRandomWordWithinReachability(ctx context.Context, min, max float64) (models.Word, error) {
	candidates, err := s.repo.Within(ctx, min, max)
	if err != nil {
		return models.Word{}, fmt.Errorf("list words within [%g, %g]: %w", min, max, err)
	}
	if len(candidates) > 0 {
		return candidates[s.intN(len(candidates))], nil
	}

	w, ok, err := s.repo.Closest(ctx, (min+max)/2)
	if err != nil {
		return models.Word{}, fmt.Errorf("closest word to [%g, %g]: %w", min, max, err)
	}
	if !ok {
		return models.Word{}, fmt.Errorf("no word within [%g, %g]: %w", min, max, apperr.ErrInternal)
	}
	s.logger.WithFields(logrus.Fields{"min": min, "max": max, "word": w.Name}).Info("no word in reachability band, using closest")
	return w, nil
}

// SeedStartingWords makes sure the starting vocabulary exists.
func (s *Service) SeedStartingWords(ctx context.Context) error {
	if err := s.repo.Seed(ctx, SeedWords()); err != nil {
		return fmt.Errorf("seed starting words: %w", err)
	}
	return nil
}

// MakeCombinations combines n random pairs of known words to grow the word graph, so target words
// exist before the first round.
func (s *Service) MakeCombinations(ctx context.Context, n int) error {
	names, err := s.repo.Names(ctx)
	if err != nil {
		return fmt.Errorf("list words: %w", err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no words to combine: %w", apperr.ErrInvalidState)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		a := names[s.intN(len(names))]
		b := names[s.intN(len(names))]
		w, err := s.GetOrCreateCombination(ctx, a, b)
		if err != nil {
			return err
		}
		if w.NewlyDiscovered {
			names = append(names, w.Name)
		}
	}
	return nil
}

func (s *Service) intN(n int) int {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.Rand.IntN(n)
}
