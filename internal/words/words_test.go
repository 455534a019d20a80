package words

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingGenerator answers from a fixed table and counts calls.
type countingGenerator struct {
	calls   atomic.Int32
	results map[string]string
	err     error
}

func (g *countingGenerator) Generate(ctx context.Context, w1, w2 string) (string, error) {
	g.calls.Add(1)
	if g.err != nil {
		return "", g.err
	}
	return g.results[w1+"+"+w2], nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]models.Word
}

func (c *mapCache) Get(ctx context.Context, w1, w2 string) (models.Word, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.data[w1+"+"+w2]
	return w, ok, nil
}

func (c *mapCache) Set(ctx context.Context, w1, w2 string, result models.Word) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[w1+"+"+w2] = result
	return nil
}

func setupService(t *testing.T, gen Generator) (*Service, *MemoryRepository) {
	logger, _ := test.NewNullLogger()
	repo := NewMemoryRepository()
	s := NewService(repo, &mapCache{data: map[string]models.Word{}}, &Fallback{Next: gen, Timeout: time.Second, Logger: logger}, logger)
	s.Rand = rand.New(rand.NewPCG(1, 2))
	require.NoError(t, s.SeedStartingWords(context.Background()))
	return s, repo
}

func TestDerive(t *testing.T) {
	w := Derive(nil, "steam", 0)
	assert.Equal(t, models.Word{Name: "steam", Depth: 1, Reachability: 0.5, NewlyDiscovered: true}, w)

	deeper := Derive(nil, "geyser", 2)
	assert.Equal(t, 3, deeper.Depth)
	assert.Equal(t, 0.125, deeper.Reachability)

	again := Derive(&deeper, "geyser", 0)
	assert.False(t, again.NewlyDiscovered)
	assert.Equal(t, 1, again.Depth)
	assert.Equal(t, 0.625, again.Reachability)
}

func TestCombinationIsCommutativeAndGeneratedOnce(t *testing.T) {
	gen := &countingGenerator{results: map[string]string{"water+fire": "Steam"}}
	s, _ := setupService(t, gen)
	ctx := context.Background()

	first, err := s.GetOrCreateCombination(ctx, "water", "fire")
	require.NoError(t, err)
	assert.Equal(t, "steam", first.Name)
	assert.True(t, first.NewlyDiscovered)
	assert.Equal(t, 1, first.Depth)

	second, err := s.GetOrCreateCombination(ctx, "FIRE", "water ")
	require.NoError(t, err)
	assert.Equal(t, "steam", second.Name)
	assert.False(t, second.NewlyDiscovered)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestConcurrentCallersShareOneGeneration(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	gen := GeneratorFunc(func(ctx context.Context, w1, w2 string) (string, error) {
		calls.Add(1)
		<-release
		return "mud", nil
	})
	s, _ := setupService(t, gen)

	var wg sync.WaitGroup
	var discovered atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := s.GetOrCreateCombination(context.Background(), "earth", "water")
			if err == nil && w.NewlyDiscovered {
				discovered.Add(1)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), discovered.Load())
}

func TestGeneratorFailureFallsBackToFirstWordAndIsCached(t *testing.T) {
	gen := &countingGenerator{err: errors.New("upstream down")}
	s, repo := setupService(t, gen)
	ctx := context.Background()

	w, err := s.GetOrCreateCombination(ctx, "water", "air")
	require.NoError(t, err)
	assert.Equal(t, "water", w.Name)

	w, err = s.GetOrCreateCombination(ctx, "air", "water")
	require.NoError(t, err)
	assert.Equal(t, "water", w.Name, "reversed pair reuses the stored result")
	assert.Equal(t, int32(1), gen.calls.Load())

	stored, ok, err := repo.Lookup(ctx, "air", "water")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "water", stored.Name)
}

func TestGeneratorSeesCallerOrder(t *testing.T) {
	var got [2]string
	gen := GeneratorFunc(func(ctx context.Context, w1, w2 string) (string, error) {
		got = [2]string{w1, w2}
		return "steam", nil
	})
	s, _ := setupService(t, gen)

	_, err := s.GetOrCreateCombination(context.Background(), "Water", "fire")
	require.NoError(t, err)
	assert.Equal(t, [2]string{"water", "fire"}, got)
}

func TestCancelledCallerDoesNotDecidePair(t *testing.T) {
	gen := &countingGenerator{results: map[string]string{"fire+water": "steam"}}
	s, repo := setupService(t, gen)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.GetOrCreateCombination(cancelled, "fire", "water")
	require.ErrorIs(t, err, context.Canceled)

	_, ok, err := repo.Lookup(context.Background(), "fire", "water")
	require.NoError(t, err)
	assert.False(t, ok, "nothing recorded for an abandoned request")

	w, err := s.GetOrCreateCombination(context.Background(), "fire", "water")
	require.NoError(t, err)
	assert.Equal(t, "steam", w.Name)
	assert.True(t, w.NewlyDiscovered)
}

func TestCallerLeavingMidFlightDoesNotFailGeneration(t *testing.T) {
	release := make(chan struct{})
	gen := GeneratorFunc(func(ctx context.Context, w1, w2 string) (string, error) {
		select {
		case <-release:
			return "mud", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	s, repo := setupService(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.GetOrCreateCombination(ctx, "earth", "water")
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	w, err := s.GetOrCreateCombination(context.Background(), "earth", "water")
	require.NoError(t, err)
	assert.Equal(t, "mud", w.Name)

	stored, ok, err := repo.Lookup(context.Background(), "earth", "water")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mud", stored.Name)
}

func TestFallbackTimeout(t *testing.T) {
	logger, hook := test.NewNullLogger()
	slow := GeneratorFunc(func(ctx context.Context, w1, w2 string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	f := &Fallback{Next: slow, Timeout: 10 * time.Millisecond, Logger: logger}

	got, err := f.Generate(context.Background(), "fire", "water")
	require.NoError(t, err)
	assert.Equal(t, "fire", got)
	require.NotNil(t, hook.LastEntry())
	assert.ErrorIs(t, hook.LastEntry().Data["error"].(error), apperr.ErrGeneratorFailure)
}

func TestEmptyWordIsInvalidMove(t *testing.T) {
	s, _ := setupService(t, &countingGenerator{})
	_, err := s.GetOrCreateCombination(context.Background(), "water", "  ")
	assert.ErrorIs(t, err, apperr.ErrInvalidMove)
}

func TestRandomWordWithinReachability(t *testing.T) {
	s, repo := setupService(t, &countingGenerator{})
	ctx := context.Background()

	_, err := s.GetRandomWordWithinReachability(ctx, 0.1, 0.3)
	assert.ErrorIs(t, err, apperr.ErrInternal, "only starting words exist")

	_, err = repo.Record(ctx, "fire", "water", "steam") // 0.5
	require.NoError(t, err)
	_, err = repo.Record(ctx, "steam", "water", "cloud") // 0.25
	require.NoError(t, err)

	w, err := s.GetRandomWordWithinReachability(ctx, 0.1, 0.3)
	require.NoError(t, err)
	assert.Equal(t, "cloud", w.Name)

	// empty band falls back to the closest derived word
	w, err = s.GetRandomWordWithinReachability(ctx, 0.01, 0.1)
	require.NoError(t, err)
	assert.Equal(t, "cloud", w.Name)
}

// countingNames counts full word listings.
type countingNames struct {
	*MemoryRepository
	names atomic.Int32
}

func (r *countingNames) Names(ctx context.Context) ([]string, error) {
	r.names.Add(1)
	return r.MemoryRepository.Names(ctx)
}

func TestMakeCombinationsGrowsGraph(t *testing.T) {
	n := 0
	gen := GeneratorFunc(func(ctx context.Context, w1, w2 string) (string, error) {
		n++
		return "word" + string(rune('a'+n%26)), nil
	})
	logger, _ := test.NewNullLogger()
	repo := &countingNames{MemoryRepository: NewMemoryRepository()}
	s := NewService(repo, nil, &Fallback{Next: gen, Timeout: time.Second, Logger: logger}, logger)
	s.Rand = rand.New(rand.NewPCG(1, 2))
	ctx := context.Background()
	require.NoError(t, s.SeedStartingWords(ctx))

	require.NoError(t, s.MakeCombinations(ctx, 10))
	assert.Equal(t, int32(1), repo.names.Load(), "word list read once per call")

	names, err := repo.MemoryRepository.Names(ctx)
	require.NoError(t, err)
	assert.Greater(t, len(names), len(StartingWords))
}

func TestHTTPGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/combine", r.URL.Path)
		var req generateRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		if req.Word1 == "bad" {
			http.Error(w, "nope", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Result: req.Word1 + req.Word2})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(srv.URL, time.Second)
	got, err := g.Generate(context.Background(), "sun", "moon")
	require.NoError(t, err)
	assert.Equal(t, "sunmoon", got)

	_, err = g.Generate(context.Background(), "bad", "word")
	assert.Error(t, err)
}
