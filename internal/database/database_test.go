package database

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/jason-s-yu/fusion/internal/store"
	"github.com/jason-s-yu/fusion/internal/words"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupDB connects to DATABASE_URL and empties the tables. Tests skip when it is not set.
func setupDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	logger, _ := test.NewNullLogger()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, url, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE lobbies, players, words, combinations, user_stats`)
	require.NoError(t, err)
	return pool
}

func newLobby(code int64, playerNames ...string) *models.Lobby {
	l := models.NewLobby(code, "test lobby", time.Now().UTC().Truncate(time.Microsecond))
	for _, name := range playerNames {
		l.AddPlayer(models.NewPlayer(name, code))
	}
	if len(l.Players) > 0 {
		l.OwnerToken = l.Players[0].Token
	}
	return l
}

func TestLobbiesRoundTrip(t *testing.T) {
	pool := setupDB(t)
	s := NewLobbies(pool)
	ctx := context.Background()

	l := newLobby(1234, "alice", "bob")
	l.Players[1].UserID = uuid.New()
	require.NoError(t, s.Create(ctx, l))

	err := s.Create(ctx, newLobby(1234, "carol"))
	assert.ErrorIs(t, err, store.ErrCodeTaken)

	got, err := s.Get(ctx, 1234)
	require.NoError(t, err)
	assert.Equal(t, l.Name, got.Name)
	assert.Equal(t, l.OwnerToken, got.OwnerToken)
	require.Len(t, got.Players, 2)
	assert.Equal(t, "alice", got.Players[0].Name)
	assert.Equal(t, l.Players[1].UserID, got.Players[1].UserID)

	code, err := s.LobbyOfPlayer(ctx, l.Players[1].Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), code)

	ok, err := s.Exists(ctx, 1234)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Get(ctx, 4321)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLobbiesUpdate(t *testing.T) {
	pool := setupDB(t)
	s := NewLobbies(pool)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newLobby(2000, "alice", "bob")))

	err := s.Update(ctx, 2000, func(l *models.Lobby) error {
		l.Status = models.LobbyPlaying
		l.Mode = models.ModeFusionFrenzy
		for _, p := range l.Players {
			p.Reset(words.StartingWords)
			p.TargetWord = "steam"
			p.RecordCombination(models.Word{Name: "steam", Depth: 1, Reachability: 0.5})
		}
		l.Players[0].Unlock("Pioneer")
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyPlaying, got.Status)
	assert.Equal(t, models.ModeFusionFrenzy, got.Mode)
	assert.Equal(t, words.StartingWords, got.Players[0].Words)
	assert.Equal(t, "steam", got.Players[1].Stats.RarestWord)
	assert.Equal(t, []string{"Pioneer"}, got.Players[0].Achievements)

	// a failing unit leaves nothing behind
	boom := errors.New("boom")
	err = s.Update(ctx, 2000, func(l *models.Lobby) error {
		l.Status = models.LobbyPregame
		l.RemovePlayer(l.Players[0].Token)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, err = s.Get(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyPlaying, got.Status)
	assert.Len(t, got.Players, 2)
}

func TestLobbiesUpdateSerializes(t *testing.T) {
	pool := setupDB(t)
	s := NewLobbies(pool)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newLobby(3000, "alice")))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, 3000, func(l *models.Lobby) error {
				l.Players[0].Points++
				return nil
			}))
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, 3000)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Players[0].Points)
}

func TestLobbiesDelete(t *testing.T) {
	pool := setupDB(t)
	s := NewLobbies(pool)
	ctx := context.Background()
	l := newLobby(4000, "alice")
	require.NoError(t, s.Create(ctx, l))

	keep := errors.New("keep")
	assert.ErrorIs(t, s.Delete(ctx, 4000, func(*models.Lobby) error { return keep }), keep)
	ok, err := s.Exists(ctx, 4000)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, 4000, nil))
	_, err = s.LobbyOfPlayer(ctx, l.Players[0].Token)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, 4000, nil), apperr.ErrNotFound)

	codes, err := s.Codes(ctx)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestWordsRecord(t *testing.T) {
	pool := setupDB(t)
	r := NewWords(pool)
	ctx := context.Background()
	require.NoError(t, r.Seed(ctx, words.SeedWords()))

	steam, err := r.Record(ctx, "fire", "water", "steam")
	require.NoError(t, err)
	assert.True(t, steam.NewlyDiscovered)
	assert.Equal(t, 1, steam.Depth)
	assert.InDelta(t, 0.5, steam.Reachability, 1e-9)

	again, err := r.Record(ctx, "fire", "water", "mist")
	require.NoError(t, err)
	assert.Equal(t, "steam", again.Name, "the first result for a pair stands")
	assert.False(t, again.NewlyDiscovered)

	cloud, err := r.Record(ctx, "air", "steam", "cloud")
	require.NoError(t, err)
	assert.Equal(t, 2, cloud.Depth)

	steam2, err := r.Record(ctx, "air", "water", "steam")
	require.NoError(t, err)
	assert.False(t, steam2.NewlyDiscovered)
	assert.InDelta(t, 1.0, steam2.Reachability, 1e-9)

	w, ok, err := r.Lookup(ctx, "fire", "water")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "steam", w.Name)

	within, err := r.Within(ctx, 0.1, 0.3)
	require.NoError(t, err)
	require.Len(t, within, 1)
	assert.Equal(t, "cloud", within[0].Name)

	closest, ok, err := r.Closest(ctx, 0.01)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cloud", closest.Name)

	names, err := r.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"air", "cloud", "earth", "fire", "steam", "water"}, names)
}

func TestUserStats(t *testing.T) {
	pool := setupDB(t)
	s := NewUserStats(pool)
	ctx := context.Background()
	id := uuid.New()

	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, s.RecordResult(ctx, id, true))
	require.NoError(t, s.RecordResult(ctx, id, false))
	require.NoError(t, s.RecordCombination(ctx, id, models.Word{Name: "steam", Reachability: 0.5, NewlyDiscovered: true}))
	require.NoError(t, s.RecordCombination(ctx, id, models.Word{Name: "cloud", Reachability: 0.25}))
	require.NoError(t, s.RecordCombination(ctx, id, models.Word{Name: "mud", Reachability: 0.75}))

	st, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.Equal(t, 3, st.CombinationsMade)
	assert.Equal(t, 1, st.DiscoveredWords)
	assert.Equal(t, "cloud", st.RarestWord)
}
