package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLobbyWithPlayer(code int64) (*models.Lobby, *models.Player) {
	l := models.NewLobby(code, "lobby", time.Now())
	p := models.NewPlayer("alice", code)
	l.AddPlayer(p)
	l.OwnerToken = p.Token
	return l, p
}

func TestMemoryCreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLobbies()
	l, p := newLobbyWithPlayer(1234)

	require.NoError(t, s.Create(ctx, l))
	assert.ErrorIs(t, s.Create(ctx, l), ErrCodeTaken)

	got, err := s.Get(ctx, 1234)
	require.NoError(t, err)
	assert.Equal(t, "lobby", got.Name)

	// snapshots are detached from the stored lobby
	got.Name = "changed"
	again, _ := s.Get(ctx, 1234)
	assert.Equal(t, "lobby", again.Name)

	code, err := s.LobbyOfPlayer(ctx, p.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), code)

	_, err = s.Get(ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryUpdateCommitsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLobbies()
	l, _ := newLobbyWithPlayer(1000)
	require.NoError(t, s.Create(ctx, l))

	boom := errors.New("boom")
	err := s.Update(ctx, 1000, func(l *models.Lobby) error {
		l.Name = "half-done"
		l.Players[0].AddWord("steam")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := s.Get(ctx, 1000)
	assert.Equal(t, "lobby", got.Name)
	assert.Empty(t, got.Players[0].Words)

	bob := models.NewPlayer("bob", 0)
	require.NoError(t, s.Update(ctx, 1000, func(l *models.Lobby) error {
		l.AddPlayer(bob)
		return nil
	}))
	code, err := s.LobbyOfPlayer(ctx, bob.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), code)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLobbies()
	l, p := newLobbyWithPlayer(2000)
	require.NoError(t, s.Create(ctx, l))

	skip := errors.New("skip")
	assert.ErrorIs(t, s.Delete(ctx, 2000, func(*models.Lobby) error { return skip }), skip)
	ok, _ := s.Exists(ctx, 2000)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, 2000, nil))
	ok, _ = s.Exists(ctx, 2000)
	assert.False(t, ok)
	_, err := s.LobbyOfPlayer(ctx, p.Token)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, 2000, func(*models.Lobby) error { return nil }), apperr.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, 2000, nil), apperr.ErrNotFound)
}

func TestMemoryUpdatesAreSerializedPerLobby(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLobbies()
	l, _ := newLobbyWithPlayer(3000)
	require.NoError(t, s.Create(ctx, l))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, 3000, func(l *models.Lobby) error {
				l.Players[0].Points++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, 3000)
	assert.Equal(t, 50, got.Players[0].Points)
}

func TestMemoryListOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLobbies()
	for _, code := range []int64{5000, 1000, 3000} {
		l, _ := newLobbyWithPlayer(code)
		require.NoError(t, s.Create(ctx, l))
	}
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{1000, 3000, 5000}, []int64{list[0].Code, list[1].Code, list[2].Code})
}

func TestMemoryUserStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUserStats()
	id := uuid.New()

	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, s.RecordResult(ctx, id, true))
	require.NoError(t, s.RecordResult(ctx, id, false))
	require.NoError(t, s.RecordCombination(ctx, id, models.Word{Name: "steam", Reachability: 0.5, NewlyDiscovered: true}))
	require.NoError(t, s.RecordCombination(ctx, id, models.Word{Name: "lava", Reachability: 0.25}))

	st, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.Equal(t, 2, st.CombinationsMade)
	assert.Equal(t, 1, st.DiscoveredWords)
	assert.Equal(t, "lava", st.RarestWord)
}
