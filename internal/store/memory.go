// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/models"
)

type memoryEntry struct {
	mu      sync.Mutex
	lobby   *models.Lobby
	removed bool
}

// MemoryLobbies keeps lobbies in process memory. Each lobby has its own mutex; units of work
// operate on a clone that replaces the stored lobby on success.
type MemoryLobbies struct {
	mu      sync.RWMutex
	lobbies map[int64]*memoryEntry
	players map[uuid.UUID]int64
}

// NewMemoryLobbies returns an empty in-memory store.
func NewMemoryLobbies() *MemoryLobbies {
	return &MemoryLobbies{
		lobbies: make(map[int64]*memoryEntry),
		players: make(map[uuid.UUID]int64),
	}
}

func (s *MemoryLobbies) Create(ctx context.Context, l *models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[l.Code]; ok {
		return fmt.Errorf("create lobby %d: %w", l.Code, ErrCodeTaken)
	}
	c := l.Clone()
	s.lobbies[l.Code] = &memoryEntry{lobby: c}
	for _, p := range c.Players {
		s.players[p.Token] = c.Code
	}
	return nil
}

func (s *MemoryLobbies) entry(code int64) (*memoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.lobbies[code]
	if !ok {
		return nil, fmt.Errorf("lobby %d: %w", code, apperr.ErrNotFound)
	}
	return e, nil
}

func (s *MemoryLobbies) Get(ctx context.Context, code int64) (*models.Lobby, error) {
	e, err := s.entry(code)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, fmt.Errorf("lobby %d: %w", code, apperr.ErrNotFound)
	}
	return e.lobby.Clone(), nil
}

func (s *MemoryLobbies) Codes(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	codes := make([]int64, 0, len(s.lobbies))
	for code := range s.lobbies {
		codes = append(codes, code)
	}
	s.mu.RUnlock()
	slices.Sort(codes)
	return codes, nil
}

func (s *MemoryLobbies) List(ctx context.Context) ([]*models.Lobby, error) {
	codes, _ := s.Codes(ctx)
	out := make([]*models.Lobby, 0, len(codes))
	for _, code := range codes {
		l, err := s.Get(ctx, code)
		if err != nil {
			// removed since Codes ran
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *MemoryLobbies) Exists(ctx context.Context, code int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lobbies[code]
	return ok, nil
}

func (s *MemoryLobbies) Update(ctx context.Context, code int64, fn func(l *models.Lobby) error) error {
	e, err := s.entry(code)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("lobby %d: %w", code, apperr.ErrNotFound)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	staged := e.lobby.Clone()
	if err := fn(staged); err != nil {
		return err
	}
	staged.Code = code

	s.mu.Lock()
	for _, p := range e.lobby.Players {
		delete(s.players, p.Token)
	}
	for _, p := range staged.Players {
		s.players[p.Token] = code
	}
	s.mu.Unlock()

	e.lobby = staged
	return nil
}

func (s *MemoryLobbies) Delete(ctx context.Context, code int64, fn func(l *models.Lobby) error) error {
	e, err := s.entry(code)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("lobby %d: %w", code, apperr.ErrNotFound)
	}
	if fn != nil {
		if err := fn(e.lobby.Clone()); err != nil {
			return err
		}
	}

	s.mu.Lock()
	delete(s.lobbies, code)
	for _, p := range e.lobby.Players {
		delete(s.players, p.Token)
	}
	s.mu.Unlock()

	e.removed = true
	return nil
}

func (s *MemoryLobbies) LobbyOfPlayer(ctx context.Context, token uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.players[token]
	if !ok {
		return 0, fmt.Errorf("player %s: %w", token, apperr.ErrNotFound)
	}
	return code, nil
}

// MemoryUserStats is an in-process UserStats.
type MemoryUserStats struct {
	mu    sync.Mutex
	stats map[uuid.UUID]*models.UserStats
}

func NewMemoryUserStats() *MemoryUserStats {
	return &MemoryUserStats{stats: make(map[uuid.UUID]*models.UserStats)}
}

func (s *MemoryUserStats) get(userID uuid.UUID) *models.UserStats {
	st, ok := s.stats[userID]
	if !ok {
		st = &models.UserStats{UserID: userID}
		s.stats[userID] = st
	}
	return st
}

func (s *MemoryUserStats) RecordResult(ctx context.Context, userID uuid.UUID, won bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(userID)
	if won {
		st.Wins++
	} else {
		st.Losses++
	}
	return nil
}

func (s *MemoryUserStats) RecordCombination(ctx context.Context, userID uuid.UUID, result models.Word) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(userID)
	st.CombinationsMade++
	if result.NewlyDiscovered {
		st.DiscoveredWords++
	}
	if st.RarestWord == "" || result.Reachability < st.RarestReachability {
		st.RarestWord = result.Name
		st.RarestReachability = result.Reachability
	}
	return nil
}

func (s *MemoryUserStats) Get(ctx context.Context, userID uuid.UUID) (models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[userID]
	if !ok {
		return models.UserStats{}, fmt.Errorf("stats for user %s: %w", userID, apperr.ErrNotFound)
	}
	return *st, nil
}
