package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/jason-s-yu/fusion/internal/store"
)

// UserStats is a Postgres store.UserStats. Every update is a single upsert.
type UserStats struct {
	pool *pgxpool.Pool
}

var _ store.UserStats = (*UserStats)(nil)

func NewUserStats(pool *pgxpool.Pool) *UserStats {
	return &UserStats{pool: pool}
}

func (s *UserStats) RecordResult(ctx context.Context, userID uuid.UUID, won bool) error {
	wins, losses := 0, 1
	if won {
		wins, losses = 1, 0
	}
	q := `
	INSERT INTO user_stats (user_id, wins, losses)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE
	SET wins = user_stats.wins + EXCLUDED.wins,
	    losses = user_stats.losses + EXCLUDED.losses
	`
	if _, err := s.pool.Exec(ctx, q, userID, wins, losses); err != nil {
		return fmt.Errorf("record result for user %s: %w", userID, err)
	}
	return nil
}

func (s *UserStats) RecordCombination(ctx context.Context, userID uuid.UUID, result models.Word) error {
	discovered := 0
	if result.NewlyDiscovered {
		discovered = 1
	}
	q := `
	INSERT INTO user_stats (user_id, combinations_made, discovered_words, rarest_word, rarest_reachability)
	VALUES ($1, 1, $2, $3, $4)
	ON CONFLICT (user_id) DO UPDATE
	SET combinations_made = user_stats.combinations_made + 1,
	    discovered_words = user_stats.discovered_words + EXCLUDED.discovered_words,
	    rarest_word = CASE
	        WHEN user_stats.rarest_word = '' OR EXCLUDED.rarest_reachability < user_stats.rarest_reachability
	        THEN EXCLUDED.rarest_word ELSE user_stats.rarest_word END,
	    rarest_reachability = CASE
	        WHEN user_stats.rarest_word = '' OR EXCLUDED.rarest_reachability < user_stats.rarest_reachability
	        THEN EXCLUDED.rarest_reachability ELSE user_stats.rarest_reachability END
	`
	if _, err := s.pool.Exec(ctx, q, userID, discovered, result.Name, result.Reachability); err != nil {
		return fmt.Errorf("record combination for user %s: %w", userID, err)
	}
	return nil
}

func (s *UserStats) Get(ctx context.Context, userID uuid.UUID) (models.UserStats, error) {
	st := models.UserStats{UserID: userID}
	q := `
	SELECT wins, losses, combinations_made, discovered_words, rarest_word, rarest_reachability
	FROM user_stats
	WHERE user_id = $1
	`
	err := s.pool.QueryRow(ctx, q, userID).Scan(
		&st.Wins, &st.Losses, &st.CombinationsMade, &st.DiscoveredWords,
		&st.RarestWord, &st.RarestReachability,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.UserStats{}, fmt.Errorf("stats for user %s: %w", userID, apperr.ErrNotFound)
	}
	if err != nil {
		return models.UserStats{}, fmt.Errorf("load stats for user %s: %w", userID, err)
	}
	return st, nil
}
