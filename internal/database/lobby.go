package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/jason-s-yu/fusion/internal/store"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const lobbyColumns = `code, name, public, mode, time_limit, status, owner_token, started_at, last_activity`

const playerColumns = `token, lobby_code, name, status, user_id, points, words, target_word, stats, achievements`

// Lobbies is a Postgres store.Lobbies. A unit of work is one transaction holding the lobby row
// with SELECT ... FOR UPDATE.
type Lobbies struct {
	pool *pgxpool.Pool
}

var _ store.Lobbies = (*Lobbies)(nil)

func NewLobbies(pool *pgxpool.Pool) *Lobbies {
	return &Lobbies{pool: pool}
}

func (s *Lobbies) Create(ctx context.Context, l *models.Lobby) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `INSERT INTO lobbies (` + lobbyColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err := tx.Exec(ctx, q,
			l.Code, l.Name, l.Public, string(l.Mode), l.TimeLimit, string(l.Status),
			l.OwnerToken, l.StartedAt, l.LastActivity,
		); err != nil {
			return err
		}
		return insertPlayers(ctx, tx, l.Code, l.Players)
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("create lobby %d: %w", l.Code, store.ErrCodeTaken)
	}
	if err != nil {
		return fmt.Errorf("create lobby %d: %w", l.Code, err)
	}
	return nil
}

func (s *Lobbies) Get(ctx context.Context, code int64) (*models.Lobby, error) {
	return loadLobby(ctx, s.pool, code, false)
}

func (s *Lobbies) List(ctx context.Context) ([]*models.Lobby, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+lobbyColumns+` FROM lobbies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list lobbies: %w", err)
	}
	lobbies, err := pgx.CollectRows(rows, scanLobby)
	if err != nil {
		return nil, fmt.Errorf("list lobbies: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT `+playerColumns+` FROM players ORDER BY lobby_code, position`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	players, err := pgx.CollectRows(rows, scanPlayer)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	byCode := make(map[int64]*models.Lobby, len(lobbies))
	for _, l := range lobbies {
		byCode[l.Code] = l
	}
	for _, p := range players {
		if l, ok := byCode[p.LobbyCode]; ok {
			l.Players = append(l.Players, p)
		}
	}
	return lobbies, nil
}

func (s *Lobbies) Codes(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT code FROM lobbies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list lobby codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("list lobby codes: %w", err)
	}
	return codes, nil
}

func (s *Lobbies) Exists(ctx context.Context, code int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lobbies WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check lobby %d: %w", code, err)
	}
	return exists, nil
}

func (s *Lobbies) Update(ctx context.Context, code int64, fn func(l *models.Lobby) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		l, err := loadLobby(ctx, tx, code, true)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}

		q := `
		UPDATE lobbies
		SET name = $2, public = $3, mode = $4, time_limit = $5, status = $6,
		    owner_token = $7, started_at = $8, last_activity = $9
		WHERE code = $1
		`
		if _, err := tx.Exec(ctx, q,
			code, l.Name, l.Public, string(l.Mode), l.TimeLimit, string(l.Status),
			l.OwnerToken, l.StartedAt, l.LastActivity,
		); err != nil {
			return fmt.Errorf("update lobby %d: %w", code, err)
		}

		// the lobby row lock covers its players, so rewriting them is safe
		if _, err := tx.Exec(ctx, `DELETE FROM players WHERE lobby_code = $1`, code); err != nil {
			return fmt.Errorf("update players of lobby %d: %w", code, err)
		}
		return insertPlayers(ctx, tx, code, l.Players)
	})
}

func (s *Lobbies) Delete(ctx context.Context, code int64, fn func(l *models.Lobby) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		l, err := loadLobby(ctx, tx, code, true)
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(l); err != nil {
				return err
			}
		}
		// players go with the lobby (ON DELETE CASCADE)
		if _, err := tx.Exec(ctx, `DELETE FROM lobbies WHERE code = $1`, code); err != nil {
			return fmt.Errorf("delete lobby %d: %w", code, err)
		}
		return nil
	})
}

func (s *Lobbies) LobbyOfPlayer(ctx context.Context, token uuid.UUID) (int64, error) {
	var code int64
	err := s.pool.QueryRow(ctx, `SELECT lobby_code FROM players WHERE token = $1`, token).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("player %s: %w", token, apperr.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("find lobby of player %s: %w", token, err)
	}
	return code, nil
}

func loadLobby(ctx context.Context, q querier, code int64, lock bool) (*models.Lobby, error) {
	sql := `SELECT ` + lobbyColumns + ` FROM lobbies WHERE code = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, code)
	if err != nil {
		return nil, fmt.Errorf("load lobby %d: %w", code, err)
	}
	l, err := pgx.CollectExactlyOneRow(rows, scanLobby)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lobby %d: %w", code, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load lobby %d: %w", code, err)
	}

	rows, err = q.Query(ctx, `SELECT `+playerColumns+` FROM players WHERE lobby_code = $1 ORDER BY position`, code)
	if err != nil {
		return nil, fmt.Errorf("load players of lobby %d: %w", code, err)
	}
	l.Players, err = pgx.CollectRows(rows, scanPlayer)
	if err != nil {
		return nil, fmt.Errorf("load players of lobby %d: %w", code, err)
	}
	return l, nil
}

func scanLobby(row pgx.CollectableRow) (*models.Lobby, error) {
	l := &models.Lobby{Players: []*models.Player{}}
	var mode, status string
	err := row.Scan(
		&l.Code, &l.Name, &l.Public, &mode, &l.TimeLimit, &status,
		&l.OwnerToken, &l.StartedAt, &l.LastActivity,
	)
	l.Mode = models.GameMode(mode)
	l.Status = models.LobbyStatus(status)
	return l, err
}

func scanPlayer(row pgx.CollectableRow) (*models.Player, error) {
	p := &models.Player{}
	var status string
	err := row.Scan(
		&p.Token, &p.LobbyCode, &p.Name, &status, &p.UserID, &p.Points,
		&p.Words, &p.TargetWord, &p.Stats, &p.Achievements,
	)
	p.Status = models.PlayerStatus(status)
	if p.Words == nil {
		p.Words = []string{}
	}
	if len(p.Achievements) == 0 {
		p.Achievements = nil
	}
	return p, err
}

func insertPlayers(ctx context.Context, tx pgx.Tx, code int64, players []*models.Player) error {
	if len(players) == 0 {
		return nil
	}
	q := `INSERT INTO players (position, ` + playerColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	batch := &pgx.Batch{}
	for i, p := range players {
		words := p.Words
		if words == nil {
			words = []string{}
		}
		achievements := p.Achievements
		if achievements == nil {
			achievements = []string{}
		}
		batch.Queue(q,
			i, p.Token, code, p.Name, string(p.Status), p.UserID, p.Points,
			words, p.TargetWord, p.Stats, achievements,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert players of lobby %d: %w", code, err)
	}
	return nil
}
