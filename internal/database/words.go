package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/fusion/internal/models"
	"github.com/jason-s-yu/fusion/internal/words"
)

// Words is a Postgres words.Repository.
type Words struct {
	pool *pgxpool.Pool
}

var _ words.Repository = (*Words)(nil)

func NewWords(pool *pgxpool.Pool) *Words {
	return &Words{pool: pool}
}

func (r *Words) Lookup(ctx context.Context, w1, w2 string) (models.Word, bool, error) {
	q := `
	SELECT w.name, w.depth, w.reachability
	FROM combinations c
	JOIN words w ON w.name = c.result
	WHERE c.word1 = $1 AND c.word2 = $2
	`
	return findWord(ctx, r.pool, q, w1, w2)
}

func (r *Words) Record(ctx context.Context, w1, w2, result string) (models.Word, error) {
	var out models.Word
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO combinations (word1, word2, result) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			w1, w2, result)
		if err != nil {
			return fmt.Errorf("insert combination: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// someone else recorded the pair first; theirs stands
			known, ok, err := findWord(ctx, tx, `
				SELECT w.name, w.depth, w.reachability
				FROM combinations c JOIN words w ON w.name = c.result
				WHERE c.word1 = $1 AND c.word2 = $2`, w1, w2)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("combination %s+%s has no result word", w1, w2)
			}
			out = known
			return nil
		}

		var parentDepth int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(depth), 0) FROM words WHERE name IN ($1, $2)`, w1, w2,
		).Scan(&parentDepth); err != nil {
			return fmt.Errorf("parent depth: %w", err)
		}

		// Derive gives the depth and gain of a first discovery; the upsert applies the same rule
		// to an existing row.
		fresh := words.Derive(nil, result, parentDepth)
		var inserted bool
		err = tx.QueryRow(ctx, `
			INSERT INTO words (name, depth, reachability)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE
			SET reachability = words.reachability + EXCLUDED.reachability,
			    depth = LEAST(words.depth, EXCLUDED.depth)
			RETURNING depth, reachability, (xmax = 0)
		`, result, fresh.Depth, fresh.Reachability).Scan(&out.Depth, &out.Reachability, &inserted)
		if err != nil {
			return fmt.Errorf("upsert word %q: %w", result, err)
		}
		out.Name = result
		out.NewlyDiscovered = inserted
		return nil
	})
	if err != nil {
		return models.Word{}, fmt.Errorf("record %s+%s: %w", w1, w2, err)
	}
	return out, nil
}

func (r *Words) Word(ctx context.Context, name string) (models.Word, bool, error) {
	return findWord(ctx, r.pool, `SELECT name, depth, reachability FROM words WHERE name = $1`, name)
}

func (r *Words) Within(ctx context.Context, min, max float64) ([]models.Word, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name, depth, reachability FROM words WHERE reachability BETWEEN $1 AND $2 ORDER BY name`,
		min, max)
	if err != nil {
		return nil, fmt.Errorf("words within [%g, %g]: %w", min, max, err)
	}
	out, err := pgx.CollectRows(rows, scanWord)
	if err != nil {
		return nil, fmt.Errorf("words within [%g, %g]: %w", min, max, err)
	}
	return out, nil
}

func (r *Words) Closest(ctx context.Context, target float64) (models.Word, bool, error) {
	return findWord(ctx, r.pool, `
		SELECT name, depth, reachability FROM words
		WHERE depth > 0
		ORDER BY ABS(reachability - $1), name
		LIMIT 1`, target)
}

func (r *Words) Names(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM words ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list words: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list words: %w", err)
	}
	return names, nil
}

func (r *Words) Seed(ctx context.Context, seed []models.Word) error {
	batch := &pgx.Batch{}
	for _, w := range seed {
		batch.Queue(`INSERT INTO words (name, depth, reachability) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			w.Name, w.Depth, w.Reachability)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed words: %w", err)
	}
	return nil
}

func findWord(ctx context.Context, q querier, sql string, args ...any) (models.Word, bool, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return models.Word{}, false, fmt.Errorf("find word: %w", err)
	}
	w, err := pgx.CollectExactlyOneRow(rows, scanWord)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Word{}, false, nil
	}
	if err != nil {
		return models.Word{}, false, fmt.Errorf("find word: %w", err)
	}
	return w, true, nil
}

func scanWord(row pgx.CollectableRow) (models.Word, error) {
	var w models.Word
	err := row.Scan(&w.Name, &w.Depth, &w.Reachability)
	return w, err
}
