package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizmaster/internal/domain"
)

// QuizLoader loads pre-authored quiz sets stored as JSONB in Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.QuizSet, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quiz_sets WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizSet{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizSet{}, fmt.Errorf("load quiz: %w", err)
	}
	var set domain.QuizSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.QuizSet{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	set.ID = quizID
	return set, nil
}

// ImportQuiz inserts or replaces a quiz set in the library.
func (l *QuizLoader) ImportQuiz(ctx context.Context, set domain.QuizSet) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO quiz_sets (id, data, language, difficulty)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, language = EXCLUDED.language, difficulty = EXCLUDED.difficulty`,
		set.ID, raw, set.Language, set.Difficulty)
	if err != nil {
		return fmt.Errorf("import quiz: %w", err)
	}
	return nil
}
