package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/microtales/microtales/internal/observability"
)

type RatingsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRatingsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RatingsRepo {
	return &RatingsRepo{pool: pool, prom: prom}
}

func (r *RatingsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// GetUserStoryRating returns nil when the user has not rated the story.
func (r *RatingsRepo) GetUserStoryRating(ctx context.Context, userID, storyID string) (*float64, error) {
	var score float64
	op := "ratings.get_user_story_rating"

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT score FROM ratings WHERE user_id = $1 AND story_id = $2`,
			userID, storyID,
		).Scan(&score)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &score, nil
}

// Upsert writes the user's score and recomputes the story's aggregate rating
// in the same transaction, so readers never see a half-applied vote.
func (r *RatingsRepo) Upsert(ctx context.Context, userID, storyID string, score float64) error {
	op := "ratings.upsert"

	return r.observe(op, func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		_, err = tx.Exec(ctx,
			`INSERT INTO ratings (user_id, story_id, score, created_at, updated_at)
			 VALUES ($1,$2,$3,NOW(),NOW())
			 ON CONFLICT (user_id, story_id)
			 DO UPDATE SET score = EXCLUDED.score, updated_at = NOW()`,
			userID, storyID, score,
		)

		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE stories
			 SET rating = (SELECT AVG(score) FROM ratings WHERE story_id = $1),
			     updated_at = NOW()
			 WHERE id = $1`,
			storyID,
		)

		if err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}
