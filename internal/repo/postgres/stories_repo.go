package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/observability"
)

type StoriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewStoriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *StoriesRepo {
	return &StoriesRepo{pool: pool, prom: prom}
}

func (r *StoriesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const storyColumns = `s.id, s.title, s.content, s.genre, s.rating, s.reading_time,
	       s.is_public, s.is_guest, s.author_id, u.name, s.created_at, s.updated_at`

// stories LEFT JOIN users so guest stories come back with an empty author name
const storyFrom = ` FROM stories s LEFT JOIN users u ON u.id = s.author_id `

func scanStory(row pgx.Row) (story.Story, error) {
	var s story.Story
	var authorName *string

	err := row.Scan(
		&s.ID, &s.Title, &s.Content, &s.Genre, &s.Rating, &s.ReadingTime,
		&s.IsPublic, &s.IsGuest, &s.AuthorID, &authorName, &s.CreatedAt, &s.UpdatedAt,
	)

	if err != nil {
		return story.Story{}, err
	}

	if authorName != nil {
		s.AuthorName = *authorName
	}

	return s, nil
}

func (r *StoriesRepo) Create(ctx context.Context, s story.Story) (story.Story, error) {
	op := "stories.create"

	err := r.observe(op, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO stories (id, title, content, genre, rating, reading_time, is_public, is_guest, author_id, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			s.ID, s.Title, s.Content, s.Genre, s.Rating, s.ReadingTime, s.IsPublic, s.IsGuest, s.AuthorID, s.CreatedAt, s.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return story.Story{}, err
	}

	return s, nil
}

func (r *StoriesRepo) GetByID(ctx context.Context, id string) (story.Story, error) {
	var s story.Story
	op := "stories.get_by_id"

	err := r.observe(op, func() error {
		var err error
		s, err = scanStory(r.pool.QueryRow(ctx,
			`SELECT `+storyColumns+storyFrom+`WHERE s.id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return story.Story{}, story.ErrNotFound
		}
		return story.Story{}, err
	}

	return s, nil
}

func (r *StoriesRepo) ListByAuthor(ctx context.Context, authorID string) ([]story.Story, error) {
	op := "stories.list_by_author"

	out := make([]story.Story, 0, 16)

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+storyColumns+storyFrom+`WHERE s.author_id = $1 ORDER BY s.created_at DESC, s.id DESC`,
			authorID)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			s, err := scanStory(rows)

			if err != nil {
				return err
			}

			out = append(out, s)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *StoriesRepo) ListPublic(ctx context.Context, filter story.ListFilter) ([]story.Story, int, error) {
	op := "stories.list_public"

	baseQuery := `SELECT ` + storyColumns + `, COUNT(*) OVER() AS total` + storyFrom

	conds := []string{"s.is_public = TRUE"}
	var args []interface{}
	argsPosition := 1

	if filter.Genre != nil {
		conds = append(conds, fmt.Sprintf("s.genre = $%d", argsPosition))
		args = append(args, *filter.Genre)
		argsPosition++
	}

	if filter.Query != nil {
		conds = append(conds, fmt.Sprintf("s.title ILIKE '%%' || $%d || '%%'", argsPosition))
		args = append(args, *filter.Query)
		argsPosition++
	}

	query := baseQuery + " WHERE " + strings.Join(conds, " AND ")

	// stable ordering for pagination
	query += fmt.Sprintf(" ORDER BY s.created_at DESC, s.id DESC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)
	args = append(args, filter.Limit, filter.Offset)

	output := make([]story.Story, 0, filter.Limit)
	total := 0

	err := r.observe(op, func() error {
		rows, err := r.pool.Query(ctx, query, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var s story.Story
			var authorName *string
			var t int

			err = rows.Scan(
				&s.ID, &s.Title, &s.Content, &s.Genre, &s.Rating, &s.ReadingTime,
				&s.IsPublic, &s.IsGuest, &s.AuthorID, &authorName, &s.CreatedAt, &s.UpdatedAt, &t,
			)

			if err != nil {
				return err
			}

			if authorName != nil {
				s.AuthorName = *authorName
			}

			total = t
			output = append(output, s)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, 0, err
	}

	return output, total, nil
}

func (r *StoriesRepo) Update(ctx context.Context, id string, req story.UpdateStoryRequest) (story.Story, error) {
	op := "stories.update"

	var updated bool

	err := r.observe(op, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE stories
			 SET title = $2,
			     content = $3,
			     genre = $4,
			     reading_time = $5,
			     is_public = $6,
			     updated_at = NOW()
			 WHERE id = $1`,
			id, req.Title, req.Content, req.Genre, req.ReadingTime, req.IsPublic,
		)

		if err != nil {
			return err
		}

		updated = tag.RowsAffected() > 0
		return nil
	})

	if err != nil {
		return story.Story{}, err
	}

	if !updated {
		return story.Story{}, story.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

// Claim attaches an unclaimed guest story to the given account. The author_id
// guard makes concurrent claims race-safe: only one UPDATE can match.
func (r *StoriesRepo) Claim(ctx context.Context, id, authorID string) (story.Story, error) {
	op := "stories.claim"

	var claimed bool

	err := r.observe(op, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE stories
			 SET author_id = $2, is_guest = FALSE, updated_at = NOW()
			 WHERE id = $1 AND author_id IS NULL`,
			id, authorID)

		if err != nil {
			return err
		}

		claimed = tag.RowsAffected() > 0
		return nil
	})

	if err != nil {
		return story.Story{}, err
	}

	if !claimed {
		// missing row and already-claimed row are different failures
		s, err := r.GetByID(ctx, id)
		if err != nil {
			return story.Story{}, err
		}
		if s.Claimed() {
			return story.Story{}, story.ErrAlreadyClaimed
		}
		return story.Story{}, story.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *StoriesRepo) Delete(ctx context.Context, id string) error {
	op := "stories.delete"

	return r.observe(op, func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM stories WHERE id = $1`, id)

		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return story.ErrNotFound
		}

		return nil
	})
}
