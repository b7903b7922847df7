package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/microtales/microtales/internal/domain/story"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/security"
)

// SeedPassword is shared by both seeded accounts.
const SeedPassword = "password123"

func ptr(f float64) *float64 { return &f }

// ExampleStories is the canonical demo data set. All stories start unclaimed.
func ExampleStories() []story.Story {
	specs := []struct {
		title       string
		content     string
		genre       string
		rating      *float64
		readingTime int
		isGuest     bool
	}{
		{"The Forgotten Island", "Once upon a time in a forgotten island...", story.GenreAdventure, ptr(2.5), 2, false},
		{"The Haunted Clocktower", "It ticked... even when the gears were gone.", story.GenreHorror, ptr(0), 1, true},
		{"The Lost Treasure of Atlantis", "A map to the lost city...", story.GenreAdventure, ptr(3), 3, false},
		{"The Enchanted Forest", "Where magic and reality intertwine...", story.GenreFantasy, ptr(1.5), 4, false},
		{"The Time Traveler's Dilemma", "What if you could change the past?", story.GenreScienceFiction, ptr(5), 5, false},
		{"The Whispering Shadows", "They told secrets of the night...", story.GenreHorror, ptr(0), 2, true},
		{"The Last Starship", "In a galaxy far away...", story.GenreScienceFiction, ptr(3.7), 6, false},
		{"The Secret Garden", "A place where dreams bloom...", story.GenreFantasy, ptr(5), 3, false},
	}

	now := time.Now().UTC()
	out := make([]story.Story, 0, len(specs))

	for _, sp := range specs {
		out = append(out, story.Story{
			ID:          uuid.NewString(),
			Title:       sp.title,
			Content:     sp.content,
			Genre:       sp.genre,
			Rating:      sp.rating,
			ReadingTime: sp.readingTime,
			IsPublic:    true,
			IsGuest:     sp.isGuest,
			AuthorID:    nil,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	return out
}

// ExampleAccounts returns the two demo accounts, both using SeedPassword.
func ExampleAccounts() ([]user.User, error) {
	hash, err := security.HashPassword(SeedPassword)

	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	return []user.User{
		{
			ID:            uuid.NewString(),
			Name:          "John Doe",
			Email:         "john@doe.com",
			EmailVerified: &now,
			PasswordHash:  hash,
			Role:          user.RoleAuthor,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:            uuid.NewString(),
			Name:          "Admin User",
			Email:         "admin@admin.com",
			EmailVerified: &now,
			PasswordHash:  hash,
			Role:          user.RoleAdmin,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}, nil
}

// Seed inserts the example stories and accounts in one transaction.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	accounts, err := ExampleAccounts()

	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)

	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range ExampleStories() {
		_, err = tx.Exec(ctx,
			`INSERT INTO stories (id, title, content, genre, rating, reading_time, is_public, is_guest, author_id, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			s.ID, s.Title, s.Content, s.Genre, s.Rating, s.ReadingTime, s.IsPublic, s.IsGuest, s.AuthorID, s.CreatedAt, s.UpdatedAt,
		)

		if err != nil {
			return err
		}
	}

	for _, u := range accounts {
		_, err = tx.Exec(ctx,
			`INSERT INTO users (id, name, email, email_verified, password_hash, role, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			u.ID, u.Name, u.Email, u.EmailVerified, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt,
		)

		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
