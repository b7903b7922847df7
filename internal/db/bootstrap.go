package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/microtales/microtales/internal/config"
	"github.com/microtales/microtales/internal/domain/user"
	"github.com/microtales/microtales/internal/security"
)

// EnsureAdminUser creates the configured admin account if it does not exist.
// Called at API start; a no-op when ADMIN_EMAIL/ADMIN_PASSWORD are unset.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	now := time.Now().UTC()

	u := user.User{
		ID:            uuid.NewString(),
		Email:         cfg.AdminEmail,
		EmailVerified: &now,
		PasswordHash:  hash,
		Name:          cfg.AdminName,
		Role:          cfg.AdminRole,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, name, email, email_verified, password_hash, role, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
		u.ID, u.Name, u.Email, u.EmailVerified, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt,
	)

	return err
}
