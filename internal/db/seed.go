package db

import (
	"context"
	"errors"

	"github.com/dmwangi/taskhub/internal/config"
	"github.com/dmwangi/taskhub/internal/domain/user"
	"github.com/dmwangi/taskhub/internal/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureDefaultRoles creates the built-in roles once. The upsert makes the
// bootstrap race-free when several instances start at the same time.
func EnsureDefaultRoles(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO roles (name, description)
		VALUES ('user', 'Regular user'), ('admin', 'Administrator')
		ON CONFLICT (name) DO NOTHING
	`)

	return err
}

// EnsureAdminUser seeds one admin account when configured. Existing accounts
// are left alone.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy int64

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

	_, err = pool.Exec(ctx, `
		INSERT INTO users (email, username, password_hash, is_active, role_id)
		SELECT $1, $2, $3, TRUE, r.id
		FROM roles r
		WHERE r.name = $4
		ON CONFLICT (email) DO NOTHING
	`, cfg.AdminEmail, cfg.AdminUsername, hash, user.RoleAdmin)

	return err
}
