package postgres

import (
	"context"
	"errors"

	"github.com/dmwangi/taskhub/internal/domain/user"
	"github.com/dmwangi/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRoleNotFound = errors.New("role not found")

type RolesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRolesRepo(pool *pgxpool.Pool, prom *observability.Prom) *RolesRepo {
	return &RolesRepo{pool: pool, prom: prom}
}

func (r *RolesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// EnsureRole upserts a role and returns it. Idempotent under concurrent
// registrations; never check-then-insert.
func (r *RolesRepo) EnsureRole(ctx context.Context, name, description string) (user.Role, error) {
	var role user.Role
	var err error

	err = r.observe("roles.ensure", func() error {
		_, err = r.pool.Exec(ctx, `
			INSERT INTO roles (name, description)
			VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, name, description)

		if err != nil {
			return err
		}

		return r.pool.QueryRow(ctx, `
			SELECT id, name, description, created_at
			FROM roles
			WHERE name = $1
		`, name).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	})

	if err != nil {
		return user.Role{}, err
	}

	return role, nil
}

func (r *RolesRepo) GetByName(ctx context.Context, name string) (user.Role, error) {
	var role user.Role
	var err error

	err = r.observe("roles.get_by_name", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT id, name, description, created_at
			FROM roles
			WHERE name = $1
		`, name).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Role{}, ErrRoleNotFound
		}

		return user.Role{}, err
	}

	return role, nil
}
