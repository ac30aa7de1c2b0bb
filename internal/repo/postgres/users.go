package postgres

import (
	"context"
	"errors"

	"github.com/dmwangi/taskhub/internal/domain/user"
	"github.com/dmwangi/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const userColumns = `
	u.id, u.email, u.username, u.full_name, u.password_hash, u.is_active,
	u.created_at, u.updated_at,
	r.id, r.name, r.description, r.created_at
`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.FullName, &u.PasswordHash, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt,
		&u.Role.ID, &u.Role.Name, &u.Role.Description, &u.Role.CreatedAt,
	)

	return u, err
}

// Create inserts the account bound to roleID; duplicate email or username
// surfaces as user.ErrAlreadyExists with nothing written.
func (r *UsersRepo) Create(ctx context.Context, email, username string, fullName *string, passwordHash string, roleID int64) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.create", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, `
			WITH inserted AS (
				INSERT INTO users (email, username, full_name, password_hash, is_active, role_id)
				VALUES ($1, $2, $3, $4, TRUE, $5)
				RETURNING id, email, username, full_name, password_hash, is_active, role_id, created_at, updated_at
			)
			SELECT u.id, u.email, u.username, u.full_name, u.password_hash, u.is_active,
			       u.created_at, u.updated_at,
			       r.id, r.name, r.description, r.created_at
			FROM inserted u
			JOIN roles r ON r.id = u.role_id
		`, email, username, fullName, passwordHash, roleID))

		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrAlreadyExists
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, `
			SELECT `+userColumns+`
			FROM users u
			JOIN roles r ON r.id = u.role_id
			WHERE u.email = $1
		`, email))

		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, `
			SELECT `+userColumns+`
			FROM users u
			JOIN roles r ON r.id = u.role_id
			WHERE u.id = $1
		`, id))

		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}
