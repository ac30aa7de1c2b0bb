package postgres

import (
	"context"
	"errors"

	"github.com/dmwangi/taskhub/internal/domain/task"
	"github.com/dmwangi/taskhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{pool: pool, prom: prom}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *TasksRepo) Create(ctx context.Context, ownerID int64, req task.CreateRequest) (task.Task, error) {
	priority := req.Priority

	if priority == "" {
		priority = task.PriorityMedium
	}

	var t task.Task
	var err error

	err = r.observe("tasks.create", func() error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO tasks (title, description, status, priority, owner_id, is_completed)
			VALUES ($1, $2, $3, $4, $5, FALSE)
			RETURNING id, title, description, status, priority, owner_id, is_completed, created_at, updated_at
		`, req.Title, req.Description, task.StatusPending, priority, ownerID).Scan(
			&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.OwnerID, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt,
		)
	})

	if err != nil {
		return task.Task{}, err
	}

	return t, nil
}

// ListByOwner pages through the caller's tasks; total rides along via a window
// function so one round trip serves both.
func (r *TasksRepo) ListByOwner(ctx context.Context, filter task.ListFilter) ([]task.Task, int, error) {
	var out []task.Task
	total := 0

	err := r.observe("tasks.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT id, title, description, status, priority, owner_id, is_completed,
			       created_at, updated_at,
			       COUNT(*) OVER() AS total
			FROM tasks
			WHERE owner_id = $1
			ORDER BY created_at ASC, id ASC
			LIMIT $2 OFFSET $3
		`, filter.OwnerID, filter.Limit, filter.Skip)

		if err != nil {
			return err
		}

		defer rows.Close()

		out = make([]task.Task, 0, filter.Limit)

		for rows.Next() {
			var t task.Task
			var n int

			err = rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.OwnerID, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt, &n)

			if err != nil {
				return err
			}

			total = n
			out = append(out, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, 0, err
	}

	// the window total is lost when the requested page is empty
	if len(out) == 0 {
		err = r.observe("tasks.count", func() error {
			return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE owner_id = $1`, filter.OwnerID).Scan(&total)
		})

		if err != nil {
			return nil, 0, err
		}
	}

	return out, total, nil
}

// GetByID is owner-scoped: someone else's task and a missing id are the same
// not-found to the caller.
func (r *TasksRepo) GetByID(ctx context.Context, id, ownerID int64) (task.Task, error) {
	var t task.Task
	var err error

	err = r.observe("tasks.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT id, title, description, status, priority, owner_id, is_completed, created_at, updated_at
			FROM tasks
			WHERE id = $1 AND owner_id = $2
		`, id, ownerID).Scan(
			&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.OwnerID, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}

	return t, nil
}

// Update applies only the supplied fields; nil pointers keep current values.
// An empty update still bumps updated_at: the write itself is the event.
func (r *TasksRepo) Update(ctx context.Context, id, ownerID int64, req task.UpdateRequest) (task.Task, error) {
	var t task.Task
	var err error

	err = r.observe("tasks.update", func() error {
		return r.pool.QueryRow(ctx, `
			UPDATE tasks
			SET title = COALESCE($3, title),
			    description = COALESCE($4, description),
			    status = COALESCE($5, status),
			    priority = COALESCE($6, priority),
			    is_completed = COALESCE($7, is_completed),
			    updated_at = NOW()
			WHERE id = $1 AND owner_id = $2
			RETURNING id, title, description, status, priority, owner_id, is_completed, created_at, updated_at
		`, id, ownerID, req.Title, req.Description, req.Status, req.Priority, req.IsCompleted).Scan(
			&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.OwnerID, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) Delete(ctx context.Context, id, ownerID int64) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("tasks.delete", func() error {
		tag, err = r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`, id, ownerID)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}

	return nil
}
