package db

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(dbURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)

	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 5

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)

	if err != nil {
		return nil, err
	}

	err = pool.Ping(ctx)

	if err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// WaitForPool keeps retrying the initial connection so the API can start
// before the database container is ready.
func WaitForPool(ctx context.Context, log *slog.Logger, dbURL string, maxAttempts int, delay time.Duration) (*pgxpool.Pool, error) {
	if maxAttempts <= 0 {
		maxAttempts = 30
	}

	if delay <= 0 {
		delay = 2 * time.Second
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pool, err := NewPool(dbURL)

		if err == nil {
			log.Info("database connection established", "attempt", attempt)
			return pool, nil
		}

		lastErr = err
		log.Warn("database not ready", "attempt", attempt, "max_attempts", maxAttempts, "err", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}
