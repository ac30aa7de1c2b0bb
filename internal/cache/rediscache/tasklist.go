package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmwangi/taskhub/internal/domain/task"
	"github.com/redis/go-redis/v9"
)

// TaskListCache keeps rendered list pages in redis. Invalidation is by a
// per-owner version counter: any mutation bumps the version and every page
// cached under the old version becomes unreachable, then expires on its own.
type TaskListCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTaskListCache(rdb *redis.Client, ttl time.Duration) *TaskListCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &TaskListCache{rdb: rdb, ttl: ttl}
}

func versionKey(ownerID int64) string {
	return fmt.Sprintf("tasks:ver:%d", ownerID)
}

func (c *TaskListCache) pageKey(ctx context.Context, ownerID int64, skip, limit int) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey(ownerID)).Int64()

	if err != nil && err != redis.Nil {
		return "", err
	}

	return fmt.Sprintf("tasks:list:v1:user=%d:ver=%d:skip=%d:limit=%d", ownerID, ver, skip, limit), nil
}

// Get returns a cached page; any redis failure is a miss, never an error the
// request has to care about.
func (c *TaskListCache) Get(ctx context.Context, ownerID int64, skip, limit int) (task.ListResponse, bool) {
	var out task.ListResponse

	key, err := c.pageKey(ctx, ownerID, skip, limit)

	if err != nil {
		slog.Default().DebugContext(ctx, "task cache unavailable", "err", err)
		return out, false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()

	if err != nil {
		return out, false
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false
	}

	return out, true
}

func (c *TaskListCache) Set(ctx context.Context, ownerID int64, skip, limit int, resp task.ListResponse) {
	key, err := c.pageKey(ctx, ownerID, skip, limit)

	if err != nil {
		return
	}

	raw, err := json.Marshal(resp)

	if err != nil {
		return
	}

	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Default().DebugContext(ctx, "task cache set failed", "err", err)
	}
}

// Invalidate bumps the owner's version so every cached page goes stale at once.
func (c *TaskListCache) Invalidate(ctx context.Context, ownerID int64) {
	if err := c.rdb.Incr(ctx, versionKey(ownerID)).Err(); err != nil {
		slog.Default().DebugContext(ctx, "task cache invalidate failed", "err", err)
	}
}
