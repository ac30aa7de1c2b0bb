package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dmwangi/taskhub/internal/domain/task"
	"github.com/dmwangi/taskhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type TasksRepository interface {
	Create(ctx context.Context, ownerID int64, req task.CreateRequest) (task.Task, error)
	ListByOwner(ctx context.Context, filter task.ListFilter) ([]task.Task, int, error)
	GetByID(ctx context.Context, id, ownerID int64) (task.Task, error)
	Update(ctx context.Context, id, ownerID int64, req task.UpdateRequest) (task.Task, error)
	Delete(ctx context.Context, id, ownerID int64) error
}

// ListCache is the redis page cache; nil disables caching entirely.
type ListCache interface {
	Get(ctx context.Context, ownerID int64, skip, limit int) (task.ListResponse, bool)
	Set(ctx context.Context, ownerID int64, skip, limit int, resp task.ListResponse)
	Invalidate(ctx context.Context, ownerID int64)
}

type TasksHandler struct {
	repo  TasksRepository
	cache ListCache
	log   *slog.Logger
}

func NewTasksHandler(repo TasksRepository, listCache ListCache, log *slog.Logger) *TasksHandler {
	if log == nil {
		log = slog.Default()
	}

	return &TasksHandler{repo: repo, cache: listCache, log: log}
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

func (h *TasksHandler) owner(c *gin.Context) (int64, bool) {
	id, ok := middlewares.UserIDFromContext(c)
	if !ok {
		RespondUnauthorized(c, "unauthorized", "Missing or invalid authorization header")
		return 0, false
	}
	return id, true
}

func (h *TasksHandler) invalidate(ctx context.Context, ownerID int64) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, ownerID)
	}
}

func taskIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(c, "task id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (skip, limit int, ok bool) {
	skip, limit = 0, defaultPageLimit

	if raw := c.Query("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			RespondBadRequest(c, "skip must be a non-negative integer", nil)
			return 0, 0, false
		}
		skip = n
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageLimit {
			RespondBadRequest(c, "limit must be between 1 and 100", nil)
			return 0, 0, false
		}
		limit = n
	}

	return skip, limit, true
}

func (h *TasksHandler) Create(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}

	var req task.CreateRequest
	if !BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	t, err := h.repo.Create(ctx, ownerID, req)
	if err != nil {
		h.log.ErrorContext(ctx, "task create failed", "owner_id", ownerID, "err", err)
		RespondInternal(c, "could not create task")
		return
	}

	h.invalidate(ctx, ownerID)

	c.JSON(http.StatusCreated, t)
}

func (h *TasksHandler) List(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}

	skip, limit, ok := pageParams(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	if h.cache != nil {
		if resp, hit := h.cache.Get(ctx, ownerID, skip, limit); hit {
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	tasks, total, err := h.repo.ListByOwner(ctx, task.ListFilter{OwnerID: ownerID, Skip: skip, Limit: limit})
	if err != nil {
		h.log.ErrorContext(ctx, "task list failed", "owner_id", ownerID, "err", err)
		RespondInternal(c, "could not list tasks")
		return
	}

	resp := task.ListResponse{Total: total, Tasks: tasks}

	if h.cache != nil {
		h.cache.Set(ctx, ownerID, skip, limit, resp)
	}

	c.JSON(http.StatusOK, resp)
}

func (h *TasksHandler) Get(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}

	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	t, err := h.repo.GetByID(c.Request.Context(), id, ownerID)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(c, "task not found")
			return
		}

		h.log.ErrorContext(c.Request.Context(), "task get failed", "task_id", id, "err", err)
		RespondInternal(c, "could not load task")
		return
	}

	c.JSON(http.StatusOK, t)
}

func (h *TasksHandler) Update(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}

	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	var req task.UpdateRequest
	if !BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()

	t, err := h.repo.Update(ctx, id, ownerID, req)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(c, "task not found")
			return
		}

		h.log.ErrorContext(ctx, "task update failed", "task_id", id, "err", err)
		RespondInternal(c, "could not update task")
		return
	}

	h.invalidate(ctx, ownerID)

	c.JSON(http.StatusOK, t)
}

func (h *TasksHandler) Delete(c *gin.Context) {
	ownerID, ok := h.owner(c)
	if !ok {
		return
	}

	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	if err := h.repo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			RespondNotFound(c, "task not found")
			return
		}

		h.log.ErrorContext(ctx, "task delete failed", "task_id", id, "err", err)
		RespondInternal(c, "could not delete task")
		return
	}

	h.invalidate(ctx, ownerID)

	c.Status(http.StatusNoContent)
}
