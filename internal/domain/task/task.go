package task

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("task not found")

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	OwnerID     int64     `json:"owner_id"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateRequest struct {
	Title       string  `json:"title" binding:"required,min=1,max=255"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Priority    string  `json:"priority" binding:"omitempty,oneof=low medium high"`
}

// UpdateRequest carries pointers so absent fields stay untouched (partial
// update). An empty body is a valid no-op.
type UpdateRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Status      *string `json:"status" binding:"omitempty,oneof=pending in_progress completed"`
	Priority    *string `json:"priority" binding:"omitempty,oneof=low medium high"`
	IsCompleted *bool   `json:"is_completed"`
}

type ListFilter struct {
	OwnerID int64
	Skip    int
	Limit   int
}

type ListResponse struct {
	Total int    `json:"total"`
	Tasks []Task `json:"tasks"`
}
