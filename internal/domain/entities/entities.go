package entities

import (
	"errors"
	"sort"
	"time"
)

// Common errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUserMismatch     = errors.New("task does not belong to the current user")
	ErrUserNotFound     = errors.New("user not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrEmptyUpdate      = errors.New("update has no fields")
	ErrInvalidInput     = errors.New("invalid input")

	// Transport classes; *api.Error matches these with errors.Is.
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrServer       = errors.New("server error")
	ErrUnreachable  = errors.New("server unreachable")
)

// Identity is the authenticated-user record issued by the backend.
type Identity struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Valid reports whether the identity carries the fields a session needs.
func (i *Identity) Valid() bool {
	return i != nil && i.ID != "" && i.Email != ""
}

// Task represents a task as seen by the client. Timestamps are nil when the
// server did not send them or sent something unreadable.
type Task struct {
	ID          string     `json:"id,omitempty"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// CreateTaskDTO is the payload for a new task. Server-managed fields are
// deliberately absent.
type CreateTaskDTO struct {
	UserID      string `json:"userId" validate:"required"`
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"required,min=10,max=500"`
	Completed   bool   `json:"completed"`
}

// UpdateTaskDTO carries only the fields being changed.
type UpdateTaskDTO struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=3,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,min=10,max=500"`
	Completed   *bool   `json:"completed,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (u UpdateTaskDTO) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Completed == nil
}

// EmailRequest is the body of the user check and create calls.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// TaskCounts summarises a task list.
type TaskCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// CountTasks tallies completed and pending tasks.
func CountTasks(tasks []Task) TaskCounts {
	counts := TaskCounts{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			counts.Completed++
		} else {
			counts.Pending++
		}
	}
	return counts
}

// SortNewestFirst orders tasks by creation time, newest first. Tasks without
// a creation time sort last.
func SortNewestFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].CreatedAt, tasks[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// BelongsTo reports whether the task is owned by userID.
func (t *Task) BelongsTo(userID string) bool {
	return t.UserID == userID
}
