package ports

import (
	"context"
	"encoding/json"

	"github.com/taskmaster/taskclient/internal/domain/entities"
)

// SessionStorage is the durable key/value slot a session is persisted to.
// It mirrors the browser storage API: Get reports ok=false for a missing key.
type SessionStorage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// UserGateway defines the backend user operations
type UserGateway interface {
	CheckUser(ctx context.Context, email string) (*ServerIdentity, error)
	CreateUser(ctx context.Context, email string) (*ServerIdentity, error)
}

// TaskGateway defines the backend task operations. Results are wire shaped
// and must be normalized before use.
type TaskGateway interface {
	ListTasks(ctx context.Context, userID string) ([]ServerTask, error)
	CreateTask(ctx context.Context, dto entities.CreateTaskDTO) (*ServerTask, error)
	UpdateTask(ctx context.Context, id string, dto entities.UpdateTaskDTO) (*ServerTask, error)
	DeleteTask(ctx context.Context, id string) error
}

// ServerTask is a task exactly as the backend sends it.
type ServerTask struct {
	ID          string          `json:"id,omitempty"`
	UserID      string          `json:"userId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Completed   bool            `json:"completed"`
	CreatedAt   json.RawMessage `json:"createdAt,omitempty"`
	UpdatedAt   json.RawMessage `json:"updatedAt,omitempty"`
}

// ServerIdentity is a user record exactly as the backend sends it.
type ServerIdentity struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	CreatedAt json.RawMessage `json:"createdAt,omitempty"`
}
