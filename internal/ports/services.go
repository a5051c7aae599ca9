package ports

import (
	"context"

	"github.com/taskmaster/taskclient/internal/domain/entities"
)

// SessionReader is the read side of the session store. Consumers that only
// need to know who is logged in depend on this, never on the writer.
type SessionReader interface {
	Current() (*entities.Identity, bool)
	IsAuthenticated() bool
}

// AuthService interface for the login flow
type AuthService interface {
	Login(ctx context.Context, email string) (*entities.Identity, error)
	Signup(ctx context.Context, email string) (*entities.Identity, error)
	Logout() error
}

// TaskService interface for task synchronization
type TaskService interface {
	List(ctx context.Context, userID string) ([]entities.Task, error)
	Create(ctx context.Context, dto entities.CreateTaskDTO) (*entities.Task, error)
	Update(ctx context.Context, id string, dto entities.UpdateTaskDTO) (*entities.Task, error)
	Delete(ctx context.Context, id string) error
}
