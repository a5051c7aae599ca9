package services

import (
	"context"
	"sync"

	"github.com/taskmaster/taskclient/internal/domain/entities"
	"github.com/taskmaster/taskclient/internal/ports"
)

// Board is the task list a view shows. After every successful mutation it
// reloads the whole list from the server instead of patching its copy; a
// failed call leaves the list as it was.
type Board struct {
	tasks   ports.TaskService
	session ports.SessionReader

	mu    sync.RWMutex
	items []entities.Task
}

// NewBoard creates an empty board.
func NewBoard(tasks ports.TaskService, session ports.SessionReader) *Board {
	return &Board{tasks: tasks, session: session}
}

// Reload replaces the list with the server's current state.
func (b *Board) Reload(ctx context.Context) error {
	identity, ok := b.session.Current()
	if !ok {
		return entities.ErrNotAuthenticated
	}

	tasks, err := b.tasks.List(ctx, identity.ID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.items = tasks
	b.mu.Unlock()
	return nil
}

// Add creates a task and reloads.
func (b *Board) Add(ctx context.Context, title, description string) (*entities.Task, error) {
	task, err := b.tasks.Create(ctx, entities.CreateTaskDTO{
		Title:       title,
		Description: description,
		Completed:   false,
	})
	if err != nil {
		return nil, err
	}
	return task, b.Reload(ctx)
}

// Toggle sets the completed flag of a task and reloads.
func (b *Board) Toggle(ctx context.Context, id string, completed bool) (*entities.Task, error) {
	return b.Edit(ctx, id, entities.UpdateTaskDTO{Completed: &completed})
}

// Edit applies a partial update and reloads.
func (b *Board) Edit(ctx context.Context, id string, dto entities.UpdateTaskDTO) (*entities.Task, error) {
	task, err := b.tasks.Update(ctx, id, dto)
	if err != nil {
		return nil, err
	}
	return task, b.Reload(ctx)
}

// Remove deletes a task and reloads.
func (b *Board) Remove(ctx context.Context, id string) error {
	if err := b.tasks.Delete(ctx, id); err != nil {
		return err
	}
	return b.Reload(ctx)
}

// Tasks returns the list in server order.
func (b *Board) Tasks() []entities.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]entities.Task, len(b.items))
	copy(out, b.items)
	return out
}

// Find returns the task with id from the last reload.
func (b *Board) Find(id string) (entities.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.items {
		if t.ID == id {
			return t, true
		}
	}
	return entities.Task{}, false
}

// Sorted returns the list newest first.
func (b *Board) Sorted() []entities.Task {
	tasks := b.Tasks()
	entities.SortNewestFirst(tasks)
	return tasks
}

// Counts tallies the current list.
func (b *Board) Counts() entities.TaskCounts {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return entities.CountTasks(b.items)
}
