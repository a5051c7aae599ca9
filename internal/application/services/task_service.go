package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/taskmaster/taskclient/internal/application/normalizer"
	"github.com/taskmaster/taskclient/internal/domain/entities"
	"github.com/taskmaster/taskclient/internal/infrastructure/logger"
	"github.com/taskmaster/taskclient/internal/ports"
)

// TaskService synchronizes the session user's tasks with the backend. It
// keeps no cache; every call is a fresh request.
type TaskService struct {
	gateway  ports.TaskGateway
	session  ports.SessionReader
	validate *validator.Validate
	logger   *logger.Logger
}

// NewTaskService creates a new task service
func NewTaskService(gateway ports.TaskGateway, session ports.SessionReader, validate *validator.Validate, logger *logger.Logger) *TaskService {
	return &TaskService{
		gateway:  gateway,
		session:  session,
		validate: validate,
		logger:   logger.WithComponent("tasks"),
	}
}

// sessionUser returns the id of the logged-in user.
func (s *TaskService) sessionUser() (string, error) {
	identity, ok := s.session.Current()
	if !ok {
		return "", entities.ErrNotAuthenticated
	}
	return identity.ID, nil
}

// List fetches every task of userID. userID must be the session user.
func (s *TaskService) List(ctx context.Context, userID string) ([]entities.Task, error) {
	current, err := s.sessionUser()
	if err != nil {
		return nil, err
	}
	if userID != current {
		return nil, entities.ErrUserMismatch
	}

	raw, err := s.gateway.ListTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]entities.Task, 0, len(raw))
	for _, t := range normalizer.NormalizeAll(raw) {
		if !t.BelongsTo(userID) {
			s.logger.WithUserID(current).Warnw("Dropping task owned by another user", "task_id", t.ID, "owner", t.UserID)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Create sends a new task for the session user. An empty UserID is filled in
// from the session.
func (s *TaskService) Create(ctx context.Context, dto entities.CreateTaskDTO) (*entities.Task, error) {
	current, err := s.sessionUser()
	if err != nil {
		return nil, err
	}
	if dto.UserID == "" {
		dto.UserID = current
	}
	if dto.UserID != current {
		return nil, entities.ErrUserMismatch
	}

	if err := s.validateInput(trimmedCreate(dto)); err != nil {
		return nil, err
	}

	raw, err := s.gateway.CreateTask(ctx, dto)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	task := normalizer.Normalize(*raw)
	if !task.BelongsTo(current) {
		s.logger.WithUserID(current).Warnw("Created task belongs to another user", "task_id", task.ID, "owner", task.UserID)
		return nil, entities.ErrUserMismatch
	}
	s.logger.WithUserID(current).Infow("Task created", "task_id", task.ID, "title", task.Title)
	return &task, nil
}

// Update sends only the fields present in dto.
func (s *TaskService) Update(ctx context.Context, id string, dto entities.UpdateTaskDTO) (*entities.Task, error) {
	current, err := s.sessionUser()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: task id is required", entities.ErrInvalidInput)
	}
	if dto.IsEmpty() {
		return nil, entities.ErrEmptyUpdate
	}
	if err := s.validateInput(trimmedUpdate(dto)); err != nil {
		return nil, err
	}

	raw, err := s.gateway.UpdateTask(ctx, id, dto)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	task := normalizer.Normalize(*raw)
	if !task.BelongsTo(current) {
		s.logger.WithUserID(current).Warnw("Updated task belongs to another user", "task_id", task.ID, "owner", task.UserID)
		return nil, entities.ErrUserMismatch
	}
	s.logger.WithUserID(current).Infow("Task updated", "task_id", task.ID)
	return &task, nil
}

// Delete removes a task by id. It does not retry.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	current, err := s.sessionUser()
	if err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: task id is required", entities.ErrInvalidInput)
	}

	if err := s.gateway.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.logger.WithUserID(current).Infow("Task deleted", "task_id", id)
	return nil
}

// trimmedCreate returns the copy of dto that is validated. Whitespace-only
// text fails validation, but the request still carries dto as given.
func trimmedCreate(dto entities.CreateTaskDTO) entities.CreateTaskDTO {
	dto.Title = strings.TrimSpace(dto.Title)
	dto.Description = strings.TrimSpace(dto.Description)
	return dto
}

// trimmedUpdate is trimmedCreate for the fields present in an update.
func trimmedUpdate(dto entities.UpdateTaskDTO) entities.UpdateTaskDTO {
	if dto.Title != nil {
		title := strings.TrimSpace(*dto.Title)
		dto.Title = &title
	}
	if dto.Description != nil {
		description := strings.TrimSpace(*dto.Description)
		dto.Description = &description
	}
	return dto
}

func (s *TaskService) validateInput(v interface{}) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", entities.ErrInvalidInput, validationMessage(err))
	}
	return nil
}

// validationMessage renders validator errors the way the task forms did.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "email":
			msgs = append(msgs, "email is not valid")
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return strings.Join(msgs, "; ")
}
