package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/taskclient/internal/adapters/api"
	"github.com/taskmaster/taskclient/internal/adapters/api/apitest"
	"github.com/taskmaster/taskclient/internal/adapters/repository"
	"github.com/taskmaster/taskclient/internal/domain/entities"
	"github.com/taskmaster/taskclient/internal/infrastructure/config"
	"github.com/taskmaster/taskclient/internal/infrastructure/logger"
	"github.com/taskmaster/taskclient/internal/ports"
)

type harness struct {
	srv     *apitest.Server
	client  *api.Client
	session *SessionStore
	auth    *AuthService
	tasks   *TaskService
	board   *Board
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	log := logger.NewNop()
	client := api.NewClient(config.APIConfig{
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		RateBurst: 1000,
	}, log)
	validate := validator.New()

	session := NewSessionStore(repository.NewMemorySessionStorage(), log)
	tasks := NewTaskService(client, session, validate, log)

	return &harness{
		srv:     srv,
		client:  client,
		session: session,
		auth:    NewAuthService(NewUserService(client, validate, log), session, log),
		tasks:   tasks,
		board:   NewBoard(tasks, session),
	}
}

// login seeds email on the fake backend and logs in as that user.
func (h *harness) login(t *testing.T, email string) *entities.Identity {
	t.Helper()
	h.srv.SeedUser(email)
	identity, err := h.auth.Login(context.Background(), email)
	require.NoError(t, err)
	return identity
}

// bodyString decodes one string field of a recorded request body.
func bodyString(t *testing.T, req apitest.RecordedRequest, field string) string {
	t.Helper()
	raw, ok := req.Body[field]
	require.True(t, ok, "field %q missing from %s %s", field, req.Method, req.Path)
	var v string
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestLoginWithKnownEmail(t *testing.T) {
	h := newHarness(t)

	identity := h.login(t, "ana@example.com")

	assert.NotEmpty(t, identity.ID)
	assert.Equal(t, "ana@example.com", identity.Email)
	assert.NotNil(t, identity.CreatedAt)
	assert.True(t, h.session.IsAuthenticated())

	current, ok := h.session.Current()
	require.True(t, ok)
	assert.Equal(t, identity.ID, current.ID)
}

func TestCreateThenList(t *testing.T) {
	h := newHarness(t)
	identity := h.login(t, "ana@example.com")
	ctx := context.Background()

	created, err := h.tasks.Create(ctx, entities.CreateTaskDTO{
		UserID:      identity.ID,
		Title:       "Test Task",
		Description: "This is a test task description",
		Completed:   false,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	tasks, err := h.tasks.List(ctx, identity.ID)
	require.NoError(t, err)

	var matching []entities.Task
	for _, task := range tasks {
		if task.Title == "Test Task" {
			matching = append(matching, task)
		}
	}
	require.Len(t, matching, 1)
	assert.NotNil(t, matching[0].CreatedAt)
	assert.NotNil(t, matching[0].UpdatedAt)
	assert.Equal(t, identity.ID, matching[0].UserID)
}

func TestUpdateThenList(t *testing.T) {
	h := newHarness(t)
	identity := h.login(t, "ana@example.com")
	ctx := context.Background()

	created, err := h.tasks.Create(ctx, entities.CreateTaskDTO{
		Title:       "Test Task",
		Description: "This is a test task description",
	})
	require.NoError(t, err)

	updated, err := h.tasks.Update(ctx, created.ID, entities.UpdateTaskDTO{Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Completed)

	tasks, err := h.tasks.List(ctx, identity.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)
	assert.True(t, tasks[0].Completed)
	assert.Equal(t, "Test Task", tasks[0].Title)
}

func TestDeleteThenList(t *testing.T) {
	h := newHarness(t)
	identity := h.login(t, "ana@example.com")
	ctx := context.Background()

	keep, err := h.tasks.Create(ctx, entities.CreateTaskDTO{Title: "Keep me", Description: "This one stays around"})
	require.NoError(t, err)
	drop, err := h.tasks.Create(ctx, entities.CreateTaskDTO{Title: "Drop me", Description: "This one goes away"})
	require.NoError(t, err)

	require.NoError(t, h.tasks.Delete(ctx, drop.ID))

	tasks, err := h.tasks.List(ctx, identity.ID)
	require.NoError(t, err)
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.NotContains(t, ids, drop.ID)
	assert.Contains(t, ids, keep.ID)
}

func TestTaskServiceRequiresSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.tasks.List(ctx, "u1")
	assert.True(t, errors.Is(err, entities.ErrNotAuthenticated))
	_, err = h.tasks.Create(ctx, entities.CreateTaskDTO{Title: "Test Task", Description: "This is a test task description"})
	assert.True(t, errors.Is(err, entities.ErrNotAuthenticated))
	_, err = h.tasks.Update(ctx, "t1", entities.UpdateTaskDTO{Completed: boolPtr(true)})
	assert.True(t, errors.Is(err, entities.ErrNotAuthenticated))
	assert.True(t, errors.Is(h.tasks.Delete(ctx, "t1"), entities.ErrNotAuthenticated))

	assert.Empty(t, h.srv.Requests(), "nothing reaches the backend without a session")
}

func TestTaskServiceScopesToSessionUser(t *testing.T) {
	h := newHarness(t)
	h.login(t, "ana@example.com")
	ctx := context.Background()

	_, err := h.tasks.List(ctx, "someone-else")
	assert.True(t, errors.Is(err, entities.ErrUserMismatch))

	_, err = h.tasks.Create(ctx, entities.CreateTaskDTO{
		UserID:      "someone-else",
		Title:       "Test Task",
		Description: "This is a test task description",
	})
	assert.True(t, errors.Is(err, entities.ErrUserMismatch))
	assert.Zero(t, h.srv.TaskCount())
}

// foreignGateway returns a task owned by somebody else alongside the real ones.
type foreignGateway struct {
	ports.TaskGateway
}

func (g foreignGateway) CreateTask(ctx context.Context, dto entities.CreateTaskDTO) (*ports.ServerTask, error) {
	task, err := g.TaskGateway.CreateTask(ctx, dto)
	if err != nil {
		return nil, err
	}
	task.UserID = "intruder"
	return task, nil
}

func (g foreignGateway) UpdateTask(ctx context.Context, id string, dto entities.UpdateTaskDTO) (*ports.ServerTask, error) {
	task, err := g.TaskGateway.UpdateTask(ctx, id, dto)
	if err != nil {
		return nil, err
	}
	task.UserID = "intruder"
	return task, nil
}

func (g foreignGateway) ListTasks(ctx context.Context, userID string) ([]ports.ServerTask, error) {
	tasks, err := g.TaskGateway.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append(tasks, ports.ServerTask{ID: "x", UserID: "intruder", Title: "Not yours"}), nil
}

func TestTaskServiceDropsForeignTasks(t *testing.T) {
	h := newHarness(t)
	identity := h.login(t, "ana@example.com")
	h.srv.SeedTask(identity.ID, "Mine", "Owned by the session user", false, time.Now())

	svc := NewTaskService(foreignGateway{h.client}, h.session, validator.New(), logger.NewNop())
	tasks, err := svc.List(context.Background(), identity.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Mine", tasks[0].Title)
}

func TestTaskServiceRejectsForeignWriteResults(t *testing.T) {
	h := newHarness(t)
	h.login(t, "ana@example.com")
	ctx := context.Background()
	svc := NewTaskService(foreignGateway{h.client}, h.session, validator.New(), logger.NewNop())

	_, err := svc.Create(ctx, entities.CreateTaskDTO{Title: "Test Task", Description: "This is a test task description"})
	assert.True(t, errors.Is(err, entities.ErrUserMismatch))

	created, err := h.tasks.Create(ctx, entities.CreateTaskDTO{Title: "Mine too", Description: "Owned by the session user"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, created.ID, entities.UpdateTaskDTO{Completed: boolPtr(true)})
	assert.True(t, errors.Is(err, entities.ErrUserMismatch))
}

func TestTaskServiceSendsInputVerbatim(t *testing.T) {
	h := newHarness(t)
	h.login(t, "ana@example.com")
	ctx := context.Background()

	created, err := h.tasks.Create(ctx, entities.CreateTaskDTO{
		Title:       "  Padded title  ",
		Description: " This is a test task description\n",
	})
	require.NoError(t, err)
	_, err = h.tasks.Update(ctx, created.ID, entities.UpdateTaskDTO{Title: strPtr(" Renamed ")})
	require.NoError(t, err)

	reqs := h.srv.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, http.MethodPost, reqs[1].Method)
	assert.Equal(t, "  Padded title  ", bodyString(t, reqs[1], "title"))
	assert.Equal(t, " This is a test task description\n", bodyString(t, reqs[1], "description"))
	assert.Equal(t, http.MethodPut, reqs[2].Method)
	assert.Equal(t, " Renamed ", bodyString(t, reqs[2], "title"))
	assert.NotContains(t, reqs[2].Body, "description")
}

func TestTaskServiceValidatesLocally(t *testing.T) {
	h := newHarness(t)
	h.login(t, "ana@example.com")
	ctx := context.Background()

	tests := []struct {
		name string
		dto  entities.CreateTaskDTO
		want string
	}{
		{"missing title", entities.CreateTaskDTO{Description: "This is a test task description"}, "title is required"},
		{"short title", entities.CreateTaskDTO{Title: "ab", Description: "This is a test task description"}, "title must be at least 3 characters"},
		{"blank title", entities.CreateTaskDTO{Title: "     ", Description: "This is a test task description"}, "title is required"},
		{"short description", entities.CreateTaskDTO{Title: "Test Task", Description: "short"}, "description must be at least 10 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.tasks.Create(ctx, tt.dto)
			require.Error(t, err)
			assert.True(t, errors.Is(err, entities.ErrInvalidInput))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := h.tasks.Update(ctx, "t1", entities.UpdateTaskDTO{})
	assert.True(t, errors.Is(err, entities.ErrEmptyUpdate))
	_, err = h.tasks.Update(ctx, "t1", entities.UpdateTaskDTO{Title: strPtr("x")})
	assert.True(t, errors.Is(err, entities.ErrInvalidInput))
	_, err = h.tasks.Update(ctx, "", entities.UpdateTaskDTO{Completed: boolPtr(true)})
	assert.True(t, errors.Is(err, entities.ErrInvalidInput))

	// Only the login check reached the server.
	assert.Len(t, h.srv.Requests(), 1)
}

func TestTaskServiceSurfacesTranslatedErrors(t *testing.T) {
	h := newHarness(t)
	h.login(t, "ana@example.com")
	ctx := context.Background()

	err := h.tasks.Delete(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrNotFound))
	assert.True(t, errors.Is(err, entities.ErrTaskNotFound))
	assert.Contains(t, err.Error(), "Task not found")

	h.srv.FailNext(http.MethodPost, "/tasks", http.StatusInternalServerError, "boom")
	_, err = h.tasks.Create(ctx, entities.CreateTaskDTO{Title: "Test Task", Description: "This is a test task description"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entities.ErrServer))
	assert.Contains(t, err.Error(), api.MsgServer)
	assert.NotContains(t, err.Error(), "boom")
}

func TestTaskServiceNormalizesBothTimestampStyles(t *testing.T) {
	for _, style := range []apitest.TimestampStyle{apitest.StructuredTimestamps, apitest.ISOTimestamps} {
		h := newHarness(t)
		h.srv.SetTimestampStyle(style)
		at := time.Date(2024, 10, 7, 11, 0, 0, 0, time.UTC)
		h.srv.SetClock(func() time.Time { return at })
		identity := h.login(t, "ana@example.com")

		_, err := h.tasks.Create(context.Background(), entities.CreateTaskDTO{Title: "Test Task", Description: "This is a test task description"})
		require.NoError(t, err)

		tasks, err := h.tasks.List(context.Background(), identity.ID)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.NotNil(t, tasks[0].CreatedAt)
		assert.True(t, at.Equal(*tasks[0].CreatedAt), "style %v: got %v", style, tasks[0].CreatedAt)
	}
}
