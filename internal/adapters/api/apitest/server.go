// Package apitest provides an in-memory implementation of the task backend's
// HTTP surface for tests. Timestamps are emitted in the structured
// {_seconds,_nanoseconds} form by default so callers exercise normalization.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// TimestampStyle selects how the server encodes timestamps.
type TimestampStyle int

const (
	// StructuredTimestamps sends {"_seconds":..,"_nanoseconds":..}.
	StructuredTimestamps TimestampStyle = iota
	// ISOTimestamps sends RFC 3339 strings.
	ISOTimestamps
)

// RecordedRequest is one request the server received.
type RecordedRequest struct {
	Method    string
	Path      string
	Body      map[string]json.RawMessage
	RequestID string
}

type failure struct {
	method string
	prefix string
	status int
	msg    string
}

type user struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

type task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Server is a fake task backend.
type Server struct {
	URL string

	echo  *echo.Echo
	http  *httptest.Server
	valid *validator.Validate

	mu       sync.Mutex
	users    map[string]*user
	tasks    map[string]*task
	style    TimestampStyle
	now      func() time.Time
	failures []failure
	requests []RecordedRequest
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// NewServer starts a fake backend. Close it when done.
func NewServer() *Server {
	s := &Server{
		users: make(map[string]*user),
		tasks: make(map[string]*task),
		valid: validator.New(),
		now:   time.Now,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validator: s.valid}
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		TargetHeader: echo.HeaderXRequestID,
	}))
	e.Use(s.record)
	e.Use(s.injectFailures)

	e.POST("/users/check", s.checkUser)
	e.POST("/users", s.createUser)
	e.GET("/tasks/user/:userId", s.listTasks)
	e.POST("/tasks", s.createTask)
	e.PUT("/tasks/:id", s.updateTask)
	e.DELETE("/tasks/:id", s.deleteTask)

	s.echo = e
	s.http = httptest.NewServer(e)
	s.URL = s.http.URL
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.http.Close()
}

// SetTimestampStyle changes how timestamps are encoded in responses.
func (s *Server) SetTimestampStyle(style TimestampStyle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = style
}

// SetClock replaces the server's time source.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext makes the next request matching method and path prefix fail with
// status and message. Failures are consumed in the order they were queued.
func (s *Server) FailNext(method, pathPrefix string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, prefix: pathPrefix, status: status, msg: message})
}

// SeedUser adds a user and returns its id. Users are keyed by the exact
// email, case included.
func (s *Server) SeedUser(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &user{ID: uuid.NewString(), Email: email, CreatedAt: s.now()}
	s.users[u.Email] = u
	return u.ID
}

// SeedTask stores a task directly and returns its id.
func (s *Server) SeedTask(userID, title, description string, completed bool, createdAt time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Completed:   completed,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	s.tasks[t.ID] = t
	return t.ID
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// TaskCount returns how many tasks the server holds.
func (s *Server) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		rec := RecordedRequest{
			Method:    req.Method,
			Path:      req.URL.Path,
			RequestID: req.Header.Get(echo.HeaderXRequestID),
		}

		if req.Body != nil && req.ContentLength != 0 {
			var body map[string]json.RawMessage
			if err := json.NewDecoder(req.Body).Decode(&body); err == nil {
				rec.Body = body
			}
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()

		c.Set("body", rec.Body)
		return next(c)
	}
}

func (s *Server) injectFailures(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		s.mu.Lock()
		for i, f := range s.failures {
			if f.method == req.Method && strings.HasPrefix(req.URL.Path, f.prefix) {
				s.failures = append(s.failures[:i], s.failures[i+1:]...)
				s.mu.Unlock()
				return echo.NewHTTPError(f.status, f.msg)
			}
		}
		s.mu.Unlock()
		return next(c)
	}
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type createTaskRequest struct {
	UserID      string `json:"userId" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

var serverManaged = []string{"id", "createdAt", "updatedAt"}

func bodyOf(c echo.Context) map[string]json.RawMessage {
	body, _ := c.Get("body").(map[string]json.RawMessage)
	return body
}

func decodeBody(c echo.Context, out interface{}) error {
	body := bodyOf(c)
	if body == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Request body is required")
	}
	for _, f := range serverManaged {
		if _, ok := body[f]; ok {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Field %s is managed by the server", f))
		}
	}
	raw, _ := json.Marshal(body)
	if err := json.Unmarshal(raw, out); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(out); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func (s *Server) checkUser(c echo.Context) error {
	var req emailRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	var out map[string]interface{}
	if ok {
		out = s.userJSON(u)
	}
	s.mu.Unlock()

	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, ok200(out))
}

func (s *Server) createUser(c echo.Context) error {
	var req emailRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email := req.Email
	if _, exists := s.users[email]; exists {
		return echo.NewHTTPError(http.StatusConflict, "User already exists")
	}
	u := &user{ID: uuid.NewString(), Email: email, CreatedAt: s.now()}
	s.users[email] = u
	return c.JSON(http.StatusCreated, ok200(s.userJSON(u)))
}

func (s *Server) listTasks(c echo.Context) error {
	userID := c.Param("userId")

	s.mu.Lock()
	defer s.mu.Unlock()
	var owned []*task
	for _, t := range s.tasks {
		if t.UserID == userID {
			owned = append(owned, t)
		}
	}
	// Map iteration is random; settle on insertion time so responses are stable.
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.Before(owned[j].CreatedAt) })

	out := make([]map[string]interface{}, 0, len(owned))
	for _, t := range owned {
		out = append(out, s.taskJSON(t))
	}
	return c.JSON(http.StatusOK, ok200(out))
}

func (s *Server) createTask(c echo.Context) error {
	var req createTaskRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	t := &task{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tasks[t.ID] = t
	return c.JSON(http.StatusCreated, ok200(s.taskJSON(t)))
}

func (s *Server) updateTask(c echo.Context) error {
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Completed   *bool   `json:"completed"`
	}
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[c.Param("id")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	}
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}
	t.UpdatedAt = s.now()
	return c.JSON(http.StatusOK, ok200(s.taskJSON(t)))
}

func (s *Server) deleteTask(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	if _, ok := s.tasks[id]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Task not found")
	}
	delete(s.tasks, id)
	return c.JSON(http.StatusOK, ok200(nil))
}

func ok200(data interface{}) map[string]interface{} {
	return map[string]interface{}{"success": true, "data": data}
}

func (s *Server) timestamp(t time.Time) interface{} {
	if s.style == ISOTimestamps {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return map[string]int64{"_seconds": t.Unix(), "_nanoseconds": int64(t.Nanosecond())}
}

func (s *Server) userJSON(u *user) map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID,
		"email":     u.Email,
		"createdAt": s.timestamp(u.CreatedAt),
	}
}

func (s *Server) taskJSON(t *task) map[string]interface{} {
	return map[string]interface{}{
		"id":          t.ID,
		"userId":      t.UserID,
		"title":       t.Title,
		"description": t.Description,
		"completed":   t.Completed,
		"createdAt":   s.timestamp(t.CreatedAt),
		"updatedAt":   s.timestamp(t.UpdatedAt),
	}
}

// errorHandler writes failures in the backend's {success:false,error} shape.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]interface{}{"success": false, "error": msg})
	}
}
