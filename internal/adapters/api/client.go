package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/taskmaster/taskclient/internal/domain/entities"
	"github.com/taskmaster/taskclient/internal/infrastructure/config"
	"github.com/taskmaster/taskclient/internal/infrastructure/logger"
	"github.com/taskmaster/taskclient/internal/ports"
)

// Endpoint paths, relative to the configured base URL.
const (
	PathUsersCheck  = "/users/check"
	PathUsers       = "/users"
	PathTasks       = "/tasks"
	PathTasksByUser = "/tasks/user/"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

// envelope is the response wrapper every endpoint uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (e envelope) serverMessage() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Client talks to the task backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	metrics *Metrics
	logger  *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records every call on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a backend client from the api configuration.
func NewClient(cfg config.APIConfig, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:  log.WithComponent("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ ports.UserGateway = (*Client)(nil)
	_ ports.TaskGateway = (*Client)(nil)
)

// CheckUser looks a user up by email.
func (c *Client) CheckUser(ctx context.Context, email string) (*ports.ServerIdentity, error) {
	var out ports.ServerIdentity
	if err := c.do(ctx, "check_user", http.MethodPost, PathUsersCheck, entities.EmailRequest{Email: email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser registers a new user.
func (c *Client) CreateUser(ctx context.Context, email string) (*ports.ServerIdentity, error) {
	var out ports.ServerIdentity
	if err := c.do(ctx, "create_user", http.MethodPost, PathUsers, entities.EmailRequest{Email: email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks fetches every task of a user.
func (c *Client) ListTasks(ctx context.Context, userID string) ([]ports.ServerTask, error) {
	var out []ports.ServerTask
	if err := c.do(ctx, "list_tasks", http.MethodGet, PathTasksByUser+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTask creates a task. The DTO is sent as is.
func (c *Client) CreateTask(ctx context.Context, dto entities.CreateTaskDTO) (*ports.ServerTask, error) {
	var out ports.ServerTask
	if err := c.do(ctx, "create_task", http.MethodPost, PathTasks, dto, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask sends the fields present in dto.
func (c *Client) UpdateTask(ctx context.Context, id string, dto entities.UpdateTaskDTO) (*ports.ServerTask, error) {
	var out ports.ServerTask
	if err := c.do(ctx, "update_task", http.MethodPut, PathTasks+"/"+url.PathEscape(id), dto, &out); err != nil {
		return nil, taskNotFound(err)
	}
	return &out, nil
}

// DeleteTask deletes a task. Any data in the response is ignored.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return taskNotFound(c.do(ctx, "delete_task", http.MethodDelete, PathTasks+"/"+url.PathEscape(id), nil, nil))
}

// taskNotFound marks a 404 on a single task path as entities.ErrTaskNotFound.
// The translated message is left as is.
func taskNotFound(err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound && apiErr.Err == nil {
		apiErr.Err = entities.ErrTaskNotFound
	}
	return err
}

// do performs one request and decodes the envelope's data into out. Every
// failure comes back as *Error.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) error {
	target := c.baseURL + path
	requestID := uuid.NewString()

	if err := c.limiter.Wait(ctx); err != nil {
		return newNetworkError(method, target, fmt.Errorf("rate limiter: %w", err))
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := newNetworkError(method, target, err)
		c.metrics.observe(operation, StatusUnreachable, time.Since(start))
		c.logger.LogHTTPRequest(method, target, requestID, StatusUnreachable, time.Since(start), err)
		return apiErr
	}
	defer resp.Body.Close()

	err = decodeResponse(resp, method, target, out)
	c.metrics.observe(operation, resp.StatusCode, time.Since(start))
	c.logger.LogHTTPRequest(method, target, requestID, resp.StatusCode, time.Since(start), err)
	return err
}

func decodeResponse(resp *http.Response, method, target string, out interface{}) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newNetworkError(method, target, fmt.Errorf("read response: %w", err))
	}

	var env envelope
	var decodeErr error
	if len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(method, target, resp.StatusCode, env.serverMessage())
	}

	// A 204 or an empty body is a success with no data.
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if decodeErr != nil {
		apiErr := newStatusError(method, target, resp.StatusCode, "")
		apiErr.Message = "Unexpected response from the server"
		apiErr.Err = decodeErr
		return apiErr
	}
	if !env.Success {
		return newStatusError(method, target, resp.StatusCode, orDefault(env.serverMessage(), "Request failed"))
	}

	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		apiErr := newStatusError(method, target, resp.StatusCode, "")
		apiErr.Message = "Unexpected response from the server"
		apiErr.Err = err
		return apiErr
	}
	return nil
}

// IsStatus reports whether err is an *Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
