package api

import (
	"fmt"
	"net/http"

	"github.com/taskmaster/taskclient/internal/domain/entities"
)

// StatusUnreachable is the status recorded when no response arrived at all.
const StatusUnreachable = 0

// User-facing messages for the closed set of known statuses.
const (
	MsgUnreachable  = "Cannot connect to the server"
	MsgBadRequest   = "Invalid request"
	MsgUnauthorized = "Not authorized"
	MsgForbidden    = "Access denied"
	MsgNotFound     = "Resource not found"
	MsgConflict     = "Resource conflict"
	MsgServer       = "Server error"
)

// Translate maps a transport status to the message shown to the user. For
// statuses where the backend explains itself (400, 404, 409 and unknown
// codes) its message wins over the fixed text.
func Translate(status int, serverMessage string) string {
	switch status {
	case StatusUnreachable:
		return MsgUnreachable
	case http.StatusBadRequest:
		return orDefault(serverMessage, MsgBadRequest)
	case http.StatusUnauthorized:
		return MsgUnauthorized
	case http.StatusForbidden:
		return MsgForbidden
	case http.StatusNotFound:
		return orDefault(serverMessage, MsgNotFound)
	case http.StatusConflict:
		return orDefault(serverMessage, MsgConflict)
	case http.StatusInternalServerError:
		return MsgServer
	default:
		return orDefault(serverMessage, fmt.Sprintf("Error: %d", status))
	}
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

// Error is a backend failure after translation. Error() returns the
// translated message; the status and cause stay available to callers.
type Error struct {
	Status  int
	Message string
	Method  string
	URL     string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the transport classes in entities.
func (e *Error) Is(target error) bool {
	return classify(e.Status) == target
}

func classify(status int) error {
	switch {
	case status == StatusUnreachable:
		return entities.ErrUnreachable
	case status == http.StatusBadRequest:
		return entities.ErrBadRequest
	case status == http.StatusUnauthorized:
		return entities.ErrUnauthorized
	case status == http.StatusForbidden:
		return entities.ErrForbidden
	case status == http.StatusNotFound:
		return entities.ErrNotFound
	case status == http.StatusConflict:
		return entities.ErrConflict
	case status >= http.StatusInternalServerError:
		return entities.ErrServer
	}
	return nil
}

func newStatusError(method, url string, status int, serverMessage string) *Error {
	return &Error{
		Status:  status,
		Message: Translate(status, serverMessage),
		Method:  method,
		URL:     url,
	}
}

func newNetworkError(method, url string, cause error) *Error {
	return &Error{
		Status:  StatusUnreachable,
		Message: Translate(StatusUnreachable, ""),
		Method:  method,
		URL:     url,
		Err:     cause,
	}
}
