// Package normalizer turns wire-shaped backend records into client entities.
//
// Timestamps arrive in one of two encodings: a structured object carrying a
// seconds count, keyed "seconds" or "_seconds" depending on the server,
// or a direct date value. Both end up as a *time.Time; anything unreadable
// ends up nil. Precision is whole seconds for the structured form.
package normalizer

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/taskmaster/taskclient/internal/domain/entities"
	"github.com/taskmaster/taskclient/internal/ports"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

type structuredTimestamp struct {
	Seconds      *float64 `json:"seconds"`
	UnderSeconds *float64 `json:"_seconds"`
	// Nanoseconds are read but not applied.
	Nanoseconds *float64 `json:"nanoseconds"`
	UnderNanos  *float64 `json:"_nanoseconds"`
}

func (s structuredTimestamp) seconds() (float64, bool) {
	switch {
	case s.Seconds != nil:
		return *s.Seconds, true
	case s.UnderSeconds != nil:
		return *s.UnderSeconds, true
	}
	return 0, false
}

// ConvertTimestamp converts a raw wire value into a time, or nil when the
// value is absent or cannot be read.
func ConvertTimestamp(raw json.RawMessage) *time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	switch raw[0] {
	case '{':
		var ts structuredTimestamp
		if err := json.Unmarshal(raw, &ts); err != nil {
			return nil
		}
		secs, ok := ts.seconds()
		if !ok || !finiteWithin(secs, maxEpochSeconds) {
			return nil
		}
		t := time.UnixMilli(int64(secs) * 1000).UTC()
		return &t
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return parseDate(s)
	default:
		var ms float64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return nil
		}
		if !finiteWithin(ms, math.MaxInt64) {
			return nil
		}
		t := time.UnixMilli(int64(ms)).UTC()
		return &t
	}
}

// maxEpochSeconds keeps seconds*1000 within int64.
const maxEpochSeconds = math.MaxInt64 / 1000

// finiteWithin reports whether v is a number strictly inside (-limit, limit).
func finiteWithin(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) < limit
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Normalize converts a server task into a client task. Only the timestamps
// change; every other field is copied as is.
func Normalize(raw ports.ServerTask) entities.Task {
	return entities.Task{
		ID:          raw.ID,
		UserID:      raw.UserID,
		Title:       raw.Title,
		Description: raw.Description,
		Completed:   raw.Completed,
		CreatedAt:   ConvertTimestamp(raw.CreatedAt),
		UpdatedAt:   ConvertTimestamp(raw.UpdatedAt),
	}
}

// NormalizeAll converts a batch, preserving order.
func NormalizeAll(raw []ports.ServerTask) []entities.Task {
	tasks := make([]entities.Task, 0, len(raw))
	for _, r := range raw {
		tasks = append(tasks, Normalize(r))
	}
	return tasks
}

// NormalizeIdentity converts a server user record.
func NormalizeIdentity(raw ports.ServerIdentity) entities.Identity {
	return entities.Identity{
		ID:        raw.ID,
		Email:     raw.Email,
		CreatedAt: ConvertTimestamp(raw.CreatedAt),
	}
}
