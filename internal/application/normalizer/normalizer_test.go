package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/taskclient/internal/ports"
)

func TestConvertTimestamp(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		wantMs int64
		absent bool
	}{
		{name: "structured seconds", raw: `{"seconds":1728298800,"nanoseconds":0}`, wantMs: 1728298800000},
		{name: "underscore keys", raw: `{"_seconds":1728298800,"_nanoseconds":512000000}`, wantMs: 1728298800000},
		{name: "seconds zero is epoch", raw: `{"seconds":0}`, wantMs: 0},
		{name: "rfc3339", raw: `"2024-10-07T11:00:00Z"`, wantMs: 1728298800000},
		{name: "rfc3339 fractional offset", raw: `"2024-10-07T13:00:00.250+02:00"`, wantMs: 1728298800250},
		{name: "iso without zone", raw: `"2024-10-07T11:00:00"`, wantMs: 1728298800000},
		{name: "date only", raw: `"2024-10-07"`, wantMs: 1728259200000},
		{name: "epoch millis", raw: `1728298800000`, wantMs: 1728298800000},
		{name: "null", raw: `null`, absent: true},
		{name: "missing", raw: ``, absent: true},
		{name: "empty string", raw: `""`, absent: true},
		{name: "garbage string", raw: `"next tuesday"`, absent: true},
		{name: "object without seconds", raw: `{"when":"now"}`, absent: true},
		{name: "boolean", raw: `true`, absent: true},
		{name: "array", raw: `[1,2]`, absent: true},
		{name: "broken json", raw: `{"seconds":`, absent: true},
		{name: "negative seconds", raw: `{"seconds":-86400}`, wantMs: -86400000},
		{name: "largest seconds", raw: `{"seconds":9000000000000000}`, wantMs: 9000000000000000000},
		{name: "seconds past int64 millis", raw: `{"seconds":9223372036854775}`, absent: true},
		{name: "huge seconds", raw: `{"seconds":1e300}`, absent: true},
		{name: "huge negative seconds", raw: `{"_seconds":-1e300}`, absent: true},
		{name: "huge millis", raw: `1e300`, absent: true},
		{name: "millis at int64 limit", raw: `9223372036854775807`, absent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertTimestamp(json.RawMessage(tt.raw))
			if tt.absent {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantMs, got.UnixMilli())
		})
	}
}

func TestConvertTimestampNilSlice(t *testing.T) {
	assert.Nil(t, ConvertTimestamp(nil))
}

func TestNormalizeMixedShapes(t *testing.T) {
	raw := ports.ServerTask{
		ID:          "t1",
		UserID:      "u1",
		Title:       "Test Task",
		Description: "This is a test task description",
		Completed:   true,
		CreatedAt:   json.RawMessage(`{"_seconds":1728298800,"_nanoseconds":0}`),
		UpdatedAt:   json.RawMessage(`"2024-10-08T09:30:00Z"`),
	}

	task := Normalize(raw)

	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, "u1", task.UserID)
	assert.Equal(t, "Test Task", task.Title)
	assert.Equal(t, "This is a test task description", task.Description)
	assert.True(t, task.Completed)
	require.NotNil(t, task.CreatedAt)
	require.NotNil(t, task.UpdatedAt)
	assert.Equal(t, time.Unix(1728298800, 0).UTC(), *task.CreatedAt)
	assert.Equal(t, time.Date(2024, 10, 8, 9, 30, 0, 0, time.UTC), *task.UpdatedAt)

	// What consumers see must never contain the structured wire form.
	out, err := json.Marshal(task)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "_seconds")
	assert.NotContains(t, string(out), "nanoseconds")
}

func TestNormalizeUnreadableTimestampsAreAbsent(t *testing.T) {
	task := Normalize(ports.ServerTask{
		ID:        "t2",
		CreatedAt: json.RawMessage(`{"nope":1}`),
		UpdatedAt: json.RawMessage(`"yesterday-ish"`),
	})
	assert.Nil(t, task.CreatedAt)
	assert.Nil(t, task.UpdatedAt)

	out, err := json.Marshal(task)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "createdAt")
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	tasks := NormalizeAll([]ports.ServerTask{{ID: "b"}, {ID: "a"}, {ID: "c"}})
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{tasks[0].ID, tasks[1].ID, tasks[2].ID})
}

func TestNormalizeIdentity(t *testing.T) {
	id := NormalizeIdentity(ports.ServerIdentity{
		ID:        "test-user-123",
		Email:     "test@example.com",
		CreatedAt: json.RawMessage(`{"_seconds":1759795200,"_nanoseconds":0}`),
	})
	assert.Equal(t, "test-user-123", id.ID)
	require.NotNil(t, id.CreatedAt)
	assert.Equal(t, int64(1759795200000), id.CreatedAt.UnixMilli())
}
