package tasks

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Hash field names of a stored task record.
const (
	fieldTask       = "task"
	fieldStatus     = "status"
	fieldTrajectory = "trajectory"
	fieldError      = "error"
	fieldCreatedAt  = "created_at"
	fieldExpiresAt  = "expires_at"
)

const unknownError = "Unknown error"

// Record is a point-in-time snapshot of a task.
type Record struct {
	ID     string `json:"task_id"`
	Task   string `json:"task"`
	Status State  `json:"status"`
	// Trajectory is the stored JSON array, returned verbatim.
	Trajectory json.RawMessage `json:"trajectory,omitempty"`
	Error      *string         `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"-"`
	ExpiresAt  time.Time       `json:"-"`
}

// Summary is the listing view of a task.
type Summary struct {
	ID     string `json:"task_id"`
	Task   string `json:"task"`
	Status State  `json:"status"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// decodeRecord rebuilds a Record from hash fields. It returns (nil, nil) when
// the fields do not describe a live record at now.
func decodeRecord(id string, fields map[string]string, now time.Time) (*Record, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	status := State(fields[fieldStatus])
	if !status.Valid() {
		return nil, fmt.Errorf("task %s: invalid status %q", id, fields[fieldStatus])
	}

	rec := &Record{
		ID:     id,
		Task:   fields[fieldTask],
		Status: status,
	}
	if raw := fields[fieldCreatedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			rec.CreatedAt = t
		}
	}
	if raw := fields[fieldExpiresAt]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("task %s: invalid expires_at: %w", id, err)
		}
		rec.ExpiresAt = t
		if !now.Before(t) {
			return nil, nil
		}
	}

	switch status {
	case StateCompleted:
		raw := strings.TrimSpace(fields[fieldTrajectory])
		if raw == "" {
			raw = "[]"
		}
		rec.Trajectory = json.RawMessage(raw)
	case StateFailed:
		msg := fields[fieldError]
		if msg == "" {
			msg = unknownError
		}
		rec.Error = &msg
	}
	return rec, nil
}

// Summary returns the listing view of r.
func (r *Record) Summary() Summary {
	return Summary{ID: r.ID, Task: r.Task, Status: r.Status}
}
