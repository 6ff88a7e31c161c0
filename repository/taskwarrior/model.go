package taskwarrior

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fastygo/taskwarlock/domain"
)

const (
	statusDeleted = "deleted"

	// timeLayout is Taskwarrior's compact UTC timestamp, e.g. 20251201T075959Z.
	timeLayout = "20060102T150405Z"
	// dueLayout is what the CLI accepts for due: modifications.
	dueLayout = "2006-01-02T15:04:05Z"
)

// Timestamp decodes Taskwarrior's compact timestamps.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return fmt.Errorf("parse taskwarrior timestamp %q: %w", s, err)
	}
	ts.Time = t
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.Time.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + ts.Time.UTC().Format(timeLayout) + `"`), nil
}

func (ts *Timestamp) ptr() *time.Time {
	if ts == nil || ts.Time.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}

// uuidList accepts both the JSON array written by Taskwarrior 2.6+ and the
// comma-separated string of older releases.
type uuidList []string

func (l *uuidList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*l = out
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	*l = arr
	return nil
}

// record is one element of `task export`.
type record struct {
	ID          *int       `json:"id"`
	UUID        string     `json:"uuid"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	Urgency     *float64   `json:"urgency"`
	Priority    string     `json:"priority,omitempty"`
	Project     string     `json:"project,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Depends     uuidList   `json:"depends,omitempty"`
	Due         *Timestamp `json:"due,omitempty"`
	End         *Timestamp `json:"end,omitempty"`
	Entry       *Timestamp `json:"entry"`
	Modified    *Timestamp `json:"modified,omitempty"`
}

func (r record) validate() error {
	switch {
	case r.UUID == "":
		return fmt.Errorf("missing uuid")
	case r.ID == nil:
		return fmt.Errorf("task %s: missing id", r.UUID)
	case r.Description == nil:
		return fmt.Errorf("task %s: missing description", r.UUID)
	case r.Urgency == nil:
		return fmt.Errorf("task %s: missing urgency", r.UUID)
	case r.Entry == nil || r.Entry.IsZero():
		return fmt.Errorf("task %s: missing entry", r.UUID)
	case !domain.Priority(r.Priority).Valid():
		return fmt.Errorf("task %s: unknown priority %q", r.UUID, r.Priority)
	}
	return nil
}

func (r record) toDomain() domain.Task {
	return domain.Task{
		ID:          *r.ID,
		UUID:        r.UUID,
		Description: *r.Description,
		Priority:    domain.Priority(r.Priority),
		Project:     r.Project,
		Tags:        r.Tags,
		Depends:     []string(r.Depends),
		Due:         r.Due.ptr(),
		End:         r.End.ptr(),
		Entry:       r.Entry.ptr(),
		Modified:    r.Modified.ptr(),
		Urgency:     *r.Urgency,
	}
}

// parseExport decodes export output. A single malformed record rejects the
// whole payload so that callers never cache half of a response.
func parseExport(out []byte) ([]domain.Task, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return []domain.Task{}, nil
	}

	var records []record
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, domain.WrapError(domain.ErrCodeParse, "malformed taskwarrior export", err)
	}

	tasks := make([]domain.Task, 0, len(records))
	for _, r := range records {
		if err := r.validate(); err != nil {
			return nil, domain.WrapError(domain.ErrCodeParse, "malformed taskwarrior export", err)
		}
		if r.Status == statusDeleted {
			continue
		}
		tasks = append(tasks, r.toDomain())
	}
	return tasks, nil
}

func formatDue(t time.Time) string {
	return t.UTC().Format(dueLayout)
}
