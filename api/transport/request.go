package transport

import (
	"strings"
	"time"

	"github.com/fastygo/taskwarlock/domain"
)

type CreateTaskRequest struct {
	Description string   `json:"description"`
	Project     string   `json:"project"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	Depends     []string `json:"depends"`
	Due         string   `json:"due"`
}

func (r CreateTaskRequest) ToDomain() (domain.TaskAdd, error) {
	due, err := parseDue(r.Due)
	if err != nil {
		return domain.TaskAdd{}, err
	}
	return domain.TaskAdd{
		Description: r.Description,
		Project:     strings.TrimSpace(r.Project),
		Priority:    domain.Priority(strings.ToUpper(strings.TrimSpace(r.Priority))),
		Tags:        r.Tags,
		Depends:     r.Depends,
		Due:         due,
	}, nil
}

// UpdateTaskRequest is a partial edit; omitted fields stay untouched.
// An empty priority or due clears the field.
type UpdateTaskRequest struct {
	Description *string   `json:"description"`
	Project     *string   `json:"project"`
	Priority    *string   `json:"priority"`
	Due         *string   `json:"due"`
	Tags        *[]string `json:"tags"`
}

func (r UpdateTaskRequest) ToDomain() (domain.TaskUpdate, error) {
	var u domain.TaskUpdate
	u.Description = r.Description
	if r.Project != nil {
		p := strings.TrimSpace(*r.Project)
		u.Project = &p
	}
	if r.Priority != nil {
		p := domain.Priority(strings.ToUpper(strings.TrimSpace(*r.Priority)))
		u.Priority = &p
	}
	if r.Due != nil {
		if strings.TrimSpace(*r.Due) == "" {
			u.ClearDue = true
		} else {
			due, err := parseDue(*r.Due)
			if err != nil {
				return domain.TaskUpdate{}, err
			}
			u.Due = due
		}
	}
	if r.Tags != nil {
		u.Tags = append([]string{}, (*r.Tags)...)
	}
	return u, nil
}

// PreviewRequest is a draft task scored without being saved.
type PreviewRequest struct {
	CreateTaskRequest
	Entry string `json:"entry"`
}

func (r PreviewRequest) ToDomain() (domain.Task, error) {
	add, err := r.CreateTaskRequest.ToDomain()
	if err != nil {
		return domain.Task{}, err
	}
	if !add.Priority.Valid() {
		return domain.Task{}, domain.NewError(domain.ErrCodeInvalid, "priority must be one of H, M, L")
	}
	t := domain.Task{
		Description: add.Description,
		Project:     add.Project,
		Priority:    add.Priority,
		Tags:        add.Tags,
		Depends:     add.Depends,
		Due:         add.Due,
	}
	if r.Entry != "" {
		entry, err := parseDue(r.Entry)
		if err != nil {
			return domain.Task{}, err
		}
		t.Entry = entry
	}
	return t, nil
}

type SwitchContextRequest struct {
	Name string `json:"name"`
}

// parseDue accepts RFC 3339 timestamps and plain dates (midnight UTC).
func parseDue(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, domain.NewError(domain.ErrCodeInvalid, "dates must be RFC 3339 or YYYY-MM-DD")
}
