package domain

import (
	"slices"
	"strings"
	"time"
)

// Status is derived from the presence of an end timestamp.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Priority is the Taskwarrior priority enum. The empty value means "no priority".
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityHigh   Priority = "H"
	PriorityMedium Priority = "M"
	PriorityLow    Priority = "L"
)

// Valid reports whether p is one of H, M, L or empty.
func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// NextTag is the tag that earns the flat "next" urgency bonus.
const NextTag = "next"

// UnconfirmedID marks a task that the external store has not assigned an id to yet.
const UnconfirmedID = -1

// TempUUIDPrefix prefixes placeholder identities of optimistically added tasks.
const TempUUIDPrefix = "temp-"

// Task is the cached copy of a Taskwarrior record.
type Task struct {
	ID          int        `json:"id"`
	UUID        string     `json:"uuid"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority,omitempty"`
	Project     string     `json:"project,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Depends     []string   `json:"depends,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	End         *time.Time `json:"end,omitempty"`
	Entry       *time.Time `json:"entry,omitempty"`
	Modified    *time.Time `json:"modified,omitempty"`

	// Urgency is a prediction or the last value reported by Taskwarrior.
	// It is never an input, only recomputed.
	Urgency float64 `json:"urgency"`
}

// Status reports completed iff the task carries an end timestamp.
func (t *Task) Status() Status {
	if t != nil && t.End != nil {
		return StatusCompleted
	}
	return StatusPending
}

func (t *Task) IsCompleted() bool {
	return t.Status() == StatusCompleted
}

// IsTemporary reports whether the task still carries a client-assigned placeholder identity.
func (t *Task) IsTemporary() bool {
	return t != nil && strings.HasPrefix(t.UUID, TempUUIDPrefix)
}

// HasTag reports whether tag is present.
func (t *Task) HasTag(tag string) bool {
	return t != nil && slices.Contains(t.Tags, tag)
}

// IsOverdue reports whether a pending task is past its due time.
func (t *Task) IsOverdue(now time.Time) bool {
	return t != nil && t.End == nil && t.Due != nil && t.Due.Before(now)
}

// Clone returns a deep copy so snapshots never share slices or timestamps with live records.
func (t Task) Clone() Task {
	out := t
	out.Tags = slices.Clone(t.Tags)
	out.Depends = slices.Clone(t.Depends)
	out.Due = cloneTime(t.Due)
	out.End = cloneTime(t.End)
	out.Entry = cloneTime(t.Entry)
	out.Modified = cloneTime(t.Modified)
	return out
}

// CloneTasks deep-copies a task list. A nil input stays nil.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TaskAdd carries the user-supplied fields of a new task.
type TaskAdd struct {
	Description string     `json:"description"`
	Priority    Priority   `json:"priority,omitempty"`
	Project     string     `json:"project,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Depends     []string   `json:"depends,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
}

// Validate rejects payloads that must never reach the cache.
func (a TaskAdd) Validate() error {
	if strings.TrimSpace(a.Description) == "" {
		return ErrEmptyDescription
	}
	if !a.Priority.Valid() {
		return NewError(ErrCodeInvalid, "priority must be one of H, M, L")
	}
	return validateTags(a.Tags)
}

// TaskUpdate is a partial edit. Nil fields are left untouched.
//
// Priority set to "" clears it, ClearDue removes the due date, and a non-nil
// Tags slice (even empty) replaces the whole tag set.
type TaskUpdate struct {
	Description *string    `json:"description,omitempty"`
	Project     *string    `json:"project,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
	ClearDue    bool       `json:"clear_due,omitempty"`
	Tags        []string   `json:"tags"`
}

// Validate checks the update in isolation.
func (u TaskUpdate) Validate() error {
	if u.Description != nil && strings.TrimSpace(*u.Description) == "" {
		return ErrEmptyDescription
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return NewError(ErrCodeInvalid, "priority must be one of H, M, L or empty")
	}
	if u.Due != nil && u.ClearDue {
		return NewError(ErrCodeInvalid, "due and clear_due are mutually exclusive")
	}
	return validateTags(u.Tags)
}

// IsEmpty reports whether the update changes nothing.
func (u TaskUpdate) IsEmpty() bool {
	return u.Description == nil && u.Project == nil && u.Priority == nil &&
		u.Due == nil && !u.ClearDue && u.Tags == nil
}

// ApplyTo merges the update into a copy of original. Urgency is left for the caller to recompute.
func (u TaskUpdate) ApplyTo(original Task) Task {
	out := original.Clone()
	if u.Description != nil {
		out.Description = *u.Description
	}
	if u.Project != nil {
		out.Project = *u.Project
	}
	if u.Priority != nil {
		out.Priority = *u.Priority
	}
	if u.ClearDue {
		out.Due = nil
	} else if u.Due != nil {
		out.Due = cloneTime(u.Due)
	}
	if u.Tags != nil {
		out.Tags = slices.Clone(u.Tags)
	}
	return out
}

func validateTags(tags []string) error {
	for _, tag := range tags {
		if tag == "" || strings.ContainsAny(tag, " \t\n,") {
			return NewError(ErrCodeInvalid, "tags must be non-empty words without spaces or commas")
		}
	}
	return nil
}
