package repository

import (
	"context"

	"github.com/fastygo/taskwarlock/domain"
)

// TaskRepository is the authoritative task store. Every call may fail; failures
// of query methods must leave callers' caches untouched.
type TaskRepository interface {
	All(ctx context.Context) ([]domain.Task, error)
	Get(ctx context.Context, ref string) (*domain.Task, error)
	Tags(ctx context.Context) ([]string, error)
	Projects(ctx context.Context) ([]string, error)

	// Add returns the created record, or nil when the store confirmed the add
	// without reporting which record it created.
	Add(ctx context.Context, task domain.TaskAdd) (*domain.Task, error)
	Edit(ctx context.Context, original domain.Task, updates domain.TaskUpdate) (*domain.Task, error)
	Complete(ctx context.Context, uuid string) error
	Restore(ctx context.Context, uuid string) error
	Sync(ctx context.Context) error
}

// ContextRepository manages Taskwarrior contexts, which filter every export.
type ContextRepository interface {
	Contexts(ctx context.Context) ([]string, error)
	CurrentContext(ctx context.Context) (string, error)
	SetContext(ctx context.Context, name string) error
}
