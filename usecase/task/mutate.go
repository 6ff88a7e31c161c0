package task

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/urgency"
)

// Add shows a new task immediately under a temporary identity and creates it in Taskwarrior.
func (c *Coordinator) Add(ctx context.Context, in domain.TaskAdd) (*Mutation, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := c.ensureLoaded(ctx); err != nil {
		// The add does not depend on the existing records; the refetch after
		// confirmation fills the collection in.
		c.logger.Warn("adding task before the task list could be loaded", zap.Error(err))
	}

	settings := c.settings.Current()
	now := c.clock.Now()
	entry := now
	predicted := domain.Task{
		ID:          domain.UnconfirmedID,
		UUID:        tempUUID(now),
		Description: in.Description,
		Priority:    in.Priority,
		Project:     in.Project,
		Tags:        slices.Clone(in.Tags),
		Depends:     slices.Clone(in.Depends),
		Entry:       &entry,
	}
	if in.Due != nil {
		due := *in.Due
		predicted.Due = &due
	}
	predicted.Urgency = urgency.Score(predicted, settings.UrgencyCoefficients, settings.UrgencyAgeMax, now)

	return c.run(ctx, plan{
		kind:     domain.MutationAdd,
		taskUUID: predicted.UUID,
		apply: func(tasks []domain.Task) ([]domain.Task, *domain.Task, error) {
			return append([]domain.Task{predicted.Clone()}, tasks...), &predicted, nil
		},
		dispatch: func(ctx context.Context) (*domain.Task, error) {
			return c.repo.Add(ctx, in)
		},
		confirm: func(tasks []domain.Task, created *domain.Task) []domain.Task {
			i := findTask(tasks, predicted.UUID)
			if findTask(tasks, created.UUID) >= 0 {
				// Already present, e.g. a refresh raced the confirmation.
				if i >= 0 {
					tasks = slices.Delete(tasks, i, i+1)
				}
				return tasks
			}
			if i >= 0 {
				tasks[i] = created.Clone()
				return tasks
			}
			return append([]domain.Task{created.Clone()}, tasks...)
		},
	})
}

// Edit merges updates into the cached record and sends them to Taskwarrior.
func (c *Coordinator) Edit(ctx context.Context, uuid string, updates domain.TaskUpdate) (*Mutation, error) {
	if err := updates.Validate(); err != nil {
		return nil, err
	}
	if updates.Description != nil {
		d := strings.TrimSpace(*updates.Description)
		updates.Description = &d
	}
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	settings := c.settings.Current()
	var original domain.Task
	return c.run(ctx, plan{
		kind:     domain.MutationEdit,
		taskUUID: uuid,
		existing: true,
		apply: func(tasks []domain.Task) ([]domain.Task, *domain.Task, error) {
			i, err := locate(tasks, uuid)
			if err != nil {
				return nil, nil, err
			}
			original = tasks[i].Clone()
			now := c.clock.Now()
			next := updates.ApplyTo(original)
			next.Modified = &now
			next.Urgency = urgency.Score(next, settings.UrgencyCoefficients, settings.UrgencyAgeMax, now)
			tasks[i] = next
			return tasks, &next, nil
		},
		dispatch: func(ctx context.Context) (*domain.Task, error) {
			return c.repo.Edit(ctx, original, updates)
		},
		confirm: replaceByUUID,
	})
}

// Complete marks the task done right away and in Taskwarrior.
func (c *Coordinator) Complete(ctx context.Context, uuid string) (*Mutation, error) {
	return c.setEnd(ctx, domain.MutationComplete, uuid, true)
}

// Restore brings a completed task back to pending.
func (c *Coordinator) Restore(ctx context.Context, uuid string) (*Mutation, error) {
	return c.setEnd(ctx, domain.MutationRestore, uuid, false)
}

func (c *Coordinator) setEnd(ctx context.Context, kind domain.MutationKind, uuid string, done bool) (*Mutation, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return c.run(ctx, plan{
		kind:     kind,
		taskUUID: uuid,
		existing: true,
		apply: func(tasks []domain.Task) ([]domain.Task, *domain.Task, error) {
			i, err := locate(tasks, uuid)
			if err != nil {
				return nil, nil, err
			}
			if done {
				now := c.clock.Now()
				tasks[i].End = &now
			} else {
				tasks[i].End = nil
			}
			predicted := tasks[i].Clone()
			return tasks, &predicted, nil
		},
		dispatch: func(ctx context.Context) (*domain.Task, error) {
			if done {
				return nil, c.repo.Complete(ctx, uuid)
			}
			return nil, c.repo.Restore(ctx, uuid)
		},
	})
}

// Sync runs a Taskwarrior sync and then refetches every collection.
func (c *Coordinator) Sync(ctx context.Context) (*Mutation, error) {
	return c.run(ctx, plan{
		kind: domain.MutationSync,
		dispatch: func(ctx context.Context) (*domain.Task, error) {
			return nil, c.repo.Sync(ctx)
		},
		refetchAll: true,
	})
}

// Preview scores a draft task with the current settings without touching the cache.
func (c *Coordinator) Preview(t domain.Task) (domain.Task, urgency.Breakdown) {
	settings := c.settings.Current()
	now := c.clock.Now()
	if t.Entry == nil {
		t.Entry = &now
	}
	b := urgency.Explain(t, settings.UrgencyCoefficients, settings.UrgencyAgeMax, now)
	t.Urgency = b.Total()
	return t, b
}

func locate(tasks []domain.Task, uuid string) (int, error) {
	if strings.HasPrefix(uuid, domain.TempUUIDPrefix) {
		return -1, domain.ErrTaskUnconfirmed
	}
	i := findTask(tasks, uuid)
	if uuid == "" || i < 0 {
		return -1, domain.ErrMissingOriginal
	}
	return i, nil
}

func replaceByUUID(tasks []domain.Task, updated *domain.Task) []domain.Task {
	if i := findTask(tasks, updated.UUID); i >= 0 {
		tasks[i] = updated.Clone()
	}
	return tasks
}
