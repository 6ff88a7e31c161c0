package task

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/cache"
	appLogger "github.com/fastygo/taskwarlock/pkg/logger"
)

// Mutation is the handle of one optimistic write. Predicted is the record as
// shown immediately; Wait blocks until Taskwarrior confirms or rejects it.
type Mutation struct {
	ID        string
	Kind      domain.MutationKind
	Predicted *domain.Task
	CreatedAt time.Time

	done chan struct{}

	mu        sync.Mutex
	taskUUID  string
	tempUUID  string
	state     domain.MutationState
	settledAt *time.Time
	result    *domain.Task
	err       error
}

func newMutation(kind domain.MutationKind, taskUUID string, predicted *domain.Task, now time.Time) *Mutation {
	m := &Mutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		CreatedAt: now,
		done:      make(chan struct{}),
		taskUUID:  taskUUID,
		state:     domain.MutationApplied,
	}
	if predicted != nil {
		p := predicted.Clone()
		m.Predicted = &p
		if p.IsTemporary() {
			m.tempUUID = p.UUID
			m.taskUUID = ""
		}
	}
	return m
}

// Done is closed once the mutation has settled and been journaled.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Wait returns the authoritative record (nil for complete, restore and sync
// when nothing could be looked up) or the external failure that rolled the
// mutation back.
func (m *Mutation) Wait(ctx context.Context) (*domain.Task, error) {
	select {
	case <-m.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result == nil {
		return nil, m.err
	}
	out := m.result.Clone()
	return &out, m.err
}

// Record snapshots the mutation for the journal and the API.
func (m *Mutation) Record() domain.MutationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := domain.MutationRecord{
		ID:        m.ID,
		Kind:      m.Kind,
		TaskUUID:  m.taskUUID,
		TempUUID:  m.tempUUID,
		State:     m.state,
		CreatedAt: m.CreatedAt,
		SettledAt: m.settledAt,
	}
	if m.Predicted != nil {
		u := m.Predicted.Urgency
		rec.PredictedUrgency = &u
	}
	if m.err != nil {
		rec.Error = m.err.Error()
	}
	return rec
}

func (m *Mutation) settle(result *domain.Task, err error, now time.Time) {
	m.mu.Lock()
	if err != nil {
		m.state = domain.MutationRolledBack
	} else {
		m.state = domain.MutationConfirmed
		if result != nil {
			m.taskUUID = result.UUID
		}
	}
	m.result = result
	m.err = err
	m.settledAt = &now
	m.mu.Unlock()
}

// plan describes one mutation. apply and confirm run under the coordinator
// lock; dispatch runs in its own goroutine.
type plan struct {
	kind     domain.MutationKind
	taskUUID string
	// existing marks plans whose taskUUID must already be in the cache.
	existing bool

	// apply returns the predicted collection and record. A nil apply skips the
	// optimistic write entirely.
	apply func(tasks []domain.Task) ([]domain.Task, *domain.Task, error)
	// dispatch performs the external call.
	dispatch func(ctx context.Context) (*domain.Task, error)
	// confirm folds the authoritative record into the cache before the refetch.
	confirm func(tasks []domain.Task, result *domain.Task) []domain.Task
	// refetchAll also refetches tags and projects on success.
	refetchAll bool
}

func (c *Coordinator) run(ctx context.Context, p plan) (*Mutation, error) {
	c.mu.Lock()
	var (
		rb        rollback
		predicted *domain.Task
		release   = func() {}
	)
	if p.apply != nil {
		if p.existing {
			// Reject before Cancel so a bad target leaves a running refresh alone.
			current, _ := c.tasks.Peek()
			if _, err := locate(current, p.taskUUID); err != nil {
				c.mu.Unlock()
				return nil, err
			}
		}
		// Cancel first: a refresh landing between snapshot and write would be lost.
		c.tasks.Cancel()
		rb.snap = c.tasks.Snapshot()
		next, pred, err := p.apply(rb.snap.Data())
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		c.tasks.Set(next)
		rb.version = c.tasks.Version()
		if pred != nil {
			rb.undo = revertRecord(rb.snap.Data(), pred.UUID)
		}
		release = c.tasks.Hold()
		predicted = pred
	}

	m := newMutation(p.kind, p.taskUUID, predicted, c.clock.Now())
	c.inflight[m.ID] = m
	c.wg.Add(1)
	c.mu.Unlock()

	log := c.mutationLogger(ctx, m)
	log.Debug("mutation applied optimistically")
	c.record(ctx, m)

	go c.dispatch(ctx, m, p, rb, release)
	return m, nil
}

// rollback is what a failed mutation needs to take its optimistic write back.
type rollback struct {
	snap    cache.Snapshot[[]domain.Task]
	version uint64
	undo    func(tasks []domain.Task) []domain.Task
}

// revert takes the optimistic write back. The snapshot is exact only while
// nothing else has written; after that it would also undo newer writes, so
// only this mutation's record is put back.
func (c *Coordinator) revert(rb rollback) {
	if c.tasks.Version() == rb.version || rb.undo == nil {
		c.tasks.Restore(rb.snap)
	} else {
		c.tasks.Update(rb.undo)
	}
	// The next read reconciles with Taskwarrior in case the call failed after
	// taking effect.
	c.tasks.Invalidate()
}

// revertRecord returns an undo that puts uuid's record from before back in
// place, or drops it when it did not exist yet.
func revertRecord(before []domain.Task, uuid string) func([]domain.Task) []domain.Task {
	if i := findTask(before, uuid); i >= 0 {
		original := before[i].Clone()
		return func(tasks []domain.Task) []domain.Task {
			if j := findTask(tasks, uuid); j >= 0 {
				tasks[j] = original.Clone()
			}
			return tasks
		}
	}
	return func(tasks []domain.Task) []domain.Task {
		if j := findTask(tasks, uuid); j >= 0 {
			return slices.Delete(tasks, j, j+1)
		}
		return tasks
	}
}

func (c *Coordinator) dispatch(parent context.Context, m *Mutation, p plan, rb rollback, release func()) {
	defer c.wg.Done()

	// Once sent the external call is not cancellable; only the timeout bounds it.
	ctx := appLogger.ContextWithMutationID(context.WithoutCancel(parent), m.ID)
	ctx, cancel := context.WithTimeout(ctx, c.dispatchTimeout)
	defer cancel()
	log := c.mutationLogger(ctx, m)

	result, err := p.dispatch(ctx)
	if err != nil {
		c.mu.Lock()
		if p.apply != nil {
			c.revert(rb)
		}
		delete(c.inflight, m.ID)
		c.mu.Unlock()
		release()

		m.settle(nil, err, c.clock.Now())
		log.Warn("mutation rolled back", zap.Error(err))
		c.record(ctx, m)
		close(m.done)
		return
	}

	c.mu.Lock()
	if p.confirm != nil && result != nil {
		c.tasks.Update(func(tasks []domain.Task) []domain.Task {
			return p.confirm(tasks, result)
		})
	}
	delete(c.inflight, m.ID)
	c.mu.Unlock()
	release()

	if p.kind != domain.MutationSync && c.settings.Current().AutoSync {
		if err := c.repo.Sync(ctx); err != nil {
			log.Warn("auto-sync failed", zap.Error(err))
		}
	}

	c.Invalidate()
	if err := c.tasks.Refetch(ctx); err != nil && !errors.Is(err, cache.ErrSuperseded) {
		log.Warn("refetch after mutation failed", zap.Error(err))
	}
	if p.refetchAll {
		for _, q := range []*cache.Query[[]string]{c.tags, c.projects} {
			if err := q.Refetch(ctx); err != nil && !errors.Is(err, cache.ErrSuperseded) {
				log.Warn("refetch after mutation failed", zap.String("query", q.Key()), zap.Error(err))
			}
		}
	}

	final := result
	if ref := resolvedUUID(p, result); ref != "" {
		if tasks, loaded := c.tasks.Peek(); loaded {
			if i := findTask(tasks, ref); i >= 0 {
				final = &tasks[i]
			}
		}
	}

	m.settle(final, nil, c.clock.Now())
	log.Info("mutation confirmed")
	c.record(ctx, m)
	close(m.done)
}

func resolvedUUID(p plan, result *domain.Task) string {
	if result != nil {
		return result.UUID
	}
	if strings.HasPrefix(p.taskUUID, domain.TempUUIDPrefix) {
		return ""
	}
	return p.taskUUID
}

// record journals the mutation state. Journal failures never fail a mutation.
func (c *Coordinator) record(ctx context.Context, m *Mutation) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(context.WithoutCancel(ctx), m.Record()); err != nil {
		c.logger.Warn("failed to journal mutation", zap.String("mutation_id", m.ID), zap.Error(err))
	}
}

func (c *Coordinator) mutationLogger(ctx context.Context, m *Mutation) *zap.Logger {
	fields := []zap.Field{zap.String("kind", string(m.Kind))}
	rec := m.Record()
	if rec.TaskUUID != "" {
		fields = append(fields, zap.String("uuid", rec.TaskUUID))
	} else if rec.TempUUID != "" {
		fields = append(fields, zap.String("uuid", rec.TempUUID))
	}
	if rec.PredictedUrgency != nil {
		fields = append(fields, zap.Float64("predicted_urgency", *rec.PredictedUrgency))
	}
	ctx = appLogger.ContextWithMutationID(ctx, m.ID)
	return appLogger.WithRequestID(ctx, c.logger).With(fields...)
}

func tempUUID(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", domain.TempUUIDPrefix, now.UnixMilli(), uuid.NewString()[:8])
}
