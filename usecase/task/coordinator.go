// Package task coordinates the cached task collections with the authoritative
// Taskwarrior store: optimistic mutations, rollback and reconciliation.
package task

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/cache"
	"github.com/fastygo/taskwarlock/pkg/clock"
	"github.com/fastygo/taskwarlock/repository"
	"github.com/fastygo/taskwarlock/usecase"
)

// Options tunes a Coordinator. Zero values pick defaults.
type Options struct {
	// CacheTTL bounds how long fetched collections are served without a refetch.
	CacheTTL time.Duration
	// DispatchTimeout bounds each external mutation call.
	DispatchTimeout time.Duration
	Clock           clock.Clock
}

// Coordinator owns the task, tag and project caches. Every cache write goes
// through it; external calls and refetches run outside its lock.
type Coordinator struct {
	repo            repository.TaskRepository
	settings        usecase.SettingsProvider
	journal         usecase.MutationJournal
	clock           clock.Clock
	logger          *zap.Logger
	dispatchTimeout time.Duration

	tasks    *cache.Query[[]domain.Task]
	tags     *cache.Query[[]string]
	projects *cache.Query[[]string]

	mu       sync.Mutex
	inflight map[string]*Mutation
	wg       sync.WaitGroup
}

// New wires a coordinator. settings and journal may be nil.
func New(
	repo repository.TaskRepository,
	settings usecase.SettingsProvider,
	journal usecase.MutationJournal,
	logger *zap.Logger,
	opts Options,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings == nil {
		settings = defaultSettings{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 30 * time.Second
	}

	cacheOpts := []cache.Option{cache.WithTTL(opts.CacheTTL), cache.WithClock(opts.Clock)}
	cloneStrings := func(v []string) []string { return slices.Clone(v) }

	return &Coordinator{
		repo:            repo,
		settings:        settings,
		journal:         journal,
		clock:           opts.Clock,
		logger:          logger,
		dispatchTimeout: opts.DispatchTimeout,
		tasks:           cache.NewQuery("tasks", repo.All, domain.CloneTasks, cacheOpts...),
		tags:            cache.NewQuery("tags", repo.Tags, cloneStrings, cacheOpts...),
		projects:        cache.NewQuery("projects", repo.Projects, cloneStrings, cacheOpts...),
		inflight:        make(map[string]*Mutation),
	}
}

type defaultSettings struct{}

func (defaultSettings) Current() domain.Settings { return domain.DefaultSettings() }

// Tasks returns the cached task collection, fetching it when needed. When a
// fetch fails but an older copy is cached, the older copy is served.
func (c *Coordinator) Tasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := c.tasks.Get(ctx)
	if err != nil {
		if _, loaded := c.tasks.Peek(); loaded {
			c.logger.Warn("serving cached tasks after failed refresh", zap.Error(err))
			return tasks, nil
		}
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// Tags returns the cached tag list.
func (c *Coordinator) Tags(ctx context.Context) ([]string, error) {
	return getStrings(ctx, c.tags, c.logger)
}

// Projects returns the cached project list.
func (c *Coordinator) Projects(ctx context.Context) ([]string, error) {
	return getStrings(ctx, c.projects, c.logger)
}

func getStrings(ctx context.Context, q *cache.Query[[]string], logger *zap.Logger) ([]string, error) {
	v, err := q.Get(ctx)
	if err != nil {
		if _, loaded := q.Peek(); loaded {
			logger.Warn("serving cached collection after failed refresh", zap.String("query", q.Key()), zap.Error(err))
			return v, nil
		}
		return nil, err
	}
	if v == nil {
		v = []string{}
	}
	return v, nil
}

// Invalidate marks every collection stale.
func (c *Coordinator) Invalidate() {
	c.tasks.Invalidate()
	c.tags.Invalidate()
	c.projects.Invalidate()
}

// Reload invalidates every collection and refetches tasks right away.
func (c *Coordinator) Reload(ctx context.Context) error {
	c.Invalidate()
	if err := c.tasks.Refetch(ctx); err != nil && !errors.Is(err, cache.ErrSuperseded) {
		return err
	}
	return nil
}

// Refresh refetches all collections from Taskwarrior. The task collection is
// skipped while optimistic mutations are pending so predictions stay visible
// until their own confirmation reconciles them.
func (c *Coordinator) Refresh(ctx context.Context) error {
	var errs []error
	if c.Pending() == 0 {
		if err := c.tasks.Refetch(ctx); err != nil && !errors.Is(err, cache.ErrSuperseded) {
			errs = append(errs, err)
		}
	}
	for _, q := range []*cache.Query[[]string]{c.tags, c.projects} {
		if err := q.Refetch(ctx); err != nil && !errors.Is(err, cache.ErrSuperseded) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending reports how many mutations await the external store.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// CacheStates describes the cached collections.
func (c *Coordinator) CacheStates() []cache.State {
	return []cache.State{c.tasks.State(), c.tags.State(), c.projects.State()}
}

// Mutation returns the record of a mutation, live or journaled.
func (c *Coordinator) Mutation(ctx context.Context, id string) (domain.MutationRecord, error) {
	c.mu.Lock()
	m, ok := c.inflight[id]
	c.mu.Unlock()
	if ok {
		return m.Record(), nil
	}
	if c.journal == nil {
		return domain.MutationRecord{}, domain.ErrMutationNotFound
	}
	return c.journal.Get(ctx, id)
}

// Mutations lists recent mutations, newest first. Without a journal only the
// pending ones are known.
func (c *Coordinator) Mutations(ctx context.Context, limit int) ([]domain.MutationRecord, error) {
	if c.journal != nil {
		return c.journal.List(ctx, limit)
	}
	c.mu.Lock()
	records := make([]domain.MutationRecord, 0, len(c.inflight))
	for _, m := range c.inflight {
		records = append(records, m.Record())
	}
	c.mu.Unlock()
	slices.SortFunc(records, func(a, b domain.MutationRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Shutdown waits for dispatched mutations to settle.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) ensureLoaded(ctx context.Context) error {
	if _, loaded := c.tasks.Peek(); loaded {
		return nil
	}
	_, err := c.Tasks(ctx)
	return err
}

func findTask(tasks []domain.Task, uuid string) int {
	return slices.IndexFunc(tasks, func(t domain.Task) bool { return t.UUID == uuid })
}
