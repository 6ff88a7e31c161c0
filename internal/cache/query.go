// Package cache holds client-side copies of authoritative query results.
//
// A Query is mutated only through Set, Update and Restore (optimistic writes and
// rollbacks) or by its own fetch (authoritative refresh). Every write bumps a
// generation counter; a fetch that started under an older generation is discarded
// when it returns, so a stale refresh can never clobber a newer optimistic write.
package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fastygo/taskwarlock/pkg/clock"
)

// ErrSuperseded is returned by a fetch whose result was discarded because the
// query was written or cancelled while it was in flight.
var ErrSuperseded = errors.New("cache: fetch superseded by a newer write")

// FetchFunc loads the authoritative value of a query.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Option configures a Query.
type Option func(*options)

type options struct {
	ttl   time.Duration
	clock clock.Clock
}

// WithTTL sets how long a fetched value stays fresh. Zero means until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithClock injects the time source used for freshness.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// Snapshot is an immutable copy of a query's state used for rollback.
type Snapshot[T any] struct {
	data      T
	clone     func(T) T
	loaded    bool
	stale     bool
	updatedAt time.Time
}

// Data returns a copy of the snapshotted value.
func (s Snapshot[T]) Data() T {
	if s.clone == nil {
		return s.data
	}
	return s.clone(s.data)
}

// State describes a query for diagnostics.
type State struct {
	Key       string    `json:"key"`
	Loaded    bool      `json:"loaded"`
	Stale     bool      `json:"stale"`
	Holds     int       `json:"holds"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Query caches one collection.
type Query[T any] struct {
	key   string
	fetch FetchFunc[T]
	clone func(T) T
	opts  options
	group singleflight.Group

	mu        sync.Mutex
	data      T
	loaded    bool
	stale     bool
	updatedAt time.Time
	gen       uint64
	version   uint64
	holds     int
	inflight  map[uint64]context.CancelFunc
	nextCall  uint64
}

// NewQuery creates a query. clone must deep-copy values so that callers never share memory with the cache.
func NewQuery[T any](key string, fetch FetchFunc[T], clone func(T) T, opts ...Option) *Query[T] {
	o := options{clock: clock.System()}
	for _, opt := range opts {
		opt(&o)
	}
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Query[T]{
		key:      key,
		fetch:    fetch,
		clone:    clone,
		opts:     o,
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// Key returns the query name.
func (q *Query[T]) Key() string { return q.key }

// Get returns the cached value, fetching it first when missing or stale and no
// optimistic write is being held. On fetch failure the cached value is returned
// unchanged together with the error.
func (q *Query[T]) Get(ctx context.Context) (T, error) {
	q.mu.Lock()
	fresh := q.loaded && (q.holds > 0 || q.isFreshLocked())
	if fresh {
		v := q.clone(q.data)
		q.mu.Unlock()
		return v, nil
	}
	q.mu.Unlock()

	// A write may supersede the fetch before anything was ever loaded; try once more then.
	for attempt := 0; attempt < 2; attempt++ {
		err := q.Refetch(ctx)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrSuperseded) {
			v, _ := q.Peek()
			return v, err
		}
		if _, loaded := q.Peek(); loaded {
			break
		}
	}
	v, _ := q.Peek()
	return v, nil
}

// Peek returns the cached value without fetching.
func (q *Query[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clone(q.data), q.loaded
}

// Refetch loads the authoritative value and stores it unless superseded.
// Concurrent refetches of the same generation share one fetch.
func (q *Query[T]) Refetch(ctx context.Context) error {
	q.mu.Lock()
	gen := q.gen
	q.mu.Unlock()

	ch := q.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return nil, q.fetchGeneration(ctx, gen)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Query[T]) fetchGeneration(parent context.Context, gen uint64) error {
	// The shared fetch must outlive the first caller's cancellation but not Cancel().
	base := context.WithoutCancel(parent)
	var (
		fetchCtx context.Context
		cancel   context.CancelFunc
	)
	if deadline, ok := parent.Deadline(); ok {
		fetchCtx, cancel = context.WithDeadline(base, deadline)
	} else {
		fetchCtx, cancel = context.WithCancel(base)
	}

	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		cancel()
		return ErrSuperseded
	}
	id := q.nextCall
	q.nextCall++
	q.inflight[id] = cancel
	q.mu.Unlock()

	v, err := q.fetch(fetchCtx)

	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, id)
	cancel()

	if gen != q.gen {
		return ErrSuperseded
	}
	if err != nil {
		return err
	}
	q.data = q.clone(v)
	q.loaded = true
	q.stale = false
	q.updatedAt = q.opts.clock.Now()
	q.version++
	return nil
}

// Cancel aborts in-flight fetches and makes sure their results are discarded.
func (q *Query[T]) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelLocked()
}

// Invalidate marks the value stale so the next Get refetches it.
func (q *Query[T]) Invalidate() {
	q.mu.Lock()
	q.stale = true
	q.mu.Unlock()
}

// Snapshot captures the current state for a later Restore.
func (q *Query[T]) Snapshot() Snapshot[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Snapshot[T]{
		data:      q.clone(q.data),
		clone:     q.clone,
		loaded:    q.loaded,
		stale:     q.stale,
		updatedAt: q.updatedAt,
	}
}

// Restore puts a snapshot back exactly, cancelling any in-flight fetch.
func (q *Query[T]) Restore(s Snapshot[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelLocked()
	q.data = q.clone(s.data)
	q.loaded = s.loaded
	q.stale = s.stale
	q.updatedAt = s.updatedAt
	q.version++
}

// Set replaces the cached value, cancelling any in-flight fetch.
func (q *Query[T]) Set(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelLocked()
	q.data = q.clone(v)
	q.loaded = true
	q.updatedAt = q.opts.clock.Now()
	q.version++
}

// Update applies fn to a copy of the cached value and stores the result.
func (q *Query[T]) Update(fn func(T) T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelLocked()
	q.data = fn(q.clone(q.data))
	q.loaded = true
	q.updatedAt = q.opts.clock.Now()
	q.version++
}

// Version counts writes to the cached value, fetched or local. Two equal
// readings mean nothing was written in between.
func (q *Query[T]) Version() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.version
}

// Hold keeps Get from refetching over optimistic data until the returned release is called.
func (q *Query[T]) Hold() (release func()) {
	q.mu.Lock()
	q.holds++
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			q.holds--
			q.mu.Unlock()
		})
	}
}

// State reports the query's bookkeeping.
func (q *Query[T]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return State{
		Key:       q.key,
		Loaded:    q.loaded,
		Stale:     q.stale || !q.isFreshLocked(),
		Holds:     q.holds,
		UpdatedAt: q.updatedAt,
	}
}

func (q *Query[T]) isFreshLocked() bool {
	if !q.loaded || q.stale {
		return false
	}
	if q.opts.ttl <= 0 {
		return true
	}
	return q.opts.clock.Now().Sub(q.updatedAt) < q.opts.ttl
}

func (q *Query[T]) cancelLocked() {
	q.gen++
	for id, cancel := range q.inflight {
		cancel()
		delete(q.inflight, id)
	}
}
