package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/infrastructure/journal"
)

type countingTarget struct {
	calls int
	err   error
}

func (c *countingTarget) Refresh(context.Context) error {
	c.calls++
	return c.err
}

type staticHealth bool

func (s staticHealth) IsOnline() bool { return bool(s) }

type recordingPruner struct {
	cutoff time.Time
}

func (p *recordingPruner) Cleanup(olderThan time.Time) (int, error) {
	p.cutoff = olderThan
	return 3, nil
}

func TestRefresher_SkipsWhenOffline(t *testing.T) {
	target := &countingTarget{}
	r, err := NewRefresher(target, staticHealth(false), nil, nil, RefresherConfig{})
	require.NoError(t, err)

	require.NoError(t, r.Refresh(context.Background()))
	assert.Zero(t, target.calls)
}

func TestRefresher_PropagatesRefreshError(t *testing.T) {
	boom := errors.New("boom")
	target := &countingTarget{err: boom}
	r, err := NewRefresher(target, staticHealth(true), nil, nil, RefresherConfig{})
	require.NoError(t, err)

	assert.ErrorIs(t, r.Refresh(context.Background()), boom)
	assert.Equal(t, 1, target.calls)
}

func TestRefresher_PruneUsesRetention(t *testing.T) {
	pruner := &recordingPruner{}
	r, err := NewRefresher(&countingTarget{}, nil, pruner, nil, RefresherConfig{Retention: 48 * time.Hour})
	require.NoError(t, err)
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	removed, err := r.Prune()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, now.Add(-48*time.Hour), pruner.cutoff)
}

func TestRefresher_StartStop(t *testing.T) {
	r, err := NewRefresher(&countingTarget{}, nil, nil, nil, RefresherConfig{Interval: time.Hour})
	require.NoError(t, err)
	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}

func TestJournalBridge_RoundTrip(t *testing.T) {
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer store.Close()
	bridge := NewJournalBridge(store, nil)
	ctx := context.Background()

	rec := domain.MutationRecord{ID: "m1", Kind: domain.MutationSync, State: domain.MutationApplied, CreatedAt: time.Now()}
	require.NoError(t, bridge.Record(ctx, rec))

	got, err := bridge.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.MutationSync, got.Kind)

	list, err := bridge.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestJournalBridge_WrapsStoreErrors(t *testing.T) {
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = NewJournalBridge(store, nil).Record(context.Background(), domain.MutationRecord{ID: "m1"})
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInternal))
}
