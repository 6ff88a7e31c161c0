package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskwarlock/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func record(id string, created time.Time, state domain.MutationState) domain.MutationRecord {
	return domain.MutationRecord{
		ID:        id,
		Kind:      domain.MutationEdit,
		TaskUUID:  "task-" + id,
		State:     state,
		CreatedAt: created,
	}
}

func TestStore_PutGetOverwrite(t *testing.T) {
	store := openStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(record("m1", base, domain.MutationApplied)))

	settled := base.Add(time.Second)
	updated := record("m1", base, domain.MutationRolledBack)
	updated.Error = "exit code 1"
	updated.SettledAt = &settled
	require.NoError(t, store.Put(updated))

	got, err := store.Get("m1")
	require.NoError(t, err)
	assert.Equal(t, domain.MutationRolledBack, got.State)
	assert.Equal(t, "exit code 1", got.Error)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size, "updates overwrite instead of appending")
}

func TestStore_GetMissing(t *testing.T) {
	store := openStore(t)
	_, err := store.Get("nope")
	assert.ErrorIs(t, err, domain.ErrMutationNotFound)
}

func TestStore_PutRequiresID(t *testing.T) {
	store := openStore(t)
	assert.ErrorIs(t, store.Put(domain.MutationRecord{}), domain.ErrInvalidPayload)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := openStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Put(record(id, base.Add(time.Duration(i)*time.Minute), domain.MutationConfirmed)))
	}

	all, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	limited, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_CleanupKeepsRecentAndUnsettled(t *testing.T) {
	store := openStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(record("old-settled", base, domain.MutationConfirmed)))
	require.NoError(t, store.Put(record("old-pending", base.Add(time.Minute), domain.MutationApplied)))
	require.NoError(t, store.Put(record("old-rolled", base.Add(2*time.Minute), domain.MutationRolledBack)))
	require.NoError(t, store.Put(record("new", base.Add(48*time.Hour), domain.MutationConfirmed)))

	removed, err := store.Cleanup(base.Add(24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Get("old-settled")
	assert.ErrorIs(t, err, domain.ErrMutationNotFound)
	_, err = store.Get("old-pending")
	assert.NoError(t, err)
	_, err = store.Get("new")
	assert.NoError(t, err)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestStore_NilSafe(t *testing.T) {
	var store *Store
	_, err := store.Size()
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
