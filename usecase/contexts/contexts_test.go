package contexts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskwarlock/domain"
)

type fakeContexts struct {
	defined []string
	current string
	setErr  error
}

func (f *fakeContexts) Contexts(context.Context) ([]string, error) { return f.defined, nil }

func (f *fakeContexts) CurrentContext(context.Context) (string, error) { return f.current, nil }

func (f *fakeContexts) SetContext(_ context.Context, name string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.current = name
	return nil
}

type reloadCounter struct{ n int }

func (r *reloadCounter) Reload(context.Context) error {
	r.n++
	return nil
}

func TestSwitch_AppliesAndReloads(t *testing.T) {
	repo := &fakeContexts{defined: []string{"home", "work"}}
	reloads := &reloadCounter{}
	uc := New(repo, reloads, nil)

	got, err := uc.Switch(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, Overview{Available: []string{"home", "work"}, Current: "work"}, got)
	assert.Equal(t, 1, reloads.n)

	got, err = uc.Switch(context.Background(), "none")
	require.NoError(t, err)
	assert.Empty(t, got.Current)
	assert.Equal(t, 2, reloads.n)
}

func TestSwitch_UnknownContext(t *testing.T) {
	reloads := &reloadCounter{}
	uc := New(&fakeContexts{defined: []string{"home"}}, reloads, nil)

	_, err := uc.Switch(context.Background(), "gym")
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	assert.Zero(t, reloads.n)
}

func TestSwitch_FailureDoesNotReload(t *testing.T) {
	reloads := &reloadCounter{}
	uc := New(&fakeContexts{defined: []string{"home"}, setErr: errors.New("locked")}, reloads, nil)

	_, err := uc.Switch(context.Background(), "home")
	assert.Error(t, err)
	assert.Zero(t, reloads.n)
}
