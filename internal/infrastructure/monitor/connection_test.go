package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixedSize struct {
	n   int
	err error
}

func (f fixedSize) Size() (int, error) { return f.n, f.err }

type fixedState string

func (f fixedState) State() string { return string(f) }

func TestMonitor_CheckOnline(t *testing.T) {
	m := New(func(context.Context) (string, error) { return "3.1.0", nil }, fixedSize{n: 4}, fixedState("closed"), time.Minute, nil)

	assert.False(t, m.IsOnline(), "offline until the first check")
	status := m.Check(context.Background())

	assert.True(t, m.IsOnline())
	assert.Equal(t, "3.1.0", status.Version)
	assert.Equal(t, "closed", status.Breaker)
	assert.True(t, status.Journal)
	assert.Equal(t, 4, status.JournalSize)
	assert.Equal(t, status, m.GetStatus())
}

func TestMonitor_CheckOffline(t *testing.T) {
	m := New(func(context.Context) (string, error) { return "", errors.New("no binary") }, fixedSize{err: errors.New("closed")}, nil, 0, nil)

	status := m.Check(context.Background())
	assert.False(t, status.Taskwarrior)
	assert.False(t, status.Journal)
	assert.Empty(t, status.Breaker)
	assert.False(t, m.IsOnline())
}

func TestMonitor_StartStop(t *testing.T) {
	checked := make(chan struct{}, 1)
	m := New(func(context.Context) (string, error) {
		select {
		case checked <- struct{}{}:
		default:
		}
		return "3.0.2", nil
	}, nil, nil, time.Hour, nil)

	m.Start()
	select {
	case <-checked:
	case <-time.After(time.Second):
		t.Fatal("initial check did not run")
	}
	m.Stop()
	m.Stop()
}
