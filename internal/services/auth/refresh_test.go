package auth

import (
	"context"
	"testing"
	"time"

	"github.com/findosh/agriconnect/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTask_RefreshesNearExpiry(t *testing.T) {
	clock := newFakeClock()
	backend := &countingRefresh{SimulatedBackend: newBackend(t, clock)}
	m := NewManager(storage.NewMemory(), backend, Options{
		Now:           clock.Now,
		CheckInterval: 5 * time.Millisecond,
	})
	defer m.Close()
	ctx := context.Background()

	demoLogin(t, m)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, backend.calls.Load(), "fresh token must not be refreshed")

	clock.Advance(56 * time.Minute)
	require.Eventually(t, func() bool {
		return backend.calls.Load() > 0 && !m.NeedsRefresh(ctx)
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, m.IsAuthenticated(ctx))
}

func TestRefreshTask_FailureEndsSession(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemory()
	m := NewManager(store, failingRefresh{newBackend(t, clock)}, Options{
		Now:           clock.Now,
		CheckInterval: 5 * time.Millisecond,
	})
	defer m.Close()
	ctx := context.Background()

	demoLogin(t, m)
	clock.Advance(time.Hour)

	require.Eventually(t, func() bool {
		return !m.IsAuthenticated(ctx) && !m.RefreshRunning()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, store.Len())
}

func TestRefreshTask_IdleWithoutSession(t *testing.T) {
	clock := newFakeClock()
	backend := &countingRefresh{SimulatedBackend: newBackend(t, clock)}
	m := NewManager(storage.NewMemory(), backend, Options{
		Now:           clock.Now,
		CheckInterval: 5 * time.Millisecond,
	})
	defer m.Close()

	assert.True(t, m.RefreshRunning(), "started on construction")
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, backend.calls.Load())
}

func TestRefreshTask_RestartOnLogin(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(storage.NewMemory(), newBackend(t, clock), Options{Now: clock.Now})

	demoLogin(t, m)
	m.Logout(context.Background())
	assert.False(t, m.RefreshRunning())

	demoLogin(t, m)
	assert.True(t, m.RefreshRunning())

	m.Close()
	assert.False(t, m.RefreshRunning())
	m.Close()
}

func TestRefreshTask_NotRestartedAfterClose(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(storage.NewMemory(), newBackend(t, clock), Options{Now: clock.Now})
	m.Close()

	demoLogin(t, m)
	assert.True(t, m.IsAuthenticated(context.Background()))
	assert.False(t, m.RefreshRunning())
}
