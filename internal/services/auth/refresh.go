package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// refreshTask is the running background check
type refreshTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startRefreshTimer replaces any running task with a fresh one.
// It does nothing once the manager is closed.
func (m *Manager) startRefreshTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	if m.closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &refreshTask{cancel: cancel, done: make(chan struct{})}
	m.task = task
	go m.refreshLoop(ctx, task.done)
}

// stopRefreshTimer cancels the running task without waiting for it, since
// the task itself may be the caller (refresh failure logs out).
func (m *Manager) stopRefreshTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	if m.task != nil {
		m.task.cancel()
		m.task = nil
	}
}

// Close stops the refresh task and waits for it to exit. Sessions started
// after Close are not refreshed in the background.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	task := m.task
	m.task = nil
	m.mu.Unlock()

	if task != nil {
		task.cancel()
		<-task.done
	}
}

// RefreshRunning reports whether the background check is scheduled
func (m *Manager) RefreshRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.task != nil
}

func (m *Manager) refreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A refresh in flight finishes even if the task is stopped,
			// otherwise a restart would be mistaken for a refresh failure.
			m.checkRefresh(context.WithoutCancel(ctx))
		}
	}
}

func (m *Manager) checkRefresh(ctx context.Context) {
	if !m.IsAuthenticated(ctx) || !m.NeedsRefresh(ctx) {
		return
	}
	m.logger.Info("token needs refresh, refreshing")
	if _, err := m.RefreshAccessToken(ctx); err != nil {
		m.logger.Warn("background refresh ended the session", zap.Error(err))
	}
}
