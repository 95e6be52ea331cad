// Package shutdown coordinates process teardown: a shutdown-requested latch
// set by signal handlers, LIFO cleanup handlers, and tracked temporary paths
// removed once at exit.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/recapd/recapd/internal/recaperr"
)

type handler struct {
	id int
	fn func()
}

// Manager owns the shutdown latch and the cleanup chain. Signal handlers
// only set the latch; cleanup runs exactly once from the exit path so a
// handler never reenters locks held by an interrupted goroutine.
type Manager struct {
	mu        sync.Mutex
	requested bool
	handlers  []handler
	nextID    int
	tempPaths map[string]struct{}

	cleanupOnce sync.Once
	logger      *slog.Logger
}

// NewManager creates a Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		tempPaths: make(map[string]struct{}),
		logger:    logger,
	}
}

// IsRequested reports whether shutdown has been requested.
func (m *Manager) IsRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requested
}

// Request sets the shutdown latch.
func (m *Manager) Request() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requested = true
}

// Reset clears the latch. Intended for tests and for callers reusing the
// manager across runs.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requested = false
}

// Check returns ErrInterrupted if shutdown has been requested.
func (m *Manager) Check() error {
	if m.IsRequested() {
		return recaperr.ErrInterrupted
	}
	return nil
}

// RegisterHandler appends a cleanup handler and returns a function that
// unregisters it. Handlers run in reverse registration order.
func (m *Manager) RegisterHandler(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.handlers = append(m.handlers, handler{id: id, fn: fn})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, h := range m.handlers {
			if h.id == id {
				m.handlers = append(m.handlers[:i], m.handlers[i+1:]...)
				return
			}
		}
	}
}

// RegisterTempPath tracks a file or directory for removal during cleanup.
func (m *Manager) RegisterTempPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tempPaths[path] = struct{}{}
}

// UnregisterTempPath stops tracking a path.
func (m *Manager) UnregisterTempPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tempPaths, path)
}

// Listen installs SIGINT/SIGTERM notification. The signal path only sets
// the latch and cancels the returned context; callers run RunCleanup from
// their exit path. Listen returns a stop function releasing the signal
// registration.
func (m *Manager) Listen(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-ch:
			m.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
			m.Request()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}

// RunCleanup executes the cleanup chain exactly once: handlers in reverse
// registration order with panics contained, then tracked temp paths removed
// (files unlinked, directories recursively). Safe to call from multiple
// exit paths.
func (m *Manager) RunCleanup() {
	m.cleanupOnce.Do(func() {
		m.mu.Lock()
		handlers := make([]handler, len(m.handlers))
		copy(handlers, m.handlers)
		paths := make([]string, 0, len(m.tempPaths))
		for p := range m.tempPaths {
			paths = append(paths, p)
		}
		m.mu.Unlock()

		for i := len(handlers) - 1; i >= 0; i-- {
			m.runHandler(handlers[i].fn)
		}

		for _, path := range paths {
			m.removeTempPath(path)
		}
	})
}

func (m *Manager) runHandler(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("cleanup handler panicked", slog.Any("panic", r))
		}
	}()
	fn()
}

func (m *Manager) removeTempPath(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("temp path stat failed", slog.String("path", path), slog.Any("error", err))
		}
		return
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		m.logger.Warn("temp path removal failed", slog.String("path", path), slog.Any("error", err))
		return
	}
	m.logger.Debug("temp path removed", slog.String("path", path))
}

// GracefulOperation logs entry into a non-interruptible section and returns
// a function ending it. Used around short critical writes that should finish
// even when shutdown has been requested.
func (m *Manager) GracefulOperation(label string) func() {
	m.logger.Debug("graceful operation started", slog.String("operation", label))
	return func() {
		m.logger.Debug("graceful operation finished", slog.String("operation", label))
	}
}
