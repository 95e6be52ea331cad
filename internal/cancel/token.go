// Package cancel provides cooperative cancellation primitives shared
// between task submitters and running work. A Token is checked at stage
// boundaries and before external calls; it composes with context.Context
// through its Done channel.
package cancel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/recapd/recapd/internal/recaperr"
)

// Token is a cooperative cancellation handle. The zero value is not usable;
// create tokens with NewToken. Cancel is idempotent and callbacks registered
// after cancellation fire synchronously.
type Token struct {
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
	callbacks []func()
	logger    *slog.Logger
}

// NewToken creates a new, uncancelled Token.
func NewToken() *Token {
	return &Token{
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
}

// WithLogger sets the logger used to report callback panics.
func (t *Token) WithLogger(logger *slog.Logger) *Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger = logger
	return t
}

// IsCancelled reports whether the token has been cancelled.
func (t *Token) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Cancel trips the token and fires registered callbacks in registration
// order. Subsequent calls are no-ops.
func (t *Token) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	close(t.done)
	callbacks := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	for _, cb := range callbacks {
		t.invoke(cb)
	}
}

// OnCancel registers a callback to run when the token is cancelled.
// If the token is already cancelled the callback runs synchronously before
// OnCancel returns. Callback panics are recovered and logged; they never
// prevent other callbacks from running.
func (t *Token) OnCancel(cb func()) {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		t.invoke(cb)
		return
	}
	t.callbacks = append(t.callbacks, cb)
	t.mu.Unlock()
}

// Done returns a channel closed when the token is cancelled. It can be
// selected on alongside ctx.Done().
func (t *Token) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Check returns ErrCancelled if the token has been cancelled.
func (t *Token) Check() error {
	if t.IsCancelled() {
		return recaperr.ErrCancelled
	}
	return nil
}

// Wait blocks until the token is cancelled or the context ends. It returns
// true if the token was cancelled.
func (t *Token) Wait(ctx context.Context) bool {
	select {
	case <-t.Done():
		return true
	case <-ctx.Done():
		return t.IsCancelled()
	}
}

// WaitTimeout blocks up to d for cancellation. It returns true if the token
// was cancelled within the timeout.
func (t *Token) WaitTimeout(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.Done():
		return true
	case <-timer.C:
		return false
	}
}

// Reset returns the token to its uncancelled state. Registered callbacks
// from the previous cycle are discarded.
func (t *Token) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		t.done = make(chan struct{})
		t.cancelled = false
	}
	t.callbacks = nil
}

// Context derives a context that is cancelled when either the parent or the
// token is cancelled. The returned cancel function releases the watcher
// goroutine and must be called when the context is no longer needed.
func (t *Token) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancelCtx := context.WithCancel(parent)
	go func() {
		select {
		case <-t.Done():
			cancelCtx()
		case <-ctx.Done():
		}
	}()
	return ctx, cancelCtx
}

func (t *Token) invoke(cb func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("cancellation callback panicked", slog.Any("panic", r))
		}
	}()
	cb()
}
