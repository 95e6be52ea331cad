// Package workerpool provides a bounded pool of workers executing named
// tasks with per-task cancellation tokens, result futures, and lifecycle
// callbacks. Scheduling is FIFO; there are no priorities.
package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/recapd/recapd/internal/cancel"
	"github.com/recapd/recapd/internal/recaperr"
)

// TaskStatus is the lifecycle state of a managed task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// TaskFunc is the unit of work. Implementations must honor the token for
// responsive cancellation; ctx is cancelled when the token trips or the
// pool shuts down.
type TaskFunc func(ctx context.Context, token *cancel.Token) (any, error)

// TaskResult is the outcome of a finished task.
type TaskResult struct {
	ID      string
	Name    string
	Status  TaskStatus
	Value   any
	Err     error
	Started time.Time
	Ended   time.Time
}

// Elapsed returns the task run time.
func (r TaskResult) Elapsed() time.Duration {
	if r.Started.IsZero() || r.Ended.IsZero() {
		return 0
	}
	return r.Ended.Sub(r.Started)
}

type managedTask struct {
	id         string
	name       string
	fn         TaskFunc
	token      *cancel.Token
	onComplete func(TaskResult)

	mu      sync.Mutex
	status  TaskStatus
	value   any
	err     error
	started time.Time
	ended   time.Time
	done    chan struct{}
}

func (t *managedTask) snapshot() TaskResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TaskResult{
		ID:      t.id,
		Name:    t.name,
		Status:  t.status,
		Value:   t.value,
		Err:     t.err,
		Started: t.started,
		Ended:   t.ended,
	}
}

// SubmitOption configures a submission.
type SubmitOption func(*managedTask)

// WithTaskID overrides the generated task id.
func WithTaskID(id string) SubmitOption {
	return func(t *managedTask) { t.id = id }
}

// WithToken attaches a caller-owned cancellation token.
func WithToken(token *cancel.Token) SubmitOption {
	return func(t *managedTask) { t.token = token }
}

// WithOnComplete registers a callback fired once when the task reaches a
// terminal state. Callback panics are contained.
func WithOnComplete(fn func(TaskResult)) SubmitOption {
	return func(t *managedTask) { t.onComplete = fn }
}

// Pool runs tasks on a fixed number of workers.
type Pool struct {
	logger *slog.Logger
	tasks  *cancel.SafeMap[string, *managedTask]
	queue  chan *managedTask

	mu     sync.Mutex
	closed bool

	workers sync.WaitGroup

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewPool creates a pool with the given number of workers and starts them.
// size <= 0 falls back to 4.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancelBase := context.WithCancel(context.Background())
	p := &Pool{
		logger:     logger,
		tasks:      cancel.NewSafeMap[string, *managedTask](),
		queue:      make(chan *managedTask, size*16),
		baseCtx:    ctx,
		cancelBase: cancelBase,
	}

	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(n int) {
	defer p.workers.Done()
	for task := range p.queue {
		p.run(task)
	}
	p.logger.Debug("worker stopped", slog.Int("worker", n))
}

func (p *Pool) run(task *managedTask) {
	if task.token.IsCancelled() {
		p.finalize(task, TaskCancelled, nil, recaperr.ErrCancelled)
		return
	}

	task.mu.Lock()
	task.status = TaskRunning
	task.started = time.Now()
	task.mu.Unlock()

	ctx, cancelCtx := task.token.Context(p.baseCtx)
	defer cancelCtx()

	value, err := p.invoke(ctx, task)
	switch {
	case err == nil:
		p.finalize(task, TaskCompleted, value, nil)
	case recaperr.IsCancellation(err):
		p.finalize(task, TaskCancelled, nil, err)
	default:
		p.finalize(task, TaskFailed, nil, err)
	}
}

func (p *Pool) invoke(ctx context.Context, task *managedTask) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				slog.String("task_id", task.id),
				slog.String("task", task.name),
				slog.Any("panic", r))
			err = fmt.Errorf("task %s panicked: %v", task.name, r)
		}
	}()
	return task.fn(ctx, task.token)
}

func (p *Pool) finalize(task *managedTask, status TaskStatus, value any, err error) {
	task.mu.Lock()
	task.status = status
	task.value = value
	task.err = err
	task.ended = time.Now()
	task.mu.Unlock()
	close(task.done)

	if task.onComplete != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("on-complete callback panicked",
						slog.String("task_id", task.id), slog.Any("panic", r))
				}
			}()
			task.onComplete(task.snapshot())
		}()
	}
}

// Submit enqueues a task and returns its id. Returns ErrPoolClosed after
// Shutdown.
func (p *Pool) Submit(name string, fn TaskFunc, opts ...SubmitOption) (string, error) {
	task := &managedTask{
		name:   name,
		fn:     fn,
		status: TaskPending,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(task)
	}
	if task.id == "" {
		task.id = ulid.Make().String()
	}
	if task.token == nil {
		task.token = cancel.NewToken()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", recaperr.ErrPoolClosed
	}
	p.tasks.Set(task.id, task)
	select {
	case p.queue <- task:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		p.tasks.Delete(task.id)
		return "", fmt.Errorf("task queue full")
	}

	p.logger.Debug("task submitted", slog.String("task_id", task.id), slog.String("task", name))
	return task.id, nil
}

// Cancel trips the token of the given task. Reports whether the task exists
// and was not already terminal.
func (p *Pool) Cancel(id string) bool {
	task, ok := p.tasks.Get(id)
	if !ok {
		return false
	}
	task.mu.Lock()
	terminal := task.status.Terminal()
	task.mu.Unlock()
	if terminal {
		return false
	}
	task.token.Cancel()
	return true
}

// CancelAll cancels every non-terminal task and returns the count.
func (p *Pool) CancelAll() int {
	n := 0
	for _, id := range p.tasks.Keys() {
		if p.Cancel(id) {
			n++
		}
	}
	return n
}

// Status returns the current status of a task.
func (p *Pool) Status(id string) (TaskStatus, bool) {
	task, ok := p.tasks.Get(id)
	if !ok {
		return "", false
	}
	task.mu.Lock()
	defer task.mu.Unlock()
	return task.status, true
}

// Result blocks until the task finishes or ctx is done.
func (p *Pool) Result(ctx context.Context, id string) (TaskResult, error) {
	task, ok := p.tasks.Get(id)
	if !ok {
		return TaskResult{}, fmt.Errorf("unknown task: %s", id)
	}
	select {
	case <-task.done:
		return task.snapshot(), nil
	case <-ctx.Done():
		return TaskResult{}, ctx.Err()
	}
}

// WaitAll blocks until every known task finishes or ctx is done, returning
// the results gathered so far keyed by task id.
func (p *Pool) WaitAll(ctx context.Context) map[string]TaskResult {
	results := make(map[string]TaskResult)
	for _, id := range p.tasks.Keys() {
		res, err := p.Result(ctx, id)
		if err != nil {
			break
		}
		results[id] = res
	}
	return results
}

// CleanupCompleted drops terminal tasks from the registry and returns the
// number removed.
func (p *Pool) CleanupCompleted() int {
	n := 0
	for _, id := range p.tasks.Keys() {
		task, ok := p.tasks.Get(id)
		if !ok {
			continue
		}
		task.mu.Lock()
		terminal := task.status.Terminal()
		task.mu.Unlock()
		if terminal {
			p.tasks.Delete(id)
			n++
		}
	}
	return n
}

// Shutdown stops accepting work and waits for in-flight tasks to finish or
// ctx to expire. Queued tasks still run; on ctx expiry their contexts are
// cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancelBase()
		return nil
	case <-ctx.Done():
		p.cancelBase()
		return ctx.Err()
	}
}
