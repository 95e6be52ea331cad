package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/recapd/recapd/internal/cancel"
	"github.com/recapd/recapd/internal/models"
	"github.com/recapd/recapd/internal/recaperr"
	"github.com/recapd/recapd/internal/shutdown"
)

// ProgressFunc receives executor progress ticks. It is invoked on the
// executor's goroutine; callers needing a different goroutine must marshal.
type ProgressFunc func(stepIndex, totalSteps int, stepName, message string)

// StepFunc is a bound step implementation. The token is forwarded to every
// blocking capability call so cancellation interrupts subprocesses and HTTP.
type StepFunc func(ctx context.Context, token *cancel.Token, settings map[string]any) (models.StageResult, error)

// BoundStep pairs a declarative step with its implementation.
type BoundStep struct {
	models.WorkflowStep
	Run StepFunc
}

// Executor walks bound steps sequentially. Cancellation and interruption are
// checked at every stage boundary and propagate unwrapped; any other step
// failure is wrapped with the step name and aborts the walk.
type Executor struct {
	shutdown *shutdown.Manager
	logger   *slog.Logger
}

// NewExecutor creates an Executor. The shutdown manager is optional.
func NewExecutor(sm *shutdown.Manager, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{shutdown: sm, logger: logger}
}

// Run executes steps in order, storing each result in the returned map under
// its step name. The map also carries the results of steps completed before
// a failure.
func (e *Executor) Run(ctx context.Context, token *cancel.Token, steps []BoundStep, progress ProgressFunc) (map[string]models.StageResult, error) {
	results := make(map[string]models.StageResult, len(steps))
	total := len(steps)

	for i, step := range steps {
		if err := e.checkBoundary(ctx, token); err != nil {
			return results, err
		}

		if progress != nil {
			progress(i+1, total, step.Name, fmt.Sprintf("Executing %s...", step.Name))
		}
		e.logger.Debug("executing workflow step",
			slog.String("step", step.Name),
			slog.Int("index", i+1),
			slog.Int("total", total))

		result, err := step.Run(ctx, token, step.Settings)
		if err != nil {
			if recaperr.IsCancellation(err) {
				return results, err
			}
			return results, recaperr.NewStageError(step.Name, err)
		}
		results[step.Name] = result
	}

	if progress != nil {
		progress(total, total, "complete", "Workflow completed successfully")
	}
	return results, nil
}

func (e *Executor) checkBoundary(ctx context.Context, token *cancel.Token) error {
	if token != nil {
		if err := token.Check(); err != nil {
			return err
		}
	}
	if e.shutdown != nil {
		if err := e.shutdown.Check(); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return recaperr.ErrCancelled
	}
	return nil
}
