// Package saga runs a short sequence of steps where each completed step may
// register an undo action. When a later step fails the completed steps are
// compensated in reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"
)

// Step is one unit of a saga. Compensate may be nil when the step has
// nothing to undo.
type Step struct {
	Name       string
	Do         func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepError reports which step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// CompensationError is returned when a step failed and at least one undo
// action also failed. Err is the original failure.
type CompensationError struct {
	Err          error
	Compensation map[string]error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("%v (compensation failed for %d step(s))", e.Err, len(e.Compensation))
}

func (e *CompensationError) Unwrap() error { return e.Err }

// CompensationFailed reports whether err carries failed undo actions and
// returns them keyed by step name.
func CompensationFailed(err error) (map[string]error, bool) {
	var ce *CompensationError
	if errors.As(err, &ce) {
		return ce.Compensation, true
	}
	return nil, false
}

// Run executes steps in order. The returned error wraps the failing step's
// error so callers can still match it with errors.Is.
func Run(ctx context.Context, steps ...Step) error {
	done := make([]Step, 0, len(steps))
	for _, step := range steps {
		if err := step.Do(ctx); err != nil {
			failure := &StepError{Step: step.Name, Err: err}
			if undoErrs := compensate(ctx, done); len(undoErrs) > 0 {
				return &CompensationError{Err: failure, Compensation: undoErrs}
			}
			return failure
		}
		done = append(done, step)
	}
	return nil
}

func compensate(ctx context.Context, done []Step) map[string]error {
	var failed map[string]error
	// compensation must run even if the request context was cancelled
	undoCtx := context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(undoCtx); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[step.Name] = err
		}
	}
	return failed
}
