package loop

import (
	"context"
	"fmt"
)

// Task is the unit of work executed once per iteration.
// It reports success with its boolean result; a non-nil error marks the
// iteration as failed regardless of the boolean.
type Task interface {
	Run(ctx context.Context, args ...any) (bool, error)
}

// TaskFunc adapts an ordinary function to the Task interface.
type TaskFunc func(ctx context.Context, args ...any) (bool, error)

// Run calls f(ctx, args...).
func (f TaskFunc) Run(ctx context.Context, args ...any) (bool, error) {
	return f(ctx, args...)
}

// ErrorHandler receives errors returned (or panics raised) by a Task.
type ErrorHandler func(err error)

// PanicError wraps a value recovered from a panicking task or error handler.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the recovered value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// invoke runs the task and converts a panic into a *PanicError.
func invoke(ctx context.Context, t Task, args []any) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &PanicError{Value: r}
		}
	}()
	return t.Run(ctx, args...)
}

// handle forwards err to h. A panicking handler is recovered and returned.
func handle(h ErrorHandler, err error) (perr error) {
	defer func() {
		if r := recover(); r != nil {
			perr = &PanicError{Value: r}
		}
	}()
	h(err)
	return nil
}
