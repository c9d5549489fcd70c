package loop

import (
	"context"
	"time"
)

// Iteration describes the outcome of a single task invocation.
type Iteration struct {
	RunID     string
	Number    int           // 1-based within the run
	Success   bool
	Err       error         // non-nil when the task returned an error or panicked
	Elapsed   time.Duration // time spent in the task
	Delay     time.Duration // computed delay, reported even when not slept
	Remaining int           // budget left after bookkeeping
}

// Observer is notified after every iteration's bookkeeping.
type Observer interface {
	IterationDone(ctx context.Context, it Iteration)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, it Iteration)

func (f ObserverFunc) IterationDone(ctx context.Context, it Iteration) { f(ctx, it) }

type multiObserver []Observer

func (m multiObserver) IterationDone(ctx context.Context, it Iteration) {
	for _, o := range m {
		o.IterationDone(ctx, it)
	}
}

// Observers fans out notifications to every non-nil observer.
func Observers(obs ...Observer) Observer {
	m := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

type nopObserver struct{}

func (nopObserver) IterationDone(context.Context, Iteration) {}
