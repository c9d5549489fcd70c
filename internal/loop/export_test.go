package loop

import (
	"context"
	"time"
)

// WithSleepForTest replaces the delay suspension so tests can observe it.
func WithSleepForTest(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		r.sleep = fn
	}
}

// SleepContextForTest exposes the default suspension for testing purposes.
var SleepContextForTest = sleepContext
