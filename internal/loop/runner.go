package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Runner repeatedly invokes a Task, pausing a randomized delay between
// iterations, until its budget is exhausted or the context is cancelled.
type Runner struct {
	cfg      Config
	logger   *zap.Logger
	rand     RandSource
	observer Observer
	tracer   trace.Tracer
	sleep    func(ctx context.Context, d time.Duration) error
}

// runState is owned by a single Run call and discarded when it returns.
type runState struct {
	id        string
	remaining int
	args      []any
}

// New creates a Runner after validating cfg
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:      cfg,
		logger:   zap.NewNop(),
		rand:     globalRand{},
		observer: nopObserver{},
		tracer:   noop.NewTracerProvider().Tracer("lazyloop"),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the configuration the Runner was built with.
func (r *Runner) Config() Config {
	return r.cfg
}

// Run executes the loop, forwarding args to the task on every iteration.
//
// Task failures never escape: Run returns nil once the budget is exhausted
// and ctx.Err() if the context is cancelled first. An unbounded budget
// only ends through cancellation.
func (r *Runner) Run(ctx context.Context, args ...any) error {
	st := &runState{
		id:        ulid.Make().String(),
		remaining: r.cfg.Budget,
		args:      args,
	}
	log := r.logger.With(zap.String("run_id", st.id))
	log.Debug("Loop started",
		zap.Int("budget", st.remaining),
		zap.Duration("min_delay", r.cfg.MinDelay),
		zap.Duration("max_delay", r.cfg.MaxDelay))

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			log.Debug("Loop cancelled", zap.Int("iterations", n-1), zap.Error(err))
			return err
		}

		delay, done := r.iterate(ctx, log, st, n)
		if done {
			log.Debug("Loop finished", zap.Int("iterations", n))
			return nil
		}

		if err := r.sleep(ctx, delay); err != nil {
			log.Debug("Loop cancelled", zap.Int("iterations", n), zap.Error(err))
			return err
		}
	}
}

// iterate runs one task invocation and its bookkeeping. It returns the
// computed delay and whether the budget is now exhausted.
func (r *Runner) iterate(ctx context.Context, log *zap.Logger, st *runState, n int) (time.Duration, bool) {
	ctx, span := r.tracer.Start(ctx, "lazyloop.iteration", trace.WithAttributes(
		attribute.String("lazyloop.run_id", st.id),
		attribute.Int("lazyloop.iteration", n),
	))
	defer span.End()

	log = log.With(zap.Int("iteration", n))

	start := time.Now()
	ok, err := invoke(ctx, r.cfg.Task, st.args)
	if err != nil {
		ok = false
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
			// Stopping the loop is not a task failure.
			log.Debug("Task interrupted.", zap.Error(err))
		} else {
			log.Error("An error occurred while running the task.", zap.Error(err))
			if r.cfg.ErrorHandler != nil {
				if herr := handle(r.cfg.ErrorHandler, err); herr != nil {
					log.Error("Error handler panicked.", zap.Error(herr))
				}
			}
		}
	}

	delay := Delay(r.cfg.MinDelay, r.cfg.MaxDelay, r.rand)

	if st.remaining > 0 {
		st.remaining--
	}

	elapsed := time.Since(start)
	if ok {
		log.Info(fmt.Sprintf("Done in %.2fs.", elapsed.Seconds()))
		if st.remaining > 0 {
			log.Info(fmt.Sprintf("Sleeping for %.2fs...", delay.Seconds()))
		}
	}

	span.SetAttributes(
		attribute.Bool("lazyloop.success", ok),
		attribute.Int("lazyloop.remaining", st.remaining),
		attribute.Int64("lazyloop.delay_ms", delay.Milliseconds()),
	)

	r.observer.IterationDone(ctx, Iteration{
		RunID:     st.id,
		Number:    n,
		Success:   ok,
		Err:       err,
		Elapsed:   elapsed,
		Delay:     delay,
		Remaining: st.remaining,
	})

	return delay, st.remaining == 0
}

// sleepContext pauses for d or until ctx is done. Non-positive durations
// return immediately.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
