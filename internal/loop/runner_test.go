package loop_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eraldohasanaj/lazyloop/internal/loop"
	"github.com/eraldohasanaj/lazyloop/internal/loop/mocks"
)

// fixedRand always yields the same value.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

// sleepRecorder records requested delays instead of suspending.
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func newConfig(task loop.Task, budget int) loop.Config {
	cfg := loop.DefaultConfig()
	cfg.Task = task
	cfg.Budget = budget
	return cfg
}

func TestRunnerRunsBudgetAndSkipsFinalDelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	task := mocks.NewMockTask(ctrl)
	task.EXPECT().Run(gomock.Any()).Return(true, nil).Times(3)

	logger, logs := newObservedLogger()
	sleeps := &sleepRecorder{}
	cfg := newConfig(task, 3)
	cfg.MinDelay = 2 * time.Second
	cfg.MaxDelay = 5 * time.Second

	r, err := loop.New(cfg,
		loop.WithLogger(logger),
		loop.WithRand(fixedRand(0.5)),
		loop.WithSleepForTest(sleeps.sleep),
	)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 3, logs.FilterMessageSnippet("Done in ").Len())
	sleeping := logs.FilterMessageSnippet("Sleeping for ").All()
	require.Len(t, sleeping, 2)
	assert.Equal(t, "Sleeping for 4.00s...", sleeping[0].Message)
	assert.Equal(t, []time.Duration{4 * time.Second, 4 * time.Second}, sleeps.delays)
}

func TestRunnerContainsTaskError(t *testing.T) {
	ctrl := gomock.NewController(t)
	task := mocks.NewMockTask(ctrl)
	boom := errors.New("boom")
	gomock.InOrder(
		task.EXPECT().Run(gomock.Any()).Return(true, boom),
		task.EXPECT().Run(gomock.Any()).Return(true, nil),
	)

	var handled []error
	logger, logs := newObservedLogger()
	cfg := newConfig(task, 2)
	cfg.ErrorHandler = func(err error) { handled = append(handled, err) }

	r, err := loop.New(cfg,
		loop.WithLogger(logger),
		loop.WithSleepForTest((&sleepRecorder{}).sleep),
	)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))

	require.Len(t, handled, 1)
	assert.ErrorIs(t, handled[0], boom)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Done in ").Len())
	errLogs := logs.FilterMessage("An error occurred while running the task.").All()
	require.Len(t, errLogs, 1)
	assert.Equal(t, zapcore.ErrorLevel, errLogs[0].Level)
}

func TestRunnerSoftFailureLogsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	task := mocks.NewMockTask(ctrl)
	task.EXPECT().Run(gomock.Any()).Return(false, nil).Times(3)

	logger, logs := newObservedLogger()
	sleeps := &sleepRecorder{}
	r, err := loop.New(newConfig(task, 3),
		loop.WithLogger(logger),
		loop.WithSleepForTest(sleeps.sleep),
	)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))

	assert.Zero(t, logs.FilterMessageSnippet("Done in ").Len())
	assert.Zero(t, logs.FilterMessageSnippet("Sleeping for ").Len())
	assert.Len(t, sleeps.delays, 2)
}

func TestRunnerRecoversTaskPanic(t *testing.T) {
	var handled error
	cfg := newConfig(loop.TaskFunc(func(context.Context, ...any) (bool, error) {
		panic("kaboom")
	}), 1)
	cfg.ErrorHandler = func(err error) { handled = err }

	r, err := loop.New(cfg)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	var perr *loop.PanicError
	require.ErrorAs(t, handled, &perr)
	assert.Equal(t, "kaboom", perr.Value)
}

func TestRunnerContainsErrorHandlerPanic(t *testing.T) {
	var calls int
	cfg := newConfig(loop.TaskFunc(func(context.Context, ...any) (bool, error) {
		calls++
		return false, errors.New("task failed")
	}), 2)
	cfg.ErrorHandler = func(error) { panic("handler failed") }

	logger, logs := newObservedLogger()
	r, err := loop.New(cfg,
		loop.WithLogger(logger),
		loop.WithSleepForTest((&sleepRecorder{}).sleep),
	)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, logs.FilterMessage("Error handler panicked.").Len())
}

func TestRunnerUnboundedRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	task := loop.TaskFunc(func(context.Context, ...any) (bool, error) {
		calls++
		if calls == 50 {
			cancel()
		}
		return true, nil
	})

	var remaining []int
	obs := loop.ObserverFunc(func(_ context.Context, it loop.Iteration) {
		remaining = append(remaining, it.Remaining)
	})

	logger, logs := newObservedLogger()
	sleeps := &sleepRecorder{}
	r, err := loop.New(newConfig(task, loop.Unbounded),
		loop.WithLogger(logger),
		loop.WithObserver(obs),
		loop.WithSleepForTest(sleeps.sleep),
	)
	require.NoError(t, err)

	err = r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 50, calls)
	assert.Len(t, sleeps.delays, 50)
	for _, rem := range remaining {
		assert.Equal(t, loop.Unbounded, rem)
	}
	assert.Equal(t, 50, logs.FilterMessageSnippet("Done in ").Len())
	assert.Zero(t, logs.FilterMessageSnippet("Sleeping for ").Len())
}

func TestRunnerNegativeBudgetIsNeverDecremented(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []int
	obs := loop.ObserverFunc(func(_ context.Context, it loop.Iteration) {
		seen = append(seen, it.Remaining)
		if it.Number == 3 {
			cancel()
		}
	})

	r, err := loop.New(newConfig(loop.TaskFunc(func(context.Context, ...any) (bool, error) {
		return true, nil
	}), -7), loop.WithObserver(obs), loop.WithSleepForTest((&sleepRecorder{}).sleep))
	require.NoError(t, err)

	require.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.Equal(t, []int{-7, -7, -7}, seen)
}

func TestRunnerZeroDelayDoesNotSuspend(t *testing.T) {
	var calls int32
	cfg := newConfig(loop.TaskFunc(func(context.Context, ...any) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	}), 5)
	cfg.MinDelay = 0
	cfg.MaxDelay = 0

	var delays []time.Duration
	obs := loop.ObserverFunc(func(_ context.Context, it loop.Iteration) {
		delays = append(delays, it.Delay)
	})

	r, err := loop.New(cfg, loop.WithObserver(obs))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, r.Run(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 5, atomic.LoadInt32(&calls))
	for _, d := range delays {
		assert.Zero(t, d)
	}
}

func TestRunnerZeroBudgetRunsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	task := mocks.NewMockTask(ctrl)
	task.EXPECT().Run(gomock.Any()).Return(true, nil).Times(1)

	sleeps := &sleepRecorder{}
	r, err := loop.New(newConfig(task, 0), loop.WithSleepForTest(sleeps.sleep))
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	assert.Empty(t, sleeps.delays)
}

func TestRunnerForwardsArgs(t *testing.T) {
	ctrl := gomock.NewController(t)
	task := mocks.NewMockTask(ctrl)
	task.EXPECT().Run(gomock.Any(), "deploy", 42).Return(true, nil).Times(2)

	r, err := loop.New(newConfig(task, 2), loop.WithSleepForTest((&sleepRecorder{}).sleep))
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background(), "deploy", 42))
}

func TestRunnerStateDoesNotSurviveRuns(t *testing.T) {
	var calls int
	var runIDs []string
	obs := loop.ObserverFunc(func(_ context.Context, it loop.Iteration) {
		if it.Number == 1 {
			runIDs = append(runIDs, it.RunID)
		}
	})
	r, err := loop.New(newConfig(loop.TaskFunc(func(context.Context, ...any) (bool, error) {
		calls++
		return true, nil
	}), 2), loop.WithObserver(obs), loop.WithSleepForTest((&sleepRecorder{}).sleep))
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 4, calls)
	require.Len(t, runIDs, 2)
	assert.NotEqual(t, runIDs[0], runIDs[1])
}

func TestRunnerReportsIterations(t *testing.T) {
	boom := errors.New("boom")
	results := []struct {
		ok  bool
		err error
	}{{true, nil}, {false, nil}, {false, boom}}

	var n int
	task := loop.TaskFunc(func(context.Context, ...any) (bool, error) {
		res := results[n]
		n++
		return res.ok, res.err
	})

	var got []loop.Iteration
	obs := loop.ObserverFunc(func(_ context.Context, it loop.Iteration) {
		got = append(got, it)
	})

	r, err := loop.New(newConfig(task, 3), loop.WithObserver(obs), loop.WithSleepForTest((&sleepRecorder{}).sleep))
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, got, 3)
	assert.True(t, got[0].Success)
	assert.False(t, got[1].Success)
	assert.NoError(t, got[1].Err)
	assert.ErrorIs(t, got[2].Err, boom)
	assert.Equal(t, []int{2, 1, 0}, []int{got[0].Remaining, got[1].Remaining, got[2].Remaining})
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Number, got[1].Number, got[2].Number})
}

func TestRunnerCancelInterruptsDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := newConfig(loop.TaskFunc(func(context.Context, ...any) (bool, error) {
		return true, nil
	}), loop.Unbounded)
	cfg.MinDelay = 0
	cfg.MaxDelay = time.Hour

	obs := loop.ObserverFunc(func(context.Context, loop.Iteration) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
	})

	r, err := loop.New(cfg, loop.WithObserver(obs))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunnerCancelDuringTaskIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	cfg := newConfig(loop.TaskFunc(func(ctx context.Context, _ ...any) (bool, error) {
		calls++
		cancel()
		return false, ctx.Err()
	}), 3)
	cfg.ErrorHandler = func(err error) { t.Errorf("unexpected error handler call: %v", err) }

	logger, logs := newObservedLogger()
	var got []loop.Iteration
	r, err := loop.New(cfg,
		loop.WithLogger(logger),
		loop.WithSleepForTest((&sleepRecorder{}).sleep),
		loop.WithObserver(loop.ObserverFunc(func(_ context.Context, it loop.Iteration) {
			got = append(got, it)
		})),
	)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("Task interrupted.").Len())
	require.Len(t, got, 1)
	assert.False(t, got[0].Success)
	assert.ErrorIs(t, got[0].Err, context.Canceled)
}

func TestRunnerCancelledBeforeStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	task := mocks.NewMockTask(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := loop.New(newConfig(task, 3))
	require.NoError(t, err)
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
}

func TestRunnerTracesIterations(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var n int
	task := loop.TaskFunc(func(context.Context, ...any) (bool, error) {
		n++
		if n == 1 {
			return false, errors.New("first attempt failed")
		}
		return true, nil
	})

	r, err := loop.New(newConfig(task, 2),
		loop.WithTracer(tp.Tracer("test")),
		loop.WithSleepForTest((&sleepRecorder{}).sleep),
	)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "lazyloop.iteration", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.NotEqual(t, codes.Error, spans[1].Status().Code)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := loop.New(loop.DefaultConfig())
	assert.ErrorIs(t, err, loop.ErrNoTask)

	cfg := newConfig(loop.TaskFunc(func(context.Context, ...any) (bool, error) { return true, nil }), 1)
	cfg.MinDelay = -time.Second
	_, err = loop.New(cfg)
	assert.ErrorIs(t, err, loop.ErrNegativeDelay)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, loop.SleepContextForTest(context.Background(), 0))
	require.NoError(t, loop.SleepContextForTest(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, loop.SleepContextForTest(ctx, time.Hour), context.Canceled)
}
