// Package loop runs a task repeatedly with a randomized pause between
// iterations.
//
// # Basic Usage
//
//	cfg := loop.DefaultConfig()
//	cfg.Task = loop.TaskFunc(func(ctx context.Context, args ...any) (bool, error) {
//		return doWork(ctx, args...)
//	})
//	cfg.Budget = 10
//	r, err := loop.New(cfg, loop.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	err = r.Run(ctx, "some", "args")
//
// # Iteration Budget
//
// A positive budget runs exactly that many iterations. A negative budget
// runs until the context is cancelled. [ResolveBudget] maps the loopCount,
// runOnce and runForever options onto a single budget, in that order of
// precedence.
//
// # Delay
//
// The pause after each iteration is computed by [Delay] as
// uniform(0, MinDelay) + (MaxDelay - MinDelay). No pause follows the final
// iteration of a bounded run.
//
// # Failures
//
// A task returning false is a soft failure. A task returning an error or
// panicking is logged and passed to the optional [ErrorHandler]. Neither
// stops the loop, and Run never returns them.
package loop
