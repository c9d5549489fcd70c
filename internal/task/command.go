// Package task provides loop tasks backed by external programs.
package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// DefaultStallAfter is how long a command may stay silent before a warning.
const DefaultStallAfter = 30 * time.Second

// waitDelay bounds how long Run waits for output after the program is
// killed, in case something outside its process group holds the pipes.
const waitDelay = 2 * time.Second

// ErrNoProgram is returned when a Command is run without arguments.
var ErrNoProgram = errors.New("task: no program to run")

// Command runs an external program once per iteration. The first run
// argument names the program and the rest are passed to it.
type Command struct {
	Dir        string        // working directory (default: current)
	Env        []string      // extra environment, appended to the inherited one
	Output     io.Writer     // receives combined stdout and stderr (nil discards)
	Markers    Markers       // optional output markers deciding success
	StallAfter time.Duration // silence before warning (0 disables)
	Logger     *zap.Logger   // nil uses a no-op logger
}

// Run executes the program and reports whether it succeeded.
//
// A program that starts and exits is judged by ParseResult, so a non-zero
// exit is a failure rather than an error. Errors are returned when the
// program cannot be started or the context is cancelled.
func (c *Command) Run(ctx context.Context, args ...any) (bool, error) {
	if len(args) == 0 {
		return false, ErrNoProgram
	}
	argv := make([]string, len(args))
	for i, a := range args {
		argv[i] = fmt.Sprint(a)
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("program", argv[0]))

	w := newWatcher(c.Output, logger, c.StallAfter, !c.Markers.empty())
	defer w.Close()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.WaitDelay = waitDelay
	killGroupOnCancel(cmd)

	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	exitCode := 0
	err := cmd.Wait()
	w.Flush()
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return false, fmt.Errorf("%s failed: %w", argv[0], err)
		}
		exitCode = exitErr.ExitCode()
	}

	res := ParseResult(w.Output(), exitCode, c.Markers)
	if !res.Success {
		logger.Info("Command reported failure.", zap.String("reason", res.Reason), zap.Int("exit_code", exitCode))
	}
	return res.Success, nil
}
