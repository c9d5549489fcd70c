package loop

import (
	"errors"
	"fmt"
	"time"
)

// Unbounded is the budget value that makes the loop run until cancelled.
// Any budget below zero behaves the same way.
const Unbounded = -1

const (
	DefaultMinDelay = 3 * time.Second
	DefaultMaxDelay = 5 * time.Second
)

var (
	// ErrNoTask is returned when a Config has no Task.
	ErrNoTask = errors.New("loop: task is required")
	// ErrNegativeDelay is returned when either delay bound is below zero.
	ErrNegativeDelay = errors.New("loop: delay bounds must not be negative")
)

// Config holds the resolved, immutable configuration of a Runner
type Config struct {
	Task         Task          // Work performed every iteration (required)
	ErrorHandler ErrorHandler  // Called with task errors (optional)
	MinDelay     time.Duration // Width of the random delay window (default: 3s)
	MaxDelay     time.Duration // Upper bound of the delay window (default: 5s)
	Budget       int           // Iterations to run, negative for unbounded (default: -1)
}

// DefaultConfig returns a Config with sensible defaults and no task
func DefaultConfig() Config {
	return Config{
		MinDelay: DefaultMinDelay,
		MaxDelay: DefaultMaxDelay,
		Budget:   Unbounded,
	}
}

// Validate reports configuration errors before anything runs.
func (c Config) Validate() error {
	if c.Task == nil {
		return ErrNoTask
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("%w: min=%s max=%s", ErrNegativeDelay, c.MinDelay, c.MaxDelay)
	}
	return nil
}

// Options is the raw construction interface. Nil pointer fields are treated
// as absent and fall back to DefaultConfig.
type Options struct {
	Task         Task
	ErrorHandler ErrorHandler
	SleepMin     *time.Duration
	SleepMax     *time.Duration
	LoopCount    *int
	RunOnce      *bool
	RunForever   *bool
}

// Config merges o over DefaultConfig and validates the result.
func (o Options) Config() (Config, error) {
	cfg := DefaultConfig()
	cfg.Task = o.Task
	cfg.ErrorHandler = o.ErrorHandler
	if o.SleepMin != nil {
		cfg.MinDelay = *o.SleepMin
	}
	if o.SleepMax != nil {
		cfg.MaxDelay = *o.SleepMax
	}
	cfg.Budget = ResolveBudget(o.LoopCount, o.RunOnce, o.RunForever)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveBudget collapses the three budget options into one iteration budget.
// Only the first present option in the order loopCount, runOnce, runForever
// is honored; with none present the budget is Unbounded.
func ResolveBudget(loopCount *int, runOnce, runForever *bool) int {
	switch {
	case loopCount != nil:
		return *loopCount
	case runOnce != nil:
		if *runOnce {
			return 1
		}
		return Unbounded
	case runForever != nil:
		if *runForever {
			return Unbounded
		}
		return 1
	default:
		return Unbounded
	}
}
