package loop

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option configures optional collaborators of a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for iteration output.
// A nil logger leaves the no-op default in place.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRand sets the random source feeding Delay.
func WithRand(src RandSource) Option {
	return func(r *Runner) {
		if src != nil {
			r.rand = src
		}
	}
}

// WithObserver registers an observer for iteration outcomes.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithTracer sets the tracer used to open one span per iteration.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}
