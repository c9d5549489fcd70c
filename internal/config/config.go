// Package config loads lazyloop settings from a file, the environment and
// command-line flags.
package config

import (
	"time"

	"github.com/eraldohasanaj/lazyloop/internal/loop"
	"github.com/eraldohasanaj/lazyloop/internal/task"
)

// Config is the fully merged configuration. Pointer fields are nil when no
// source set them, so budget precedence can be resolved downstream.
type Config struct {
	SleepMin   *time.Duration
	SleepMax   *time.Duration
	LoopCount  *int
	RunOnce    *bool
	RunForever *bool

	Log     LogConfig
	Metrics MetricsConfig
	Tracing TracingConfig
	Command CommandConfig

	ConfigFile string
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // listen address, empty disables
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Protocol    string  `yaml:"protocol"` // http or grpc
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
	Insecure    bool    `yaml:"insecure"`
}

// Enabled reports whether an exporter endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return t.Endpoint != ""
}

// CommandConfig controls the external program task.
type CommandConfig struct {
	Dir           string        `yaml:"dir"`
	SuccessMarker string        `yaml:"success_marker"`
	FailureMarker string        `yaml:"failure_marker"`
	StallAfter    time.Duration `yaml:"stall_after"`
}

// Default returns a Config with only the ambient defaults filled in.
func Default() *Config {
	return &Config{
		Log:     LogConfig{Level: "info", Format: "console"},
		Tracing: TracingConfig{Protocol: "http", ServiceName: "lazyloop", SampleRate: 1.0},
		Command: CommandConfig{StallAfter: task.DefaultStallAfter},
	}
}

// LoopOptions maps the loop settings onto loop.Options.
func (c *Config) LoopOptions(t loop.Task, handler loop.ErrorHandler) loop.Options {
	return loop.Options{
		Task:         t,
		ErrorHandler: handler,
		SleepMin:     c.SleepMin,
		SleepMax:     c.SleepMax,
		LoopCount:    c.LoopCount,
		RunOnce:      c.RunOnce,
		RunForever:   c.RunForever,
	}
}
