package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Flag names shared by the CLI and the loader.
const (
	FlagConfig        = "config"
	FlagSleepMin      = "sleep-min"
	FlagSleepMax      = "sleep-max"
	FlagLoopCount     = "loop-count"
	FlagOnce          = "once"
	FlagForever       = "forever"
	FlagLogLevel      = "log-level"
	FlagLogFormat     = "log-format"
	FlagMetricsAddr   = "metrics-addr"
	FlagTraceEndpoint = "trace-endpoint"
	FlagTraceProtocol = "trace-protocol"
	FlagSuccessMarker = "success-marker"
	FlagFailureMarker = "failure-marker"
	FlagStallAfter    = "stall-after"
	FlagDir           = "dir"
)

// RegisterFlags adds the loader's flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagConfig, "c", "", "Path to a configuration file (YAML, JSON or TOML)")

	// Loop control
	fs.Var(new(durationValue), FlagSleepMin, "Width of the random delay window; bare numbers are milliseconds (default 3s)")
	fs.Var(new(durationValue), FlagSleepMax, "Upper bound of the delay between iterations; bare numbers are milliseconds (default 5s)")
	fs.IntP(FlagLoopCount, "n", 0, "Number of iterations; negative runs forever (default -1)")
	fs.Bool(FlagOnce, false, "Run a single iteration")
	fs.Bool(FlagForever, false, "Run until interrupted")

	// Output
	fs.String(FlagLogLevel, "", "Log level: debug, info, warn or error")
	fs.String(FlagLogFormat, "", "Log format: console or json")
	fs.String(FlagMetricsAddr, "", "Serve Prometheus metrics on this address (e.g. :9090)")
	fs.String(FlagTraceEndpoint, "", "OTLP endpoint for iteration traces")
	fs.String(FlagTraceProtocol, "", "OTLP protocol: http or grpc")

	// Command task
	fs.String(FlagSuccessMarker, "", "Output line required for an iteration to succeed")
	fs.String(FlagFailureMarker, "", "Output line that marks an iteration as failed")
	fs.Var(new(durationValue), FlagStallAfter, "Warn when the command is silent this long; bare numbers are milliseconds (default 30s)")
	fs.String(FlagDir, "", "Working directory for the command")
}

// durationValue is a pflag.Value that reads durations the way settings
// files do, so "3000" and "3s" mean the same thing.
type durationValue time.Duration

func (d *durationValue) Set(s string) error {
	v, err := asDuration(s)
	if err != nil {
		return err
	}
	*d = durationValue(v)
	return nil
}

func (d *durationValue) String() string {
	if *d == 0 {
		return "0"
	}
	return time.Duration(*d).String()
}

func (d *durationValue) Type() string { return "duration" }

// getDuration reads a flag registered by RegisterFlags, or any flag whose
// value asDuration understands.
func getDuration(flags *pflag.FlagSet, name string) (time.Duration, error) {
	f := flags.Lookup(name)
	if f == nil {
		return 0, fmt.Errorf("flag %q is not defined", name)
	}
	if v, ok := f.Value.(*durationValue); ok {
		return time.Duration(*v), nil
	}
	return asDuration(f.Value.String())
}
