package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables, e.g. LAZYLOOP_SLEEP_MIN.
const EnvPrefix = "LAZYLOOP"

// Loader merges configuration sources in increasing priority: defaults,
// config file, environment, changed flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader with environment lookup enabled.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load reads the file named by the --config flag, if any, and applies
// environment variables and flags on top. flags may be nil.
func (l *Loader) Load(flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	if flags != nil {
		if f := flags.Lookup(FlagConfig); f != nil {
			cfg.ConfigFile = f.Value.String()
		}
	}
	if cfg.ConfigFile != "" {
		l.v.SetConfigFile(cfg.ConfigFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfg.ConfigFile, err)
		}
	}

	if err := l.applySettings(cfg); err != nil {
		return nil, err
	}
	if flags != nil {
		if err := applyFlagOverrides(cfg, flags); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setting hands a present key's raw value to apply, wrapping its error
// with the key name.
func (l *Loader) setting(key string, apply func(raw any) error) error {
	if !l.v.IsSet(key) {
		return nil
	}
	if err := apply(l.v.Get(key)); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func (l *Loader) applySettings(cfg *Config) error {
	appliers := []struct {
		key   string
		apply func(raw any) error
	}{
		{"sleep_min", func(raw any) error {
			d, err := asDuration(raw)
			cfg.SleepMin = &d
			return err
		}},
		{"sleep_max", func(raw any) error {
			d, err := asDuration(raw)
			cfg.SleepMax = &d
			return err
		}},
		{"loop_count", func(raw any) error {
			n, err := asInt(raw)
			cfg.LoopCount = &n
			return err
		}},
		{"run_once", func(raw any) error {
			b, err := asBool(raw)
			cfg.RunOnce = &b
			return err
		}},
		{"run_forever", func(raw any) error {
			b, err := asBool(raw)
			cfg.RunForever = &b
			return err
		}},
		{"log.level", stringSetter(&cfg.Log.Level)},
		{"log.format", stringSetter(&cfg.Log.Format)},
		{"metrics.addr", stringSetter(&cfg.Metrics.Addr)},
		{"tracing.endpoint", stringSetter(&cfg.Tracing.Endpoint)},
		{"tracing.protocol", stringSetter(&cfg.Tracing.Protocol)},
		{"tracing.service_name", stringSetter(&cfg.Tracing.ServiceName)},
		{"tracing.sample_rate", func(raw any) error {
			f, err := asFloat64(raw)
			cfg.Tracing.SampleRate = f
			return err
		}},
		{"tracing.insecure", func(raw any) error {
			b, err := asBool(raw)
			cfg.Tracing.Insecure = b
			return err
		}},
		{"command.dir", stringSetter(&cfg.Command.Dir)},
		{"command.success_marker", stringSetter(&cfg.Command.SuccessMarker)},
		{"command.failure_marker", stringSetter(&cfg.Command.FailureMarker)},
		{"command.stall_after", func(raw any) error {
			d, err := asDuration(raw)
			cfg.Command.StallAfter = d
			return err
		}},
	}

	for _, a := range appliers {
		if err := l.setting(a.key, a.apply); err != nil {
			return err
		}
	}
	return nil
}

func stringSetter(dst *string) func(raw any) error {
	return func(raw any) error {
		s, err := asString(raw)
		*dst = s
		return err
	}
}

// applyFlagOverrides copies flags the user explicitly changed onto cfg.
func applyFlagOverrides(cfg *Config, flags *pflag.FlagSet) error {
	var err error
	changed := func(name string) bool {
		return err == nil && flags.Changed(name)
	}

	// Budget flags replace every budget setting from lower-priority sources.
	if changed(FlagLoopCount) || changed(FlagOnce) || changed(FlagForever) {
		cfg.LoopCount, cfg.RunOnce, cfg.RunForever = nil, nil, nil
	}

	if changed(FlagSleepMin) {
		d, e := getDuration(flags, FlagSleepMin)
		cfg.SleepMin, err = &d, e
	}
	if changed(FlagSleepMax) {
		d, e := getDuration(flags, FlagSleepMax)
		cfg.SleepMax, err = &d, e
	}
	if changed(FlagLoopCount) {
		n, e := flags.GetInt(FlagLoopCount)
		cfg.LoopCount, err = &n, e
	}
	if changed(FlagOnce) {
		b, e := flags.GetBool(FlagOnce)
		cfg.RunOnce, err = &b, e
	}
	if changed(FlagForever) {
		b, e := flags.GetBool(FlagForever)
		cfg.RunForever, err = &b, e
	}
	if changed(FlagStallAfter) {
		cfg.Command.StallAfter, err = getDuration(flags, FlagStallAfter)
	}

	stringFlags := []struct {
		name string
		dst  *string
	}{
		{FlagLogLevel, &cfg.Log.Level},
		{FlagLogFormat, &cfg.Log.Format},
		{FlagMetricsAddr, &cfg.Metrics.Addr},
		{FlagTraceEndpoint, &cfg.Tracing.Endpoint},
		{FlagTraceProtocol, &cfg.Tracing.Protocol},
		{FlagSuccessMarker, &cfg.Command.SuccessMarker},
		{FlagFailureMarker, &cfg.Command.FailureMarker},
		{FlagDir, &cfg.Command.Dir},
	}
	for _, s := range stringFlags {
		if changed(s.name) {
			*s.dst, err = flags.GetString(s.name)
		}
	}

	if err != nil {
		return fmt.Errorf("invalid flag: %w", err)
	}
	return nil
}
