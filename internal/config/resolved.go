package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eraldohasanaj/lazyloop/internal/loop"
)

// Resolved is the effective configuration as reported by `lazyloop check`.
type Resolved struct {
	ConfigFile  string        `yaml:"config_file,omitempty"`
	Budget      int           `yaml:"budget"`
	Mode        string        `yaml:"mode"`
	MinDelay    string        `yaml:"sleep_min"`
	MaxDelay    string        `yaml:"sleep_max"`
	DelayWindow string        `yaml:"delay_window"`
	Log         LogConfig     `yaml:"log"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Tracing     TracingConfig `yaml:"tracing"`
	Command     struct {
		Dir           string `yaml:"dir,omitempty"`
		SuccessMarker string `yaml:"success_marker,omitempty"`
		FailureMarker string `yaml:"failure_marker,omitempty"`
		StallAfter    string `yaml:"stall_after"`
	} `yaml:"command"`
}

// Resolve applies loop defaults and budget precedence to c.
func (c *Config) Resolve() Resolved {
	lc := loop.DefaultConfig()
	if c.SleepMin != nil {
		lc.MinDelay = *c.SleepMin
	}
	if c.SleepMax != nil {
		lc.MaxDelay = *c.SleepMax
	}
	lc.Budget = loop.ResolveBudget(c.LoopCount, c.RunOnce, c.RunForever)

	r := Resolved{
		ConfigFile:  c.ConfigFile,
		Budget:      lc.Budget,
		Mode:        budgetMode(lc.Budget),
		MinDelay:    lc.MinDelay.String(),
		MaxDelay:    lc.MaxDelay.String(),
		DelayWindow: delayWindow(lc.MinDelay, lc.MaxDelay),
		Log:         c.Log,
		Metrics:     c.Metrics,
		Tracing:     c.Tracing,
	}
	r.Command.Dir = c.Command.Dir
	r.Command.SuccessMarker = c.Command.SuccessMarker
	r.Command.FailureMarker = c.Command.FailureMarker
	r.Command.StallAfter = c.Command.StallAfter.String()
	return r
}

// YAML renders r for display.
func (r Resolved) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}

func budgetMode(budget int) string {
	switch {
	case budget < 0:
		return "forever"
	case budget <= 1:
		return "once"
	default:
		return fmt.Sprintf("%d iterations", budget)
	}
}

func delayWindow(minDelay, maxDelay time.Duration) string {
	lo := maxDelay - minDelay
	if lo < 0 {
		lo = 0
	}
	if minDelay == 0 {
		return lo.String()
	}
	return fmt.Sprintf("[%s, %s)", lo, maxDelay)
}
