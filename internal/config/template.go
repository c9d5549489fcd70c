package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eraldohasanaj/lazyloop/internal/loop"
)

type templateFile struct {
	SleepMin  int           `yaml:"sleep_min"`
	SleepMax  int           `yaml:"sleep_max"`
	LoopCount int           `yaml:"loop_count"`
	Log       LogConfig     `yaml:"log"`
	Metrics   MetricsConfig `yaml:"metrics"`
	Tracing   TracingConfig `yaml:"tracing"`
	Command   struct {
		Dir           string `yaml:"dir"`
		SuccessMarker string `yaml:"success_marker"`
		FailureMarker string `yaml:"failure_marker"`
		StallAfter    string `yaml:"stall_after"`
	} `yaml:"command"`
}

var templateComments = map[string]string{
	"sleep_min":  "Width of the random delay window, in milliseconds or as a duration (\"3s\").",
	"sleep_max":  "Upper bound of the delay; each pause falls in [sleep_max - sleep_min, sleep_max).",
	"loop_count": "Iterations to run; -1 runs forever. run_once / run_forever are consulted only without it.",
	"metrics":    "Prometheus endpoint, e.g. addr: \":9090\". Empty disables it.",
	"tracing":    "OTLP trace export; leave endpoint empty to disable.",
	"command":    "Markers are matched against the last lines of the command output.",
}

// Template renders a starter configuration file.
func Template() ([]byte, error) {
	def := Default()
	tf := templateFile{
		SleepMin:  int(loop.DefaultMinDelay / time.Millisecond),
		SleepMax:  int(loop.DefaultMaxDelay / time.Millisecond),
		LoopCount: loop.Unbounded,
		Log:       def.Log,
		Tracing:   def.Tracing,
	}
	tf.Command.StallAfter = def.Command.StallAfter.String()

	var doc yaml.Node
	if err := doc.Encode(tf); err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}
	doc.HeadComment = "lazyloop configuration"
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if c, ok := templateComments[doc.Content[i].Value]; ok {
			doc.Content[i].HeadComment = c
		}
	}
	return yaml.Marshal(&doc)
}

// WriteTemplate creates a starter configuration file at path.
func WriteTemplate(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	content, err := Template()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}
