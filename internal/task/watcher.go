package task

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxRecentLines = 10
	maxLineBytes   = 1024 * 1024
)

// Output lines that suggest the command is waiting for interactive input.
var promptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[y/n\]`),
	regexp.MustCompile(`(?i)\[yes/no\]`),
	regexp.MustCompile(`(?i)press enter`),
	regexp.MustCompile(`(?i)press any key`),
	regexp.MustCompile(`(?i)do you want to (continue|proceed|confirm)`),
	regexp.MustCompile(`(?i)are you sure`),
	regexp.MustCompile(`(?i)(confirm|proceed|continue)\?`),
	regexp.MustCompile(`(?i)waiting for (input|response|confirmation)`),
	regexp.MustCompile(`(?i)password:\s*$`),
}

// watcher forwards command output line by line and warns when the command
// looks stuck on a prompt or stops producing output. Output is only kept
// for ParseResult when capture is set.
type watcher struct {
	out     io.Writer
	logger  *zap.Logger
	capture bool

	mu          sync.Mutex
	partial     []byte
	captured    strings.Builder
	recentLines []string
	lastLineAt  time.Time

	prompts rate.Sometimes
	stalls  rate.Sometimes

	stallAfter time.Duration
	ticker     *time.Ticker
	done       chan struct{}
	wg         sync.WaitGroup
}

func newWatcher(out io.Writer, logger *zap.Logger, stallAfter time.Duration, capture bool) *watcher {
	w := &watcher{
		out:        out,
		logger:     logger,
		capture:    capture,
		lastLineAt: time.Now(),
		stalls:     rate.Sometimes{Interval: stallAfter},
		stallAfter: stallAfter,
		done:       make(chan struct{}),
	}
	if stallAfter > 0 {
		w.ticker = time.NewTicker(max(stallAfter/3, time.Millisecond))
		w.wg.Add(1)
		go w.monitorStalls()
	}
	return w
}

// Write splits raw program output into lines. A trailing partial line is
// held until the rest arrives or Flush is called.
func (w *watcher) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.line(strings.TrimSuffix(string(w.partial[:i]), "\r"))
		w.partial = w.partial[i+1:]
	}
	if len(w.partial) > maxLineBytes {
		w.line(string(w.partial))
		w.partial = nil
	}
	return len(p), nil
}

// Flush records any output left without a final newline.
func (w *watcher) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.line(string(w.partial))
		w.partial = nil
	}
}

// line records one line of command output. Callers hold w.mu.
func (w *watcher) line(line string) {
	if w.capture {
		w.captured.WriteString(line)
		w.captured.WriteByte('\n')
	}
	if w.out != nil {
		fmt.Fprintln(w.out, line)
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	w.recentLines = append(w.recentLines, trimmed)
	if len(w.recentLines) > maxRecentLines {
		w.recentLines = w.recentLines[1:]
	}
	w.lastLineAt = time.Now()

	if matchesPrompt(trimmed) {
		w.prompts.Do(func() {
			w.logger.Warn("Command appears to be waiting for input; it has no terminal attached.",
				zap.Strings("recent_output", w.context()))
		})
	}
}

// Output returns everything captured so far.
func (w *watcher) Output() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.captured.String()
}

// Close stops the stall monitor.
func (w *watcher) Close() {
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.done)
	w.wg.Wait()
}

func matchesPrompt(line string) bool {
	for _, p := range promptPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// context returns the last few output lines. Callers hold w.mu.
func (w *watcher) context() []string {
	start := len(w.recentLines) - 5
	if start < 0 {
		start = 0
	}
	return append([]string(nil), w.recentLines[start:]...)
}

func (w *watcher) monitorStalls() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case <-w.ticker.C:
			w.mu.Lock()
			silent := time.Since(w.lastLineAt)
			if silent > w.stallAfter {
				w.stalls.Do(func() {
					w.logger.Warn("No command output for a while; it may be stalled or waiting for input.",
						zap.Duration("silent_for", silent.Round(time.Second)),
						zap.Strings("last_output", w.context()))
				})
			}
			w.mu.Unlock()
		}
	}
}
