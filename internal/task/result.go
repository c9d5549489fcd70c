package task

import (
	"strconv"
	"strings"
)

// Markers are output lines that decide an iteration's outcome.
type Markers struct {
	Success string // if set, required for success
	Failure string // if set, forces failure
}

func (m Markers) empty() bool {
	return m.Success == "" && m.Failure == ""
}

// Result is the outcome of a single command execution.
type Result struct {
	Success bool
	Reason  string // populated on failure
}

// ParseResult decides the outcome of a command from its output and exit
// status. Markers are searched from the end of the output and the last one
// wins. Without a matching marker the exit status decides, unless a success
// marker is configured, in which case its absence is a failure.
func ParseResult(output string, exitCode int, m Markers) Result {
	if !m.empty() {
		lines := strings.Split(output, "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			line := strings.TrimSpace(lines[i])

			if m.Failure != "" && strings.Contains(line, m.Failure) {
				idx := strings.Index(line, m.Failure)
				reason := strings.TrimSpace(strings.TrimPrefix(line[idx+len(m.Failure):], ":"))
				if reason == "" {
					reason = "failure marker found in output"
				}
				return Result{Success: false, Reason: reason}
			}

			if m.Success != "" && strings.Contains(line, m.Success) {
				return Result{Success: true}
			}
		}

		if m.Success != "" {
			return Result{Success: false, Reason: "no " + m.Success + " marker found in output"}
		}
	}

	if exitCode != 0 {
		return Result{Success: false, Reason: "exit status " + strconv.Itoa(exitCode)}
	}
	return Result{Success: true}
}
