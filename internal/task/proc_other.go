//go:build !unix

package task

import "os/exec"

// killGroupOnCancel keeps the default cancellation, which kills only the
// program itself. waitDelay still bounds Run.
func killGroupOnCancel(*exec.Cmd) {}
