// SPDX-License-Identifier: Apache-2.0

// Package sysutil wraps the handful of OS-level facts and actions the
// rest of the tree occasionally needs: current process/thread
// identity, a nanosecond timestamp for scratch filenames, and running
// an external command with its stdin/stdout captured. Per spec.md §1
// this is an external collaborator with no bearing on the IR or
// optimizer; it exists only to give `internal/graphdump` and
// `cmd/turbinec` a place to put OS calls instead of scattering
// os/exec and os imports through the core packages.
package sysutil

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// CurrentProcessID returns the running process's PID.
func CurrentProcessID() int { return os.Getpid() }

// MonotonicTimestamp returns the wall-clock time in nanoseconds since
// the Unix epoch, for building unique scratch filenames; it reads the
// wall clock, so it is not guaranteed to increase across calls.
func MonotonicTimestamp() int64 { return time.Now().UnixNano() }

// RunProcess runs application with the given arguments, feeding it
// stdin and returning its combined stdout/stderr. It reports a
// non-nil error if the process could not be started or exited
// non-zero.
func RunProcess(application string, args []string, stdin string) (string, error) {
	cmd := exec.Command(application, args...)
	cmd.Stdin = bytes.NewBufferString(stdin)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("sysutil: running %q: %w", application, err)
	}
	return out.String(), nil
}

// TempFilePath builds a path under the OS temp directory named after
// name, the current process ID and a nanosecond timestamp — unique
// enough for scratch graph/IR dumps without needing a real tempfile
// API, the same shape debug_graph's path construction uses.
func TempFilePath(name, ext string) string {
	return fmt.Sprintf("%s/%s_%d_%d.%s", os.TempDir(), name, CurrentProcessID(), MonotonicTimestamp(), ext)
}
