// SPDX-License-Identifier: Apache-2.0
package analysis

import (
	"fmt"
	"runtime"
)

// invariantViolation panics with a caller-located message, mirroring
// internal/ir/assert.go: used when a caller queries a stale analysis or
// otherwise breaks a precondition this package documents.
func invariantViolation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if _, file, line, ok := runtime.Caller(1); ok {
		panic(fmt.Sprintf("%s:%d: invariant violation: %s", file, line, msg))
	}
	panic("invariant violation: " + msg)
}
