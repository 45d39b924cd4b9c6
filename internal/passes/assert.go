// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"fmt"
	"runtime"
)

// invariantViolation reports a programmer error local to a pass: a
// precondition the caller was supposed to have checked before invoking
// the pass (e.g. Run on a loop the pass does not actually apply to).
// Grounded on internal/ir/assert.go's invariantViolation, duplicated per
// package so each package's panics stay owned by that package.
func invariantViolation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if _, file, line, ok := runtime.Caller(1); ok {
		panic(fmt.Sprintf("%s:%d: invariant violation: %s", file, line, msg))
	}
	panic("invariant violation: " + msg)
}
