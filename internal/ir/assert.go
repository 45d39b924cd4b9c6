// SPDX-License-Identifier: Apache-2.0
package ir

import (
	"fmt"
	"runtime"
)

// invariantViolation reports a programmer error: a broken invariant such
// as a dangling use, destroying a linked node, or an operand type
// mismatch. These are not recoverable; they abort with the call site so
// the violation can be traced back to the buggy pass or builder call.
func invariantViolation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if _, file, line, ok := runtime.Caller(1); ok {
		panic(fmt.Sprintf("%s:%d: invariant violation: %s", file, line, msg))
	}
	panic("invariant violation: " + msg)
}
