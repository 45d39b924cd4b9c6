// SPDX-License-Identifier: Apache-2.0

// Package diag carries structured diagnostics for the IR validator and
// pass pipeline: no source file or byte offset to point at, only the
// function/block/instruction the complaint is about, reported with
// severity coloring by Reporter.
package diag

import "fmt"

// Severity classifies a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Diagnostic is one finding: a severity, a message, and the name of the
// function/block/instruction it concerns (empty if module-wide).
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Function string
	Block    string
	Detail   string
}

func (d Diagnostic) String() string {
	where := d.Function
	if d.Block != "" {
		where += "." + d.Block
	}
	if where == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Severity, where, d.Message)
}

// Errorf builds an error-severity diagnostic scoped to fn/block.
func Errorf(fn, block, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Function: fn, Block: block, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning-severity diagnostic scoped to fn/block.
func Warnf(fn, block, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Function: fn, Block: block, Message: fmt.Sprintf(format, args...)}
}

// Bag accumulates diagnostics in emission order and can answer whether
// any error-severity finding is present.
type Bag struct {
	entries []Diagnostic
}

func (b *Bag) Add(d Diagnostic) { b.entries = append(b.entries, d) }

func (b *Bag) Errorf(fn, block, format string, args ...any) {
	b.Add(Errorf(fn, block, format, args...))
}

func (b *Bag) Warnf(fn, block, format string, args ...any) {
	b.Add(Warnf(fn, block, format, args...))
}

func (b *Bag) Entries() []Diagnostic { return b.entries }

// HasErrors reports whether any entry is error severity.
func (b *Bag) HasErrors() bool {
	for _, d := range b.entries {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (b *Bag) Empty() bool { return len(b.entries) == 0 }
