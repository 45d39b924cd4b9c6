package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Reporter prints a Bag to an io.Writer with severity coloring. It shows
// no source snippet: there is no source text to show here.
type Reporter struct {
	w io.Writer
}

func NewReporter(w io.Writer) *Reporter { return &Reporter{w: w} }

func (r *Reporter) Report(b *Bag) {
	for _, d := range b.Entries() {
		fmt.Fprintln(r.w, r.format(d))
	}
}

func (r *Reporter) format(d Diagnostic) string {
	levelColor := severityColor(d.Severity)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	var where strings.Builder
	if d.Function != "" {
		where.WriteString(d.Function)
	}
	if d.Block != "" {
		where.WriteString("." + d.Block)
	}

	if where.Len() == 0 {
		return fmt.Sprintf("%s: %s", levelColor(string(d.Severity)), bold(d.Message))
	}
	line := fmt.Sprintf("%s[%s]: %s", levelColor(string(d.Severity)), dim(where.String()), bold(d.Message))
	if d.Detail != "" {
		line += "\n  " + dim("note:") + " " + d.Detail
	}
	return line
}

func severityColor(s Severity) func(...interface{}) string {
	switch s {
	case SeverityError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case SeverityWarning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	}
}
