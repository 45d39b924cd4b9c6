// SPDX-License-Identifier: Apache-2.0

// Command turbinec is the command-line driver binding together the
// textual IR format, the pass runner, and the turboc front end. Per
// spec.md §1 the CLI itself is an external collaborator: everything
// it does is exposed as a library call the tests exercise directly.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"turbine/internal/diag"
	"turbine/internal/frontend"
	"turbine/internal/ir"
	"turbine/internal/irtext"
	"turbine/internal/passrunner"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: turbinec [-pass=name ...] [-strict] <file.ir|file.tc>")
		os.Exit(1)
	}

	var passNames []string
	var strict bool
	var path string
	for _, arg := range os.Args[1:] {
		switch {
		case arg == "-strict":
			strict = true
		case strings.HasPrefix(arg, "-pass="):
			passNames = append(passNames, strings.TrimPrefix(arg, "-pass="))
		default:
			path = arg
		}
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, color.RedString("error: no input file given"))
		os.Exit(1)
	}

	if err := run(path, passNames, strict); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func run(path string, passNames []string, strict bool) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	mod, err := loadModule(path, string(source))
	if err != nil {
		return err
	}

	reporter := diag.NewReporter(os.Stdout)
	runner := passrunner.New(passrunner.Options{Strict: strict, Only: passNames})

	for _, fn := range mod.Functions() {
		if fn.Extern() {
			continue
		}
		res := runner.Run(fn)
		if res.FatalBag != nil {
			reporter.Report(res.FatalBag)
			return fmt.Errorf("pass %q left function %q invalid", res.FatalAfter, fn.Name())
		}
		if len(res.Changed) > 0 {
			fmt.Fprintln(os.Stderr, color.YellowString("note: %s: %d pass application(s)", fn.Name(), len(res.Changed)))
		}
	}

	fmt.Print(irtext.Print(mod))
	fmt.Fprintln(os.Stderr, color.GreenString("ok"))
	return nil
}

// loadModule parses path per its extension: ".tc" is lowered from the
// turboc surface language, anything else is read as the textual IR
// format directly.
func loadModule(path, source string) (*ir.Module, error) {
	ctx := ir.NewContext()
	if filepath.Ext(path) == ".tc" {
		prog, err := frontend.ParseString(path, source)
		if err != nil {
			return nil, err
		}
		return frontend.Lower(ctx, prog)
	}

	textMod, err := irtext.ParseString(path, source)
	if err != nil {
		return nil, err
	}
	return irtext.Build(ctx, textMod)
}
