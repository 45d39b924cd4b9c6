// SPDX-License-Identifier: Apache-2.0

// Package passrunner threads the optimizer's 19-pass catalogue over a
// function and, in strict mode, revalidates after every pass — spec §2's
// "a pass runner threads flags and, in strict mode, revalidates the
// function after each pass" and §6.2's "strict-validation mode ...
// a failed validation is fatal". The runner and its pass table are core;
// the flag-parsing CLI that selects a pipeline by name is not
// (cmd/turbinec).
package passrunner

import (
	"fmt"

	"turbine/internal/diag"
	"turbine/internal/ir"
	"turbine/internal/passes"
)

// Pass pairs a stable name (used by CLI/test pipeline selection) with
// the spec §4.9 `run(function, ...) -> bool` signature every pass
// shares.
type Pass struct {
	Name string
	Run  func(fn *ir.Function) bool
}

// Catalogue is every optimization pass in spec.md §4.9, in the order
// they are listed there. A runner need not use this order — Options.Only
// selects a subset by name, in whatever order the caller lists it in —
// but it is the default pipeline order when Only is empty.
var Catalogue = []Pass{
	{"constfold", passes.ConstantPropagation},
	{"simplify", passes.GeneralSimplification},
	{"blockinvariant", passes.BlockInvariantPropagation},
	{"cfgsimplify", passes.CFGSimplification},
	{"deadblock", passes.DeadBlockElimination},
	{"dse", passes.DeadStoreElimination},
	{"knownload", passes.KnownLoadElimination},
	{"dedup", passes.InstructionDeduplication},
	{"mem2ssa", passes.MemoryToSSA},
	{"phimin", passes.PhiMinimization},
	{"phi2mem", passes.PhiToMemory},
	{"condflatten", passes.ConditionalFlattening},
	{"reorder", passes.GlobalReordering},
	{"licm", passes.LoopInvariantCodeMotion},
	{"rotate", passes.LoopRotation},
	{"unroll", passes.LoopUnrolling},
	{"loopmem", passes.LoopMemoryExtraction},
	{"knownbits", passes.KnownBitsPropagation},
	{"inline", passes.InlineCalls},
}

func byName(name string) (Pass, bool) {
	for _, p := range Catalogue {
		if p.Name == name {
			return p, true
		}
	}
	return Pass{}, false
}

// Options configures a Runner. Strict revalidates the function after
// every pass that reports a change and treats any validator error as
// fatal (spec §6.2); Only restricts the pipeline to the named passes,
// run in the given order, defaulting to the full Catalogue in its
// declared order when empty — a small explicit struct, matching the
// teacher's preference for option structs over a configuration
// framework (it has none either).
type Options struct {
	Strict bool
	Only   []string
}

// Runner executes a pipeline of passes over a function to a fixed
// point: spec's pass catalogue is re-run in a loop until a full pass
// over the pipeline makes no further change, since later passes often
// re-expose opportunities for earlier ones (e.g. inlining creating new
// constant-folding opportunities).
type Runner struct {
	opts     Options
	pipeline []Pass
}

// New builds a Runner for opts, resolving Only against Catalogue. It
// panics (a programmer error, not a recoverable one) if Only names a
// pass that does not exist.
func New(opts Options) *Runner {
	r := &Runner{opts: opts}
	if len(opts.Only) == 0 {
		r.pipeline = Catalogue
		return r
	}
	r.pipeline = make([]Pass, len(opts.Only))
	for i, name := range opts.Only {
		p, ok := byName(name)
		if !ok {
			panic(fmt.Sprintf("passrunner: unknown pass %q", name))
		}
		r.pipeline[i] = p
	}
	return r
}

// Result reports what a Run call did: which passes changed the
// function (in execution order, one entry per pass invocation that
// returned true) and, in strict mode, the validator diagnostics from
// the first failing revalidation (nil otherwise — a strict failure
// aborts the loop immediately, matching spec.md §6.2's "a failed
// validation is fatal").
type Result struct {
	Changed     []string
	FatalBag    *diag.Bag
	FatalAfter  string
	Iterations  int
}

// Run drives the pipeline over fn to a fixed point (spec §2: every
// pass returns a changed flag; the runner threads it). Strict mode
// validates fn after each pass that reports true; the first validation
// failure stops the run and is reported in Result.FatalBag/FatalAfter
// rather than panicking, since a buggy pass's invariant violation is
// spec §7's "surfaces as validator errors when strict mode is active",
// not a programmer-error panic in the runner itself.
func (r *Runner) Run(fn *ir.Function) Result {
	var res Result
	const maxIterations = 64
	for iter := 0; iter < maxIterations; iter++ {
		res.Iterations++
		anyChanged := false
		for _, p := range r.pipeline {
			if p.Run(fn) {
				anyChanged = true
				res.Changed = append(res.Changed, p.Name)
				if r.opts.Strict {
					var bag diag.Bag
					ir.Validate(fn, &bag)
					if bag.HasErrors() {
						res.FatalBag = &bag
						res.FatalAfter = p.Name
						return res
					}
				}
			}
		}
		if !anyChanged {
			break
		}
	}
	return res
}

// RunOnce runs the pipeline exactly once through, in order, without
// looping to a fixed point, and reports whether any pass changed fn.
// Used by tests asserting spec §8's idempotence property ("running any
// pass twice in a row does not cause further changes").
func (r *Runner) RunOnce(fn *ir.Function) bool {
	changed := false
	for _, p := range r.pipeline {
		if p.Run(fn) {
			changed = true
		}
	}
	return changed
}
