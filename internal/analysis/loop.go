// SPDX-License-Identifier: Apache-2.0
package analysis

import "turbine/internal/ir"

// Loop is one natural loop: a header reachable from every block in the
// loop, the set of member blocks, the back edges that close the loop,
// the edges leaving it, and any nested loops discovered inside it.
type Loop struct {
	Header        *ir.Block
	Blocks        map[*ir.Block]bool
	BackEdgesFrom map[*ir.Block]bool
	ExitingEdges  []LoopEdge
	SubLoops      []*Loop
}

// LoopEdge is a (from, to) pair where from is inside the loop and to is
// not.
type LoopEdge struct {
	From, To *ir.Block
}

// LoopForest is every top-level natural loop found in a function,
// computed once against a fixed CFG shape.
type LoopForest struct {
	fn         *ir.Function
	generation int
	Loops      []*Loop
}

// BuildLoopForest finds natural loops by looking for non-trivial
// strongly connected components, identifying the loop header as the
// SCC member whose immediate-dominator chain first leaves the SCC, and
// recursing into the SCC-with-header-removed to find nested loops —
// the same construction as Flugzeug's analyze_function_loops.
func BuildLoopForest(fn *ir.Function) *LoopForest {
	dom := BuildDominatorTree(fn)
	reachable := reachableBlocks(fn.Entry())

	var loops []*Loop
	for _, scc := range ComputeSCCs(reachable) {
		if loop := buildLoopFromSCC(scc, dom); loop != nil {
			loops = append(loops, loop)
		}
	}
	return &LoopForest{fn: fn, generation: fn.Generation(), Loops: loops}
}

func reachableBlocks(entry *ir.Block) map[*ir.Block]bool {
	set := make(map[*ir.Block]bool)
	var visit func(b *ir.Block)
	visit = func(b *ir.Block) {
		if set[b] {
			return
		}
		set[b] = true
		for _, s := range ir.Successors(b) {
			visit(s)
		}
	}
	visit(entry)
	return set
}

// buildLoopFromSCC returns nil for a trivial SCC (a single block with no
// self-edge): that is not a loop at all.
func buildLoopFromSCC(scc []*ir.Block, dom *DominatorTree) *Loop {
	if len(scc) == 1 {
		self := scc[0]
		looped := false
		for _, s := range ir.Successors(self) {
			if s == self {
				looped = true
				break
			}
		}
		if !looped {
			return nil
		}
	}

	blocks := make(map[*ir.Block]bool, len(scc))
	for _, b := range scc {
		blocks[b] = true
	}

	// Walk up the dominator chain from an arbitrary member until we find
	// the member no longer dominated from within the set: that is the
	// header, since the header is the only loop block reachable from
	// outside it.
	header := scc[0]
	for {
		next := dom.ImmediateDominator(header)
		if next == nil || !blocks[next] {
			break
		}
		header = next
	}

	loop := &Loop{Header: header, Blocks: blocks, BackEdgesFrom: make(map[*ir.Block]bool)}
	for _, b := range scc {
		for _, succ := range ir.Successors(b) {
			if !blocks[succ] {
				loop.ExitingEdges = append(loop.ExitingEdges, LoopEdge{From: b, To: succ})
				continue
			}
			if succ == header {
				loop.BackEdgesFrom[b] = true
			}
		}
	}

	// Recurse: remove the header to break the one cycle every member
	// must route through, then any remaining SCCs are nested loops.
	inner := make(map[*ir.Block]bool, len(blocks))
	for b := range blocks {
		if b != header {
			inner[b] = true
		}
	}
	for _, subSCC := range ComputeSCCs(inner) {
		if sub := buildLoopFromSCC(subSCC, dom); sub != nil {
			loop.SubLoops = append(loop.SubLoops, sub)
		}
	}

	return loop
}

func (lf *LoopForest) assertFresh() {
	if lf.fn.Generation() != lf.generation {
		invariantViolation("LoopForest: used after function %q was mutated", lf.fn.Name())
	}
}

// LoopContaining returns the innermost loop containing b, or nil.
func (lf *LoopForest) LoopContaining(b *ir.Block) *Loop {
	lf.assertFresh()
	var found *Loop
	var search func(loops []*Loop)
	search = func(loops []*Loop) {
		for _, l := range loops {
			if l.Blocks[b] {
				found = l
				search(l.SubLoops)
			}
		}
	}
	search(lf.Loops)
	return found
}

// IsLoopHeader reports whether b heads some loop in the forest.
func (lf *LoopForest) IsLoopHeader(b *ir.Block) bool {
	lf.assertFresh()
	var found bool
	var search func(loops []*Loop)
	search = func(loops []*Loop) {
		for _, l := range loops {
			if l.Header == b {
				found = true
			}
			search(l.SubLoops)
		}
	}
	search(lf.Loops)
	return found
}

// GetOrCreatePreheader returns loop's existing preheader (a single
// predecessor of the header outside the loop) if there already is
// exactly one, or splices a new dedicated block between the header and
// its outside predecessors otherwise. Passes (LICM, rotation) use this
// as a safe place to hoist loop-invariant code.
func GetOrCreatePreheader(fn *ir.Function, loop *Loop) *ir.Block {
	var outside []*ir.Block
	for _, p := range loop.Header.Predecessors() {
		if !loop.Blocks[p] {
			outside = append(outside, p)
		}
	}
	if len(outside) == 1 {
		return outside[0]
	}
	return materializeDedicatedBlock(fn, loop.Header, outside)
}

// GetOrCreateDedicatedExit returns a single dedicated successor block
// for all of exitTarget's entries from inside loop, materializing one if
// multiple loop blocks currently jump directly to it.
func GetOrCreateDedicatedExit(fn *ir.Function, loop *Loop, exitTarget *ir.Block) *ir.Block {
	var inside []*ir.Block
	for _, p := range exitTarget.Predecessors() {
		if loop.Blocks[p] {
			inside = append(inside, p)
		}
	}
	if len(inside) == 1 {
		return exitTarget
	}
	return materializeDedicatedBlock(fn, exitTarget, inside)
}

// GetOrCreateSingleBackEdgeBlock returns the loop's sole back-edge block
// if there is exactly one, or materializes a new block that every
// current back edge is redirected through on its way to the header.
// Loop rotation relies on a single back edge to know where the
// continuation jump belongs.
func GetOrCreateSingleBackEdgeBlock(fn *ir.Function, loop *Loop) *ir.Block {
	var from []*ir.Block
	for b := range loop.BackEdgesFrom {
		from = append(from, b)
	}
	if len(from) == 1 {
		return from[0]
	}
	fresh := materializeDedicatedBlock(fn, loop.Header, from)
	loop.BackEdgesFrom = map[*ir.Block]bool{fresh: true}
	return fresh
}

// materializeDedicatedBlock inserts a fresh block that unconditionally
// branches to target, and redirects each of redirectFrom's terminators
// that targeted target to the new block instead.
func materializeDedicatedBlock(fn *ir.Function, target *ir.Block, redirectFrom []*ir.Block) *ir.Block {
	fresh := fn.InsertBlockAfter(target, "dedicated")
	ctx := fn.Module().Context()
	ir.AtBlockBack(fresh).Branch(ctx, target)

	for _, b := range redirectFrom {
		switch term := b.Terminator().(type) {
		case *ir.BranchInst:
			if term.Target() == target {
				term.SetTarget(fresh)
			}
		case *ir.CondBranchInst:
			if term.TrueTarget() == target {
				term.SetTrueTarget(fresh)
			}
			if term.FalseTarget() == target {
				term.SetFalseTarget(fresh)
			}
		}
	}
	for _, inst := range target.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		for _, b := range redirectFrom {
			if val, ok := phi.ValueForBlock(b); ok {
				phi.RemoveIncoming(b)
				phi.AddIncoming(fresh, val)
			}
		}
	}
	return fresh
}
