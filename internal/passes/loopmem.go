// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"sort"
	"turbine/internal/analysis"
	"turbine/internal/ir"
)

// LoopMemoryExtraction finds pointers that are accessed unconditionally
// on every iteration of a loop with a single exit target, and whose
// aliasing against every other pointer accessed in the loop is fully
// resolved (never AliasMay), and routes their Loads and Stores through
// a preheader-allocated stack slot instead: the slot is primed from the
// pointer once on entry, every in-loop access goes through the slot,
// the slot is flushed back to the pointer once at the dedicated exit,
// and any Call that might alias the pointer gets a flush-before and
// reload-after so it still observes up to date memory. Pointers are
// rewritten in descending access-count order, skipping any that may
// alias one already rewritten. Spec §4.9.17.
func LoopMemoryExtraction(fn *ir.Function) bool {
	changed := false
	forest := analysis.BuildLoopForest(fn)
	for _, loop := range flattenLoopsInnermostFirst(forest) {
		if extractLoopMemory(fn, loop) {
			changed = true
		}
	}
	return changed
}

type loopPointerCandidate struct {
	pointer ir.Value
	elem    ir.Type
	count   int
}

func extractLoopMemory(fn *ir.Function, loop *analysis.Loop) bool {
	exit, ok := singleExitTarget(loop)
	if !ok || len(loop.BackEdgesFrom) == 0 {
		return false
	}
	dom := analysis.BuildDominatorTree(fn)
	aa := analysis.BuildPointerAliasing(fn)

	candidates := unconditionalLoopPointers(loop, dom)
	if len(candidates) == 0 {
		return false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].count > candidates[j].count
	})

	changed := false
	var rewritten []ir.Value
	for _, cand := range candidates {
		if aliasesAny(aa, cand.pointer, rewritten) {
			continue
		}
		if !fullyDeterminedAgainstOthers(aa, cand, candidates) {
			continue
		}
		rewriteLoopPointerThroughSlot(fn, loop, exit, cand, aa)
		aa = analysis.BuildPointerAliasing(fn)
		rewritten = append(rewritten, cand.pointer)
		changed = true
	}
	return changed
}

// unconditionalLoopPointers groups each loop's Load/Store instructions
// by the exact pointer value they use, keeping only pointers with at
// least one access in a block that dominates every back edge (so it is
// guaranteed to run every iteration).
func unconditionalLoopPointers(loop *analysis.Loop, dom *analysis.DominatorTree) []*loopPointerCandidate {
	byPointer := map[ir.Value]*loopPointerCandidate{}
	var order []ir.Value

	add := func(p ir.Value, elem ir.Type) {
		c, ok := byPointer[p]
		if !ok {
			c = &loopPointerCandidate{pointer: p, elem: elem}
			byPointer[p] = c
			order = append(order, p)
		}
		c.count++
	}

	for b := range loop.Blocks {
		for _, inst := range b.Instructions() {
			switch v := inst.(type) {
			case *ir.LoadInst:
				add(v.Pointer(), v.Type())
			case *ir.StoreInst:
				add(v.Pointer(), v.Value_().Type())
			}
		}
	}

	var out []*loopPointerCandidate
	for _, p := range order {
		c := byPointer[p]
		if unconditionallyAccessed(loop, dom, p) {
			out = append(out, c)
		}
	}
	return out
}

func unconditionallyAccessed(loop *analysis.Loop, dom *analysis.DominatorTree, pointer ir.Value) bool {
	for b := range loop.Blocks {
		accessesHere := false
		for _, inst := range b.Instructions() {
			switch v := inst.(type) {
			case *ir.LoadInst:
				accessesHere = accessesHere || v.Pointer() == pointer
			case *ir.StoreInst:
				accessesHere = accessesHere || v.Pointer() == pointer
			}
		}
		if !accessesHere {
			continue
		}
		dominatesAllBackEdges := true
		for be := range loop.BackEdgesFrom {
			if !dom.Dominates(b, be) {
				dominatesAllBackEdges = false
				break
			}
		}
		if dominatesAllBackEdges {
			return true
		}
	}
	return false
}

func aliasesAny(aa *analysis.PointerAliasing, p ir.Value, already []ir.Value) bool {
	for _, q := range already {
		if aa.CanAlias(p, q) != analysis.AliasNever {
			return true
		}
	}
	return false
}

func fullyDeterminedAgainstOthers(aa *analysis.PointerAliasing, cand *loopPointerCandidate, all []*loopPointerCandidate) bool {
	for _, other := range all {
		if other.pointer == cand.pointer {
			continue
		}
		if aa.CanAlias(cand.pointer, other.pointer) == analysis.AliasMay {
			return false
		}
	}
	return true
}

func rewriteLoopPointerThroughSlot(fn *ir.Function, loop *analysis.Loop, exit *ir.Block, cand *loopPointerCandidate, aa *analysis.PointerAliasing) {
	ctx := fn.Module().Context()
	// The Calls that may touch the pointer are picked out before anything
	// is inserted, since aa answers only for the function as it was built.
	clobbers := map[ir.Instruction]bool{}
	for b := range loop.Blocks {
		for _, inst := range b.Instructions() {
			if _, ok := inst.(*ir.CallInst); ok && aa.CanInstructionAccessPointer(inst, cand.pointer, analysis.AccessAll) != analysis.AliasNever {
				clobbers[inst] = true
			}
		}
	}
	preheader := analysis.GetOrCreatePreheader(fn, loop)
	dedicatedExit := analysis.GetOrCreateDedicatedExit(fn, loop, exit)

	slot := ir.Before(preheader.Terminator()).StackAlloc(ctx, cand.elem, 1)
	initial := ir.Before(preheader.Terminator()).Load(ctx, cand.pointer)
	ir.Before(preheader.Terminator()).Store(ctx, ir.Value(slot), ir.Value(initial))

	for b := range loop.Blocks {
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			switch v := inst.(type) {
			case *ir.LoadInst:
				if v.Pointer() == cand.pointer {
					v.SetOperand(0, ir.Value(slot))
				}
			case *ir.StoreInst:
				if v.Pointer() == cand.pointer {
					v.SetOperand(0, ir.Value(slot))
				}
			case *ir.CallInst:
				if clobbers[inst] {
					flushed := ir.Before(inst).Load(ctx, ir.Value(slot))
					ir.Before(inst).Store(ctx, cand.pointer, ir.Value(flushed))
					reload := ir.After(inst).Load(ctx, cand.pointer)
					ir.After(inst).Store(ctx, ir.Value(slot), ir.Value(reload))
				}
			}
		}
	}

	final := ir.Before(dedicatedExit.Terminator()).Load(ctx, ir.Value(slot))
	ir.Before(dedicatedExit.Terminator()).Store(ctx, cand.pointer, ir.Value(final))
}
