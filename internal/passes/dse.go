// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"turbine/internal/analysis"
	"turbine/internal/ir"
)

// DeadStoreElimination removes a Store that is provably overwritten by a
// later Store to the same pointer before any intervening Load could
// observe it, both within a block (tracking the most recent Store per
// pointer) and, failing that, across the whole function via the path
// validator: a Store is dead if every path from it to a later Store to
// an aliasing pointer is free of any instruction that might read through
// an aliasing pointer. Spec §4.9.6.
func DeadStoreElimination(fn *ir.Function) bool {
	changed := false
	aa := analysis.BuildPointerAliasing(fn)
	if localDeadStoreElimination(fn, aa) {
		changed = true
		aa = analysis.BuildPointerAliasing(fn)
	}
	if globalDeadStoreElimination(fn, aa) {
		changed = true
	}
	return changed
}

// localDeadStoreElimination tracks, per block, the most recent Store to
// each canonical pointer; a second Store to the same pointer with no
// intervening instruction that may alias-read or alias-write it in
// between makes the earlier Store dead.
func localDeadStoreElimination(fn *ir.Function, aa *analysis.PointerAliasing) bool {
	changed := false
	for _, b := range fn.Blocks() {
		var lastStores []*ir.StoreInst
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			store, isStore := inst.(*ir.StoreInst)
			if load, isLoad := inst.(*ir.LoadInst); isLoad {
				lastStores = killAliasing(lastStores, aa, load.Pointer())
				continue
			}
			if call, isCall := inst.(*ir.CallInst); isCall {
				for _, arg := range call.Args() {
					if ir.IsPointer(arg.Type()) {
						lastStores = killAliasing(lastStores, aa, arg)
					}
				}
				continue
			}
			if !isStore {
				continue
			}
			for idx, prior := range lastStores {
				if aa.CanAlias(prior.Pointer(), store.Pointer()) == analysis.AliasAlways {
					ir.DestroyInstruction(prior)
					aa = analysis.BuildPointerAliasing(fn)
					lastStores[idx] = nil
					changed = true
				}
			}
			compacted := lastStores[:0]
			for _, s := range lastStores {
				if s != nil {
					compacted = append(compacted, s)
				}
			}
			lastStores = append(compacted, store)
		}
	}
	return changed
}

// killAliasing drops every tracked store that might be observed through
// accessed, since a Load/Call through an aliasing pointer means an
// earlier store to it is no longer provably dead.
func killAliasing(stores []*ir.StoreInst, aa *analysis.PointerAliasing, accessed ir.Value) []*ir.StoreInst {
	out := stores[:0]
	for _, s := range stores {
		if aa.CanAlias(s.Pointer(), accessed) == analysis.AliasNever {
			out = append(out, s)
		}
	}
	return out
}

// globalDeadStoreElimination looks, for each Store, for a later Store to
// a provably-same pointer such that no instruction on any path between
// them may read through an aliasing pointer; if so the earlier store is
// dead regardless of block boundaries.
func globalDeadStoreElimination(fn *ir.Function, aa *analysis.PointerAliasing) bool {
	changed := false
	dom := analysis.BuildDominatorTree(fn)
	pv := analysis.NewPathValidator(dom)

	var allStores []*ir.StoreInst
	for _, b := range fn.Blocks() {
		for _, inst := range b.Instructions() {
			if s, ok := inst.(*ir.StoreInst); ok {
				allStores = append(allStores, s)
			}
		}
	}

	for _, earlier := range allStores {
		if earlier.Block() == nil {
			continue
		}
		for _, later := range allStores {
			if later == earlier || later.Block() == nil {
				continue
			}
			if aa.CanAlias(earlier.Pointer(), later.Pointer()) != analysis.AliasAlways {
				continue
			}
			verifier := func(inst ir.Instruction) bool {
				return !mayObserve(inst, aa, earlier.Pointer())
			}
			if _, ok := pv.ValidatePath(earlier, later, analysis.MemoryKillNone, verifier); ok {
				ir.DestroyInstruction(earlier)
				aa = analysis.BuildPointerAliasing(fn)
				pv = analysis.NewPathValidator(analysis.BuildDominatorTree(fn))
				changed = true
				break
			}
		}
	}
	return changed
}

// mayObserve reports whether inst might read the value currently behind
// pointer (a Load that may alias it, or a Call that may read through
// it).
func mayObserve(inst ir.Instruction, aa *analysis.PointerAliasing, pointer ir.Value) bool {
	if load, ok := inst.(*ir.LoadInst); ok {
		return aa.CanAlias(load.Pointer(), pointer) != analysis.AliasNever
	}
	if _, ok := inst.(*ir.CallInst); ok {
		return aa.CanInstructionAccessPointer(inst, pointer, analysis.AccessLoad) != analysis.AliasNever
	}
	return false
}
