// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"turbine/internal/analysis"
	"turbine/internal/ir"
)

// KnownLoadElimination forwards a Store's value straight through a later
// Load of the same pointer, first locally (tracking the most recent
// Store per pointer within a block) and then globally, using the path
// validator to prove no intervening instruction on any path from the
// Store to the Load can alias-write the pointer. Spec §4.9.7.
func KnownLoadElimination(fn *ir.Function) bool {
	changed := false
	aa := analysis.BuildPointerAliasing(fn)
	if localKnownLoadElimination(fn, aa) {
		changed = true
		aa = analysis.BuildPointerAliasing(fn)
	}
	if globalKnownLoadElimination(fn, aa) {
		changed = true
	}
	return changed
}

type knownStore struct {
	pointer ir.Value
	value   ir.Value
}

func localKnownLoadElimination(fn *ir.Function, aa *analysis.PointerAliasing) bool {
	changed := false
	for _, b := range fn.Blocks() {
		var knowns []knownStore
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			switch v := inst.(type) {
			case *ir.StoreInst:
				knowns = filterKnowns(knowns, func(p ir.Value) bool {
					return aa.CanAlias(p, v.Pointer()) != analysis.AliasNever
				})
				knowns = append(knowns, knownStore{pointer: v.Pointer(), value: v.Value_()})
			case *ir.LoadInst:
				found := false
				for _, k := range knowns {
					if aa.CanAlias(k.pointer, v.Pointer()) == analysis.AliasAlways {
						ir.ReplaceUses(inst, k.value)
						ir.DestroyInstruction(inst)
						aa = analysis.BuildPointerAliasing(fn)
						changed = true
						found = true
						break
					}
				}
				if !found {
					knowns = filterKnowns(knowns, func(p ir.Value) bool {
						return aa.CanAlias(p, v.Pointer()) != analysis.AliasNever
					})
				}
			case *ir.CallInst:
				knowns = filterKnowns(knowns, func(p ir.Value) bool {
					for _, arg := range v.Args() {
						if ir.IsPointer(arg.Type()) && aa.CanAlias(p, arg) != analysis.AliasNever {
							return true
						}
					}
					return false
				})
			}
		}
	}
	return changed
}

// filterKnowns drops any tracked (pointer, value) fact whose pointer may
// alias-write, since an intervening write invalidates the fact.
func filterKnowns(knowns []knownStore, killed func(ir.Value) bool) []knownStore {
	out := knowns[:0]
	for _, k := range knowns {
		if !killed(k.pointer) {
			out = append(out, k)
		}
	}
	return out
}

// globalKnownLoadElimination looks, for each Load, at every Store that
// provably targets the same pointer and checks via PathValidator (mode
// MemoryKillEnd) that along every path from the Store to the Load, no
// instruction may write through an aliasing pointer.
func globalKnownLoadElimination(fn *ir.Function, aa *analysis.PointerAliasing) bool {
	changed := false
	dom := analysis.BuildDominatorTree(fn)
	pv := analysis.NewPathValidator(dom)

	var stores []*ir.StoreInst
	for _, b := range fn.Blocks() {
		for _, inst := range b.Instructions() {
			if s, ok := inst.(*ir.StoreInst); ok {
				stores = append(stores, s)
			}
		}
	}

	for _, b := range fn.Blocks() {
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			load, ok := inst.(*ir.LoadInst)
			if !ok {
				continue
			}
			for _, store := range stores {
				if store.Block() == nil || store == ir.Instruction(load) {
					continue
				}
				if aa.CanAlias(store.Pointer(), load.Pointer()) != analysis.AliasAlways {
					continue
				}
				verifier := func(i ir.Instruction) bool {
					return !mayWrite(i, aa, load.Pointer())
				}
				if _, ok := pv.ValidatePath(store, load, analysis.MemoryKillEnd, verifier); ok {
					ir.ReplaceUses(load, store.Value_())
					ir.DestroyInstruction(load)
					aa = analysis.BuildPointerAliasing(fn)
					pv = analysis.NewPathValidator(analysis.BuildDominatorTree(fn))
					changed = true
					break
				}
			}
		}
	}
	return changed
}

func mayWrite(inst ir.Instruction, aa *analysis.PointerAliasing, pointer ir.Value) bool {
	if store, ok := inst.(*ir.StoreInst); ok {
		return aa.CanAlias(store.Pointer(), pointer) != analysis.AliasNever
	}
	if _, ok := inst.(*ir.CallInst); ok {
		return aa.CanInstructionAccessPointer(inst, pointer, analysis.AccessStore) != analysis.AliasNever
	}
	return false
}
