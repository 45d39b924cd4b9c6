// SPDX-License-Identifier: Apache-2.0
package passes

import "turbine/internal/ir"

// MemoryToSSA promotes every scalar StackAlloc (size 1) whose only users
// are Load and Store-as-address into SSA values: a DFS over blocks
// reachable from the allocation threads the "current value" forward,
// inserting a Phi at a block's head the first time it needs one (never
// in the entry block, which always has a known initial value), and
// fills Phi operands in afterward from each predecessor's recorded exit
// value, defaulting to undef for a predecessor that never reached the
// allocation. Spec §4.9.9.
func MemoryToSSA(fn *ir.Function) bool {
	changed := false
	for _, inst := range allocationCandidates(fn) {
		if promoteAllocation(fn, inst) {
			changed = true
		}
	}
	return changed
}

func allocationCandidates(fn *ir.Function) []*ir.StackAllocInst {
	var out []*ir.StackAllocInst
	for _, b := range fn.Blocks() {
		for _, inst := range b.Instructions() {
			sa, ok := inst.(*ir.StackAllocInst)
			if !ok || !sa.IsScalar() {
				continue
			}
			if isPromotable(sa) {
				out = append(out, sa)
			}
		}
	}
	return out
}

func isPromotable(sa *ir.StackAllocInst) bool {
	promotable := true
	sa.Uses().ForEachSafe(func(u *ir.Use) {
		if !promotable {
			return
		}
		switch user := u.User().(type) {
		case *ir.LoadInst:
		case *ir.StoreInst:
			if user.Pointer() != ir.Value(sa) {
				promotable = false
			}
		default:
			promotable = false
		}
	})
	return promotable
}

func promoteAllocation(fn *ir.Function, sa *ir.StackAllocInst) bool {
	ctx := fn.Module().Context()
	elemType := sa.ElemType()
	entry := fn.Entry()

	current := make(map[*ir.Block]ir.Value)
	insertedPhi := make(map[*ir.Block]*ir.PhiInst)
	visited := make(map[*ir.Block]bool)

	var walk func(b *ir.Block, incoming ir.Value) ir.Value
	walk = func(b *ir.Block, incoming ir.Value) ir.Value {
		if visited[b] {
			return current[b]
		}
		visited[b] = true

		val := incoming
		if b != entry {
			phi := ir.AtBlockFront(b).Phi(ctx, elemType)
			insertedPhi[b] = phi
			val = ir.Value(phi)
		}

		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			switch v := inst.(type) {
			case *ir.LoadInst:
				if v.Pointer() == ir.Value(sa) {
					ir.ReplaceUses(inst, val)
					ir.DestroyInstruction(inst)
				}
			case *ir.StoreInst:
				if v.Pointer() == ir.Value(sa) {
					val = v.Value_()
					ir.DestroyInstruction(inst)
				}
			}
		}
		current[b] = val

		for _, s := range ir.Successors(b) {
			walk(s, val)
		}
		return val
	}
	walk(entry, ctx.GetUndef(elemType))

	for b, phi := range insertedPhi {
		for _, pred := range b.Predecessors() {
			v, ok := current[pred]
			if !ok {
				v = ctx.GetUndef(elemType)
			}
			phi.AddIncoming(pred, v)
		}
	}
	for _, phi := range insertedPhi {
		simplifyPhisInBlock(phi.Block())
	}

	if sa.Uses().Empty() {
		ir.DestroyInstruction(sa)
	}
	return true
}
