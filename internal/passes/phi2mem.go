// SPDX-License-Identifier: Apache-2.0
package passes

import "turbine/internal/ir"

// PhiToMemory lowers every Phi to a StackAlloc shared across its
// incoming edges: each incoming block gets a Store of its incoming
// value right before its terminator, and the Phi itself is replaced by
// a Load at its original position. Run before register pressure
// reduction, which expects memory rather than Phi merges. Spec §4.9.11.
func PhiToMemory(fn *ir.Function) bool {
	changed := false
	ctx := fn.Module().Context()
	entry := fn.Entry()

	for _, b := range fn.Blocks() {
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			phi, ok := inst.(*ir.PhiInst)
			if !ok {
				continue
			}
			slot := ir.AtBlockFront(entry).StackAlloc(ctx, phi.Type(), 1)

			for k := 0; k < phi.IncomingCount(); k++ {
				pred := phi.IncomingBlock(k)
				val := phi.IncomingValue(k)
				term := pred.Terminator()
				ir.Before(term).Store(ctx, ir.Value(slot), val)
			}

			load := ir.Before(phi).Load(ctx, ir.Value(slot))
			ir.ReplaceUses(phi, ir.Value(load))
			ir.DestroyInstruction(phi)
			changed = true
		}
	}
	return changed
}
