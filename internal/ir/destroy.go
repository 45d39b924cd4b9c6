// SPDX-License-Identifier: Apache-2.0
package ir

// DestroyInstruction removes inst from its block. If inst has a
// (non-void) result with remaining users, those users are first
// rewritten to reference undef of the same type — the instruction's
// operands are then cleared (unlinking their uses) and it is unlinked
// from its block. It is a programmer error to destroy an instruction
// that still has live uses and no result to replace them with (can only
// happen to a void instruction, which should never have been used).
func DestroyInstruction(inst Instruction) {
	if !inst.Uses().Empty() {
		if !HasResult(inst) {
			invariantViolation("DestroyInstruction: void instruction has live uses")
		}
		ReplaceUses(inst, inst.Context().GetUndef(inst.Type()))
	}
	for i := 0; i < inst.OperandCount(); i++ {
		inst.SetOperand(i, nil)
	}
	if b := inst.Block(); b != nil {
		b.remove(inst)
	}
}

// DestroyBlock removes b from its function. b must already be empty of
// instructions. Any Phi instructions elsewhere that still list b as an
// incoming predecessor have that incoming pair stripped first; if b is
// still referenced by anything else afterward (e.g. held as a Branch
// target), destruction is a programmer error — the caller must redirect
// those edges first.
func DestroyBlock(b *Block) {
	if !b.Empty() {
		invariantViolation("DestroyBlock: block %q is not empty", b.label)
	}
	b.Uses().ForEachSafe(func(u *Use) {
		if phi, ok := u.User().(*PhiInst); ok {
			phi.RemoveIncoming(b)
		}
	})
	if !b.Uses().Empty() {
		invariantViolation("DestroyBlock: block %q still has users", b.label)
	}
	if b.parent != nil {
		b.parent.removeBlock(b)
	}
}

// DestroyFunction tears down fn: every block's instructions are
// destroyed last-instruction-first (so an instruction's remaining
// intra-block users are already gone or folded to undef by the time it
// is reached), each block is then destroyed, last block first, with the
// entry block removed last. The function is finally removed from its
// module, if any.
func DestroyFunction(fn *Function) {
	blocks := append([]*Block(nil), fn.blocks...)
	for idx := len(blocks) - 1; idx >= 0; idx-- {
		insts := append([]Instruction(nil), blocks[idx].instructions...)
		for k := len(insts) - 1; k >= 0; k-- {
			DestroyInstruction(insts[k])
		}
	}
	for idx := len(blocks) - 1; idx >= 0; idx-- {
		DestroyBlock(blocks[idx])
	}
	if fn.module != nil {
		fn.module.RemoveFunction(fn.name)
	}
}
