// SPDX-License-Identifier: Apache-2.0
package ir

// DetachInstruction unlinks inst from its current block's instruction
// list without touching its operands or uses, leaving it ready to be
// spliced into another position via PushBack/PushFront/InsertBefore/
// InsertAfter. Unlike DestroyInstruction this is not a lifetime
// operation: passes use it to relocate code (block merging, LICM,
// global reordering), never to delete it.
func DetachInstruction(inst Instruction) {
	if b := inst.Block(); b != nil {
		b.remove(inst)
	}
}
