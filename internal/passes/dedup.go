// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"fmt"
	"strings"
	"turbine/internal/analysis"
	"turbine/internal/ir"
)

// InstructionDeduplication replaces an instruction with an earlier,
// identical one already computed in the same block: two instructions
// are identical when they share an opcode, a result type, and operands
// that match up to commutative reordering. Loads additionally require
// that nothing between the two may have stored through the pointer.
// Spec §4.9.8.
func InstructionDeduplication(fn *ir.Function) bool {
	changed := false
	aa := analysis.BuildPointerAliasing(fn)
	for _, b := range fn.Blocks() {
		seen := make(map[string][]ir.Instruction)
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			if !eligibleForDedup(inst) {
				continue
			}
			key := identifierFor(inst)
			var replacement ir.Instruction
			for _, candidate := range seen[key] {
				if candidate.Block() == nil {
					continue
				}
				if load, isLoad := inst.(*ir.LoadInst); isLoad {
					if storeMayIntervene(aa, candidate, load) {
						continue
					}
				}
				replacement = candidate
				break
			}
			if replacement != nil {
				ir.ReplaceUses(inst, replacement)
				ir.DestroyInstruction(inst)
				aa = analysis.BuildPointerAliasing(fn)
				changed = true
				continue
			}
			seen[key] = append(seen[key], inst)
		}
	}
	return changed
}

// eligibleForDedup excludes volatile instructions (Store, Call, Branch,
// CondBranch, Ret cannot be deduplicated as pure values) and Phis (each
// has its own identity tied to its position).
func eligibleForDedup(inst ir.Instruction) bool {
	if inst.IsVolatile() {
		return false
	}
	if _, ok := inst.(*ir.PhiInst); ok {
		return false
	}
	return true
}

// identifierFor builds a hash-friendly key from opcode, result type and
// operands, canonicalizing operand order for commutative opcodes so
// `add a,b` and `add b,a` collide.
func identifierFor(inst ir.Instruction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s", inst.Opcode(), inst.Type())

	operands := make([]string, inst.OperandCount())
	for i := 0; i < inst.OperandCount(); i++ {
		operands[i] = operandKey(inst.Operand(i))
	}
	if inst.Opcode().IsCommutative() && len(operands) == 2 && operands[0] > operands[1] {
		operands[0], operands[1] = operands[1], operands[0]
	}
	for _, o := range operands {
		sb.WriteByte('|')
		sb.WriteString(o)
	}

	if ci, ok := inst.(*ir.CastInst); ok {
		fmt.Fprintf(&sb, "|dst=%s", ci.Type())
		_ = ci
	}
	if sa, ok := inst.(*ir.StackAllocInst); ok {
		fmt.Fprintf(&sb, "|elem=%s|size=%d", sa.ElemType(), sa.Size())
	}
	return sb.String()
}

func operandKey(v ir.Value) string {
	return fmt.Sprintf("%p:%s", v, v.Type())
}

// storeMayIntervene reports whether any instruction strictly between
// prior and load in the same block may store through a pointer aliasing
// load's pointer.
func storeMayIntervene(aa *analysis.PointerAliasing, prior ir.Instruction, load *ir.LoadInst) bool {
	insts := prior.Block().Instructions()
	startIdx, endIdx := -1, -1
	for i, in := range insts {
		if in == prior {
			startIdx = i
		}
		if in == ir.Instruction(load) {
			endIdx = i
		}
	}
	if startIdx < 0 || endIdx < 0 || startIdx >= endIdx {
		return true
	}
	for i := startIdx + 1; i < endIdx; i++ {
		if aa.CanInstructionAccessPointer(insts[i], load.Pointer(), analysis.AccessStore) != analysis.AliasNever {
			return true
		}
	}
	return false
}
