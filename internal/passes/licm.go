// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"turbine/internal/analysis"
	"turbine/internal/ir"
)

// LoopInvariantCodeMotion hoists, for every loop, each instruction that
// is not volatile, not a Load, not a Phi, and whose every non-constant,
// non-parameter operand is itself loop-invariant, into the loop's
// preheader (materializing one if none exists). A header Phi with a
// self-reference whose every other incoming value comes from outside
// the loop counts as invariant too, purely so other instructions that
// read it can still qualify; the Phi itself never moves. Spec §4.9.14.
func LoopInvariantCodeMotion(fn *ir.Function) bool {
	changed := false
	forest := analysis.BuildLoopForest(fn)
	for _, loop := range flattenLoopsInnermostFirst(forest) {
		if hoistLoopInvariants(fn, loop) {
			changed = true
		}
	}
	return changed
}

func flattenLoopsInnermostFirst(forest *analysis.LoopForest) []*analysis.Loop {
	var out []*analysis.Loop
	var visit func(loops []*analysis.Loop)
	visit = func(loops []*analysis.Loop) {
		for _, l := range loops {
			visit(l.SubLoops)
			out = append(out, l)
		}
	}
	visit(forest.Loops)
	return out
}

func hoistLoopInvariants(fn *ir.Function, loop *analysis.Loop) bool {
	invariant := computeLoopInvariants(loop)

	var toMove []ir.Instruction
	for _, b := range orderedLoopBlocks(fn, loop) {
		for _, inst := range b.Instructions() {
			if _, ok := inst.(*ir.PhiInst); ok {
				continue
			}
			if invariant[inst] {
				toMove = append(toMove, inst)
			}
		}
	}
	if len(toMove) == 0 {
		return false
	}

	preheader := analysis.GetOrCreatePreheader(fn, loop)
	term := preheader.Terminator()
	touched := map[*ir.Block]bool{preheader: true, loop.Header: true}
	for _, inst := range toMove {
		origin := inst.Block()
		touched[origin] = true
		ir.DetachInstruction(inst)
		preheader.InsertBefore(term, inst)
	}
	for b := range touched {
		simplifyPhisInBlock(b)
	}
	return true
}

// orderedLoopBlocks returns loop's member blocks in the function's
// block order, so dependency order among invariants is preserved.
func orderedLoopBlocks(fn *ir.Function, loop *analysis.Loop) []*ir.Block {
	var out []*ir.Block
	for _, b := range fn.Blocks() {
		if loop.Blocks[b] {
			out = append(out, b)
		}
	}
	return out
}

// computeLoopInvariants runs a fixpoint over loop's instructions,
// classifying each as invariant once every operand it reads is a
// constant, a parameter, or already known invariant.
func computeLoopInvariants(loop *analysis.Loop) map[ir.Instruction]bool {
	invariant := make(map[ir.Instruction]bool)
	for {
		changed := false
		for b := range loop.Blocks {
			for _, inst := range b.Instructions() {
				if invariant[inst] {
					continue
				}
				if classifyLoopInvariant(inst, loop, invariant) {
					invariant[inst] = true
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
	return invariant
}

func classifyLoopInvariant(inst ir.Instruction, loop *analysis.Loop, invariant map[ir.Instruction]bool) bool {
	if phi, ok := inst.(*ir.PhiInst); ok {
		if phi.Block() != loop.Header {
			return false
		}
		sawOutside := false
		for k := 0; k < phi.IncomingCount(); k++ {
			pred := phi.IncomingBlock(k)
			val := phi.IncomingValue(k)
			if val == ir.Value(phi) {
				continue
			}
			if loop.Blocks[pred] {
				return false
			}
			sawOutside = true
		}
		return sawOutside
	}

	if inst.IsVolatile() {
		return false
	}
	if _, ok := inst.(*ir.LoadInst); ok {
		return false
	}
	for i := 0; i < inst.OperandCount(); i++ {
		if !operandIsLoopInvariant(inst.Operand(i), loop, invariant) {
			return false
		}
	}
	return true
}

func operandIsLoopInvariant(v ir.Value, loop *analysis.Loop, invariant map[ir.Instruction]bool) bool {
	switch op := v.(type) {
	case *ir.ConstantValue, *ir.Parameter, *ir.UndefValue:
		return true
	case ir.Instruction:
		if !loop.Blocks[op.Block()] {
			return true
		}
		return invariant[op]
	default:
		return true
	}
}
