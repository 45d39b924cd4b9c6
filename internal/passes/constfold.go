// SPDX-License-Identifier: Apache-2.0
package passes

import "turbine/internal/ir"

// ConstantPropagation folds every instruction whose operands are already
// constants: unary/binary arithmetic, compares, selects on a constant
// condition, casts, and a CondBranch on a constant condition (which
// becomes an unconditional Branch, exposing its now-unreachable target
// to DeadBlockElimination). Spec §4.9.1.
func ConstantPropagation(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks() {
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			if foldInstruction(inst) {
				changed = true
			}
		}
	}
	return changed
}

func foldInstruction(inst ir.Instruction) bool {
	ctx := inst.Context()
	switch i := inst.(type) {
	case *ir.UnaryInst:
		c, ok := asConstant(i.X())
		if !ok {
			return false
		}
		bits := ir.BitSize(i.Type())
		result := ctx.GetConstant(i.Type(), evalUnary(i.Opcode(), bits, c.Uint64()))
		ir.ReplaceUses(inst, result)
		ir.DestroyInstruction(inst)
		return true

	case *ir.BinaryInst:
		l, lok := asConstant(i.LHS())
		r, rok := asConstant(i.RHS())
		if !lok || !rok {
			return false
		}
		bits := ir.BitSize(i.Type())
		v, ok := evalBinary(i.Opcode(), bits, l.Uint64(), r.Uint64())
		if !ok {
			return false
		}
		result := ctx.GetConstant(i.Type(), v)
		ir.ReplaceUses(inst, result)
		ir.DestroyInstruction(inst)
		return true

	case *ir.IntCompareInst:
		l, lok := asConstant(i.LHS())
		r, rok := asConstant(i.RHS())
		if !lok || !rok {
			return false
		}
		bits := ir.BitSize(i.LHS().Type())
		v := evalCompare(i.Predicate(), bits, l.Uint64(), r.Uint64())
		result := ctx.GetConstant(ctx.I1(), boolBits(v))
		ir.ReplaceUses(inst, result)
		ir.DestroyInstruction(inst)
		return true

	case *ir.SelectInst:
		c, ok := asConstant(i.Condition())
		if !ok {
			return false
		}
		var result ir.Value
		if c.Bool() {
			result = i.IfTrue()
		} else {
			result = i.IfFalse()
		}
		ir.ReplaceUses(inst, result)
		ir.DestroyInstruction(inst)
		return true

	case *ir.CastInst:
		c, ok := asConstant(i.Src())
		if !ok {
			return false
		}
		srcBits := ir.BitSize(i.Src().Type())
		dstBits := ir.BitSize(i.Type())
		v := evalCast(i.Opcode(), srcBits, dstBits, c.Uint64())
		result := ctx.GetConstant(i.Type(), v)
		ir.ReplaceUses(inst, result)
		ir.DestroyInstruction(inst)
		return true

	case *ir.CondBranchInst:
		c, ok := asConstant(i.Condition())
		if !ok {
			return false
		}
		var taken, dropped *ir.Block
		if c.Bool() {
			taken, dropped = i.TrueTarget(), i.FalseTarget()
		} else {
			taken, dropped = i.FalseTarget(), i.TrueTarget()
		}
		b := inst.Block()
		ir.DestroyInstruction(inst)
		ir.AtBlockBack(b).Branch(ctx, taken)
		if taken != dropped {
			stripUnreachablePredecessor(dropped, b)
		}
		return true
	}
	return false
}

func boolBits(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// stripUnreachablePredecessor drops pred's incoming pair from every Phi
// in target now that pred no longer branches there. target may still be
// reachable through some other edge; only the pred-specific pair goes.
func stripUnreachablePredecessor(target, pred *ir.Block) {
	for _, inst := range target.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		phi.RemoveIncoming(pred)
	}
}
