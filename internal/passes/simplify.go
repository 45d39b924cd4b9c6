// SPDX-License-Identifier: Apache-2.0
package passes

import "turbine/internal/ir"

// GeneralSimplification applies the algebraic identities of spec §4.9.2:
// sub X,X -> 0; add X,0 -> X; mul X,0 -> 0; mul X,1 -> X; mul X,2^k ->
// shl X,k. It also collapses single-incoming and dead Phis.
func GeneralSimplification(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks() {
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			if simplifyInstruction(inst) {
				changed = true
			}
		}
		if simplifyPhisInBlock(b) {
			changed = true
		}
	}
	return changed
}

func simplifyInstruction(inst ir.Instruction) bool {
	bin, ok := inst.(*ir.BinaryInst)
	if !ok {
		return false
	}
	ctx := inst.Context()
	lhs, rhs := bin.LHS(), bin.RHS()
	typ := bin.Type()

	switch bin.Opcode() {
	case ir.OpSub:
		if lhs == rhs {
			replaceWithConstant(inst, ctx.GetConstant(typ, 0))
			return true
		}
	case ir.OpAdd:
		if isConstantValue(rhs, 0) {
			ir.ReplaceUses(inst, lhs)
			ir.DestroyInstruction(inst)
			return true
		}
		if isConstantValue(lhs, 0) {
			ir.ReplaceUses(inst, rhs)
			ir.DestroyInstruction(inst)
			return true
		}
	case ir.OpMul:
		if isConstantValue(rhs, 0) || isConstantValue(lhs, 0) {
			replaceWithConstant(inst, ctx.GetConstant(typ, 0))
			return true
		}
		if isConstantValue(rhs, 1) {
			ir.ReplaceUses(inst, lhs)
			ir.DestroyInstruction(inst)
			return true
		}
		if isConstantValue(lhs, 1) {
			ir.ReplaceUses(inst, rhs)
			ir.DestroyInstruction(inst)
			return true
		}
		if c, ok := asConstant(rhs); ok {
			if k, isPow2 := log2(c.Uint64()); isPow2 {
				b := inst.Block()
				shift := ctx.GetConstant(typ, uint64(k))
				repl := ir.Before(inst).Shl(ctx, lhs, shift)
				ir.ReplaceUses(inst, repl)
				ir.DestroyInstruction(inst)
				_ = b
				return true
			}
		}
	}
	return false
}

func isConstantValue(v ir.Value, want uint64) bool {
	c, ok := asConstant(v)
	return ok && c.Uint64() == want
}

func replaceWithConstant(inst ir.Instruction, c *ir.ConstantValue) {
	ir.ReplaceUses(inst, c)
	ir.DestroyInstruction(inst)
}

// log2 reports whether v is a power of two (and not zero), returning the
// exponent.
func log2(v uint64) (int, bool) {
	if v == 0 || v&(v-1) != 0 {
		return 0, false
	}
	k := 0
	for v > 1 {
		v >>= 1
		k++
	}
	return k, true
}

// simplifyPhisInBlock collapses every Phi in b with exactly one distinct
// non-self incoming value to that value, and destroys Phis left with no
// users once simplified elsewhere.
func simplifyPhisInBlock(b *ir.Block) bool {
	changed := false
	for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			continue
		}
		if v, ok := singleIncomingValue(phi); ok {
			ir.ReplaceUses(phi, v)
			ir.DestroyInstruction(phi)
			changed = true
			continue
		}
		if phi.IncomingCount() == 0 || phi.Uses().Empty() {
			ir.DestroyInstruction(phi)
			changed = true
		}
	}
	return changed
}

// singleIncomingValue reports the one distinct value a Phi reduces to,
// treating self-references as transparent (they carry no information).
func singleIncomingValue(phi *ir.PhiInst) (ir.Value, bool) {
	var v ir.Value
	for k := 0; k < phi.IncomingCount(); k++ {
		iv := phi.IncomingValue(k)
		if iv == ir.Value(phi) {
			continue
		}
		if v == nil {
			v = iv
		} else if v != iv {
			return nil, false
		}
	}
	if v == nil {
		return nil, false
	}
	return v, true
}
