// SPDX-License-Identifier: Apache-2.0
package passes

import "turbine/internal/ir"

// condFlattenThreshold caps how many instructions a movable triangle or
// diamond body may contain before it is no longer worth flattening into
// branchless code.
const condFlattenThreshold = 4

// ConditionalFlattening rewrites small triangle/diamond conditionals
// into branchless code: a symmetric diamond A->{B,C}->D with B and C
// each holding a small movable body collapses B and C's instructions
// into D's front, turns D's Phis into Selects keyed on A's original
// condition, and repoints A straight at D. A skewed triangle A->B->D
// with A->D also reachable directly is handled the same way, treating
// the direct edge as the empty arm. Spec §4.9.12.
func ConditionalFlattening(fn *ir.Function) bool {
	changed := false
	for _, a := range fn.Blocks() {
		cond, ok := a.Terminator().(*ir.CondBranchInst)
		if !ok {
			continue
		}
		if flattenSymmetric(a, cond) {
			changed = true
			continue
		}
		if flattenSkewed(a, cond) {
			changed = true
		}
	}
	return changed
}

func flattenSymmetric(a *ir.Block, cond *ir.CondBranchInst) bool {
	b, c := cond.TrueTarget(), cond.FalseTarget()
	if b == c || b == a || c == a {
		return false
	}
	bBr, ok := soleTargetBranch(b)
	if !ok {
		return false
	}
	cBr, ok := soleTargetBranch(c)
	if !ok {
		return false
	}
	d := bBr.Target()
	if cBr.Target() != d || d == a || d == b || d == c {
		return false
	}
	if len(b.Predecessors()) != 1 || len(c.Predecessors()) != 1 {
		return false
	}
	if len(d.Predecessors()) != 2 {
		return false
	}
	bBody, ok := flattenableBody(b)
	if !ok {
		return false
	}
	cBody, ok := flattenableBody(c)
	if !ok {
		return false
	}

	condition := cond.Condition()
	collapsePhisToSelect(d, condition, b, c)

	insertBodyAtFront(d, cBody)
	insertBodyAtFront(d, bBody)

	ir.DestroyInstruction(bBr)
	ir.DestroyInstruction(cBr)

	ctx := a.Function().Module().Context()
	ir.DestroyInstruction(cond)
	ir.AtBlockBack(a).Branch(ctx, d)

	ir.DestroyBlock(b)
	ir.DestroyBlock(c)
	return true
}

func flattenSkewed(a *ir.Block, cond *ir.CondBranchInst) bool {
	tryArm := func(body, direct *ir.Block, bodyIsTrue bool) bool {
		if body == a || body == direct {
			return false
		}
		br, ok := soleTargetBranch(body)
		if !ok || br.Target() != direct {
			return false
		}
		if len(body.Predecessors()) != 1 {
			return false
		}
		if len(direct.Predecessors()) != 2 {
			return false
		}
		bodyInsts, ok := flattenableBody(body)
		if !ok {
			return false
		}

		condition := cond.Condition()
		for _, inst := range append([]ir.Instruction(nil), direct.Instructions()...) {
			phi, ok := inst.(*ir.PhiInst)
			if !ok {
				break
			}
			viaBody, ok1 := phi.ValueForBlock(body)
			viaDirect, ok2 := phi.ValueForBlock(a)
			if !ok1 || !ok2 {
				continue
			}
			var sel *ir.SelectInst
			ctx := direct.Function().Module().Context()
			if bodyIsTrue {
				sel = ir.Before(phi).Select(ctx, condition, viaBody, viaDirect)
			} else {
				sel = ir.Before(phi).Select(ctx, condition, viaDirect, viaBody)
			}
			ir.ReplaceUses(phi, ir.Value(sel))
			ir.DestroyInstruction(phi)
		}

		insertBodyAtFront(direct, bodyInsts)

		ir.DestroyInstruction(br)

		ctx := a.Function().Module().Context()
		ir.DestroyInstruction(cond)
		ir.AtBlockBack(a).Branch(ctx, direct)

		ir.DestroyBlock(body)
		return true
	}

	if tryArm(cond.TrueTarget(), cond.FalseTarget(), true) {
		return true
	}
	return tryArm(cond.FalseTarget(), cond.TrueTarget(), false)
}

// soleTargetBranch reports whether b ends in an unconditional Branch,
// returning it; whatever precedes it is the arm's body, which
// flattenableBody then vets.
func soleTargetBranch(b *ir.Block) (*ir.BranchInst, bool) {
	br, ok := b.Terminator().(*ir.BranchInst)
	return br, ok
}

// flattenableBody reports whether b, minus its terminator, is small
// enough and free enough of side effects (no volatile instruction, no
// Load, no Phi) to be hoisted wholesale into another block.
func flattenableBody(b *ir.Block) ([]ir.Instruction, bool) {
	insts := b.Instructions()
	if len(insts) == 0 {
		return nil, false
	}
	body := insts[:len(insts)-1]
	if len(body) >= condFlattenThreshold {
		return nil, false
	}
	for _, inst := range body {
		if inst.IsVolatile() {
			return nil, false
		}
		switch inst.(type) {
		case *ir.LoadInst, *ir.PhiInst:
			return nil, false
		}
	}
	return append([]ir.Instruction(nil), body...), true
}

// collapsePhisToSelect rewrites every Phi at the front of d, whose
// incoming pair is exactly (trueBlock, falseBlock), into a Select on
// condition.
func collapsePhisToSelect(d *ir.Block, condition ir.Value, trueBlock, falseBlock *ir.Block) {
	ctx := d.Function().Module().Context()
	for _, inst := range append([]ir.Instruction(nil), d.Instructions()...) {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		tv, tok := phi.ValueForBlock(trueBlock)
		fv, fok := phi.ValueForBlock(falseBlock)
		if !tok || !fok {
			continue
		}
		sel := ir.Before(phi).Select(ctx, condition, tv, fv)
		ir.ReplaceUses(phi, ir.Value(sel))
		ir.DestroyInstruction(phi)
	}
}

// insertBodyAtFront splices body, in its original relative order, in
// front of d's current first instruction.
func insertBodyAtFront(d *ir.Block, body []ir.Instruction) {
	for i := len(body) - 1; i >= 0; i-- {
		ir.DetachInstruction(body[i])
		d.PushFront(body[i])
	}
}
