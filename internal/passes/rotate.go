// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"turbine/internal/analysis"
	"turbine/internal/ir"
)

// LoopRotation rewrites `while (c) { body }` into `if (c) { do { body }
// while (c); }`: it clones the header's non-Phi instructions into a new
// block that becomes the sole back edge's target, remapping header Phi
// reads to the value each carries in from the back edge, then
// redirects the back edge to the clone and extends every Phi the body
// or the exit block keeps on the header with a matching incoming value
// from the clone. Applies only when the loop has a single exit target
// and the header's terminator is a CondBranch with one target inside
// the loop (the body) and the other being that exit. Spec §4.9.15.
func LoopRotation(fn *ir.Function) bool {
	changed := false
	forest := analysis.BuildLoopForest(fn)
	for _, loop := range flattenLoopsInnermostFirst(forest) {
		if rotateLoop(fn, loop) {
			changed = true
		}
	}
	return changed
}

func rotateLoop(fn *ir.Function, loop *analysis.Loop) bool {
	exit, ok := singleExitTarget(loop)
	if !ok {
		return false
	}
	cbr, ok := loop.Header.Terminator().(*ir.CondBranchInst)
	if !ok {
		return false
	}
	var body *ir.Block
	switch {
	case loop.Blocks[cbr.TrueTarget()] && cbr.FalseTarget() == exit:
		body = cbr.TrueTarget()
	case loop.Blocks[cbr.FalseTarget()] && cbr.TrueTarget() == exit:
		body = cbr.FalseTarget()
	default:
		return false
	}

	backEdge := analysis.GetOrCreateSingleBackEdgeBlock(fn, loop)
	header := loop.Header
	ctx := fn.Module().Context()

	valueMap := make(map[ir.Value]ir.Value)
	for _, inst := range header.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		v, ok := phi.ValueForBlock(backEdge)
		if !ok {
			v = ctx.GetUndef(phi.Type())
		}
		valueMap[ir.Value(phi)] = v
	}
	remap := func(v ir.Value) ir.Value {
		if mapped, ok := valueMap[v]; ok {
			return mapped
		}
		return v
	}

	jumpBack := fn.InsertBlockAfter(backEdge, "rotated")
	for _, inst := range header.Instructions() {
		if _, ok := inst.(*ir.PhiInst); ok {
			continue
		}
		if inst == header.Terminator() {
			break
		}
		clone := inst.Clone()
		for i := 0; i < clone.OperandCount(); i++ {
			clone.SetOperand(i, remap(clone.Operand(i)))
		}
		jumpBack.PushBack(clone)
		valueMap[inst.(ir.Value)] = clone.(ir.Value)
	}

	newCbr := ir.NewCondBranch(ctx, remap(cbr.Condition()), cbr.TrueTarget(), cbr.FalseTarget())
	jumpBack.PushBack(newCbr)

	retargetBackEdge(backEdge, header, jumpBack)
	extendPhisWithNewPredecessor(body, header, jumpBack, remap)
	extendPhisWithNewPredecessor(exit, header, jumpBack, remap)

	for _, inst := range header.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		if _, ok := phi.ValueForBlock(backEdge); ok {
			phi.RemoveIncoming(backEdge)
		}
	}
	simplifyPhisInBlock(header)
	return true
}

func singleExitTarget(loop *analysis.Loop) (*ir.Block, bool) {
	var exit *ir.Block
	for _, e := range loop.ExitingEdges {
		if exit == nil {
			exit = e.To
		} else if exit != e.To {
			return nil, false
		}
	}
	if exit == nil {
		return nil, false
	}
	return exit, true
}

func retargetBackEdge(backEdge, from, to *ir.Block) {
	switch t := backEdge.Terminator().(type) {
	case *ir.BranchInst:
		if t.Target() == from {
			t.SetTarget(to)
		}
	case *ir.CondBranchInst:
		if t.TrueTarget() == from {
			t.SetTrueTarget(to)
		}
		if t.FalseTarget() == from {
			t.SetFalseTarget(to)
		}
	}
}

// extendPhisWithNewPredecessor gives every Phi in block that already
// has an incoming value from oldPred a matching incoming value from
// newPred, run through remap so references to the header's own values
// pick up the clone's equivalents.
func extendPhisWithNewPredecessor(block, oldPred, newPred *ir.Block, remap func(ir.Value) ir.Value) {
	for _, inst := range block.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		if v, ok := phi.ValueForBlock(oldPred); ok {
			if _, already := phi.ValueForBlock(newPred); !already {
				phi.AddIncoming(newPred, remap(v))
			}
		}
	}
}
