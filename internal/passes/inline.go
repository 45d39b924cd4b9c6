// SPDX-License-Identifier: Apache-2.0
package passes

import "turbine/internal/ir"

// inlineSizeThreshold bounds the callee instruction count eligible for
// inlining, so the pass cannot blow up code size on a large callee.
const inlineSizeThreshold = 40

// InlineCalls inlines every call site whose callee is not fn itself,
// has a body, and is no larger than inlineSizeThreshold instructions.
// The call's block is split at the call, the callee's blocks are cloned
// into the caller with parameters substituted by the call's arguments,
// every cloned Ret becomes a Branch to the split-off continuation
// (merging a non-void result through a Phi there), and the call is
// replaced by a Branch into the cloned entry block. Spec §4.9.19.
func InlineCalls(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks() {
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			call, ok := inst.(*ir.CallInst)
			if !ok || call.Block() == nil {
				continue
			}
			if !eligibleForInline(fn, call) {
				continue
			}
			inlineCall(fn, call)
			changed = true
		}
	}
	return changed
}

func eligibleForInline(fn *ir.Function, call *ir.CallInst) bool {
	callee := call.Callee()
	if callee == fn || callee.Extern() {
		return false
	}
	count := 0
	for _, b := range callee.Blocks() {
		count += len(b.Instructions())
	}
	return count <= inlineSizeThreshold
}

func inlineCall(fn *ir.Function, call *ir.CallInst) {
	ctx := fn.Module().Context()
	callee := call.Callee()
	callBlock := call.Block()

	cont := splitBlockAfterCall(fn, call)

	values := make(map[ir.Value]ir.Value)
	args := call.Args()
	for i, p := range callee.Params() {
		values[ir.Value(p)] = args[i]
	}
	blocks := make(map[*ir.Block]*ir.Block)
	insertAfter := callBlock
	for _, cb := range callee.Blocks() {
		nb := fn.InsertBlockAfter(insertAfter, "inline."+cb.Label())
		blocks[cb] = nb
		values[ir.Value(cb)] = ir.Value(nb)
		insertAfter = nb
	}

	remap := func(v ir.Value) ir.Value {
		if mapped, ok := values[v]; ok {
			return mapped
		}
		return v
	}

	type retSite struct {
		block *ir.Block
		value ir.Value
	}
	var retSites []retSite

	for _, cb := range callee.Blocks() {
		nb := blocks[cb]
		for _, inst := range cb.Instructions() {
			if ret, ok := inst.(*ir.RetInst); ok {
				nb.PushBack(ir.NewBranch(ctx, cont))
				if v := ret.Value(); v != nil {
					retSites = append(retSites, retSite{nb, remap(v)})
				} else {
					retSites = append(retSites, retSite{nb, nil})
				}
				continue
			}
			clone := inst.Clone()
			for i := 0; i < clone.OperandCount(); i++ {
				clone.SetOperand(i, remap(clone.Operand(i)))
			}
			nb.PushBack(clone)
			if ir.HasResult(inst) {
				values[ir.Value(inst)] = ir.Value(clone)
			}
		}
	}

	callBlock.PushBack(ir.NewBranch(ctx, blocks[callee.Entry()]))

	if !ir.IsVoid(call.Type()) {
		resultPhi := ir.AtBlockFront(cont).Phi(ctx, call.Type())
		for _, rs := range retSites {
			v := rs.value
			if v == nil {
				v = ctx.GetUndef(call.Type())
			}
			resultPhi.AddIncoming(rs.block, v)
		}
		ir.ReplaceUses(call, ir.Value(resultPhi))
	}
	ir.DestroyInstruction(call)
}

// splitBlockAfterCall moves every instruction after call (including the
// terminator) out of call's block into a fresh continuation block
// inserted right after it, and repoints any Phi in a successor of that terminator which
// listed call's block as an incoming predecessor to the continuation.
func splitBlockAfterCall(fn *ir.Function, call *ir.CallInst) *ir.Block {
	callBlock := call.Block()
	cont := fn.InsertBlockAfter(callBlock, "inline.cont")

	insts := callBlock.Instructions()
	idx := -1
	for i, inst := range insts {
		if inst == ir.Instruction(call) {
			idx = i
			break
		}
	}
	moving := append([]ir.Instruction(nil), insts[idx+1:]...)
	for _, inst := range moving {
		ir.DetachInstruction(inst)
		cont.PushBack(inst)
	}

	if term := cont.Terminator(); term != nil {
		retargetSuccessorPhis(term, callBlock, cont)
	}
	return cont
}

func retargetSuccessorPhis(term ir.Instruction, from, to *ir.Block) {
	var targets []*ir.Block
	switch t := term.(type) {
	case *ir.BranchInst:
		targets = []*ir.Block{t.Target()}
	case *ir.CondBranchInst:
		targets = []*ir.Block{t.TrueTarget(), t.FalseTarget()}
	}
	for _, target := range targets {
		for _, inst := range target.Instructions() {
			phi, ok := inst.(*ir.PhiInst)
			if !ok {
				break
			}
			if v, ok := phi.ValueForBlock(from); ok {
				phi.RemoveIncoming(from)
				phi.AddIncoming(to, v)
			}
		}
	}
}
