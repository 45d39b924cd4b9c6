// SPDX-License-Identifier: Apache-2.0
package passes

import "turbine/internal/ir"

// CFGSimplification performs jump threading (bypassing a block that is
// only `branch T`) and block merging (splicing a block into its sole
// predecessor when that predecessor falls straight through to it).
// Spec §4.9.4.
func CFGSimplification(fn *ir.Function) bool {
	changed := false
	for threadJumps(fn) {
		changed = true
	}
	for mergeBlocks(fn) {
		changed = true
	}
	return changed
}

// threadJumps retargets each predecessor of a pure-forwarding block (one
// instruction: `branch T`) directly to T, one predecessor edge at a
// time, skipping any edge whose retarget would conflict with a Phi in T
// — per spec §4.2, a block collapse is only legal when the values T's
// Phis already carry for the colliding incoming blocks agree. It runs
// one whole-function sweep per call; the caller loops it to a fixed
// point.
func threadJumps(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks() {
		if b.IsEntry() {
			continue
		}
		br, ok := soleInstruction(b)
		if !ok {
			continue
		}
		target := br.Target()
		if target == b {
			continue // self-loop, not threaded
		}
		for _, pred := range b.Predecessors() {
			if pred == b {
				continue
			}
			if !canThreadEdge(target, b, pred) {
				continue
			}
			if retargetTerminator(pred.Terminator(), b, target) {
				changed = true
			}
		}
	}
	return changed
}

// soleInstruction reports whether b's only instruction is an
// unconditional Branch (so b is pure forwarding and has no Phis of its
// own to preserve).
func soleInstruction(b *ir.Block) (*ir.BranchInst, bool) {
	insts := b.Instructions()
	if len(insts) != 1 {
		return nil, false
	}
	br, ok := insts[0].(*ir.BranchInst)
	return br, ok
}

// canThreadEdge reports whether redirecting newPred's edge (currently
// targeting bypassed) to go directly to target instead is safe: every
// Phi in target must already cover bypassed (so threading has a value to
// carry over), and if newPred already has a separate, pre-existing
// direct edge to target (e.g. a CondBranch whose other arm already
// targets target), the value that edge contributes must equal the value
// bypassed contributes — otherwise the collapse is rejected rather than
// silently picking one side, per spec §4.2.
func canThreadEdge(target, bypassed, newPred *ir.Block) bool {
	for _, inst := range target.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		bypassedValue, ok := phi.ValueForBlock(bypassed)
		if !ok {
			return false
		}
		if existing, already := phi.ValueForBlock(newPred); already && existing != bypassedValue {
			return false
		}
	}
	return true
}

// retargetTerminator rewrites a single target reference of term from
// from to to, and if target's Phis expect an incoming pair keyed by
// from's real predecessor (the caller's context already verified the
// value carries over unchanged), updates the edge in target's Phis.
func retargetTerminator(term ir.Instruction, from, to *ir.Block) bool {
	changed := false
	switch t := term.(type) {
	case *ir.BranchInst:
		if t.Target() == from {
			rethreadPhiEdge(from, to, t.Block())
			t.SetTarget(to)
			changed = true
		}
	case *ir.CondBranchInst:
		if t.TrueTarget() == from {
			rethreadPhiEdge(from, to, t.Block())
			t.SetTrueTarget(to)
			changed = true
		}
		if t.FalseTarget() == from {
			rethreadPhiEdge(from, to, t.Block())
			t.SetFalseTarget(to)
			changed = true
		}
	}
	return changed
}

// rethreadPhiEdge updates to's Phis so the edge that used to arrive via
// the (from, through) hop now arrives directly from through, carrying
// the same value from had for it. The caller (threadJumps, via
// canThreadEdge) is expected to have already verified that through does
// not already carry a conflicting value; a mismatch here is an
// invariant violation, not a silent pick, per spec §4.2.
func rethreadPhiEdge(from, to, through *ir.Block) {
	for _, inst := range to.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		v, ok := phi.ValueForBlock(from)
		if !ok {
			continue
		}
		if existing, already := phi.ValueForBlock(through); already {
			if existing != v {
				invariantViolation("rethreadPhiEdge: phi has conflicting incoming values for collapsed block %s", through.Label())
			}
			continue
		}
		phi.AddIncoming(through, v)
	}
}

// mergeBlocks splices a block with a single predecessor whose own
// terminator is an unconditional branch to it directly into that
// predecessor: instructions move before the predecessor's terminator,
// the branch is destroyed, and successors' Phis referencing the merged
// block are rebound to the predecessor.
func mergeBlocks(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks() {
		if b.IsEntry() {
			continue
		}
		preds := b.Predecessors()
		if len(preds) != 1 {
			continue
		}
		pred := preds[0]
		br, ok := pred.Terminator().(*ir.BranchInst)
		if !ok || br.Target() != b {
			continue
		}
		if pred == b {
			continue
		}

		rebindPhisToMergedPredecessor(b, pred)

		ir.DestroyInstruction(br)
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			ir.DetachInstruction(inst)
			pred.PushBack(inst)
		}
		ir.DestroyBlock(b)
		changed = true
	}
	return changed
}

// rebindPhisToMergedPredecessor rewrites every successor's Phi that
// lists merged as an incoming block to list replacement instead, since
// merged is about to disappear into replacement.
func rebindPhisToMergedPredecessor(merged, replacement *ir.Block) {
	for _, succ := range ir.Successors(merged) {
		for _, inst := range succ.Instructions() {
			phi, ok := inst.(*ir.PhiInst)
			if !ok {
				break
			}
			if v, ok := phi.ValueForBlock(merged); ok {
				phi.RemoveIncoming(merged)
				if _, already := phi.ValueForBlock(replacement); !already {
					phi.AddIncoming(replacement, v)
				}
			}
		}
	}
}
