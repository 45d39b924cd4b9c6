// SPDX-License-Identifier: Apache-2.0
package passes

import "turbine/internal/ir"

// BlockInvariantPropagation computes, for each block reachable from the
// entry in DFS order, the substitutions x -> c that must hold on every
// path leading to it: whenever a predecessor's terminator is a
// `cbr (cmp eq/ne a,b) T,F` with one side constant, the other side is
// known equal to it on the branch taken to reach that value. Conflicting
// substitutions contributed by different predecessors are intersected
// away. Spec §4.9.3.
func BlockInvariantPropagation(fn *ir.Function) bool {
	changed := false
	entry := fn.Entry()
	if entry == nil {
		return false
	}

	visited := make(map[*ir.Block]bool)
	var walk func(b *ir.Block)
	walk = func(b *ir.Block) {
		if visited[b] {
			return
		}
		visited[b] = true

		subst := substitutionsForBlock(b)
		if len(subst) > 0 {
			for _, inst := range b.Instructions() {
				if _, isPhi := inst.(*ir.PhiInst); isPhi {
					continue
				}
				for i := 0; i < inst.OperandCount(); i++ {
					if repl, ok := subst[inst.Operand(i)]; ok {
						inst.SetOperand(i, repl)
						changed = true
					}
				}
			}
		}

		for _, s := range ir.Successors(b) {
			walk(s)
		}
	}
	walk(entry)
	return changed
}

// substitutionsForBlock intersects the substitution map contributed by
// every predecessor of b; a predecessor that contributes nothing
// (because its terminator isn't a constant-comparing CondBranch, or b is
// reached through both arms) vetoes the whole map down to empty for any
// key it doesn't also supply with the same replacement.
func substitutionsForBlock(b *ir.Block) map[ir.Value]ir.Value {
	preds := b.Predecessors()
	var merged map[ir.Value]ir.Value
	first := true
	for _, pred := range preds {
		contrib := substitutionFromPredecessor(pred, b)
		if first {
			merged = contrib
			first = false
			continue
		}
		merged = intersectSubst(merged, contrib)
	}
	if merged == nil {
		return nil
	}
	return merged
}

func intersectSubst(a, b map[ir.Value]ir.Value) map[ir.Value]ir.Value {
	out := make(map[ir.Value]ir.Value)
	for k, v := range a {
		if bv, ok := b[k]; ok && bv == v {
			out[k] = v
		}
	}
	return out
}

func substitutionFromPredecessor(pred, target *ir.Block) map[ir.Value]ir.Value {
	cbr, ok := pred.Terminator().(*ir.CondBranchInst)
	if !ok {
		return nil
	}
	cmp, ok := cbr.Condition().(*ir.IntCompareInst)
	if !ok {
		return nil
	}
	var onTrue bool
	switch {
	case cbr.TrueTarget() == target && cbr.FalseTarget() != target:
		onTrue = true
	case cbr.FalseTarget() == target && cbr.TrueTarget() != target:
		onTrue = false
	default:
		return nil
	}

	var wantEq bool
	switch cmp.Predicate() {
	case ir.OpCmpEq:
		wantEq = onTrue
	case ir.OpCmpNe:
		wantEq = !onTrue
	default:
		return nil
	}
	if !wantEq {
		return nil
	}

	lhs, rhs := cmp.LHS(), cmp.RHS()
	out := make(map[ir.Value]ir.Value)
	if _, ok := asConstant(rhs); ok {
		out[lhs] = rhs
	} else if _, ok := asConstant(lhs); ok {
		out[rhs] = lhs
	} else {
		return nil
	}
	return out
}
