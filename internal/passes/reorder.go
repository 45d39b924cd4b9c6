// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"turbine/internal/analysis"
	"turbine/internal/ir"
)

// GlobalReordering sinks each pure, non-Load, non-Phi instruction whose
// entire use set lives outside its own block, outside any loop, and
// never through a Phi, down to just before the single user that
// dominates every other user and minimizes the instructions scanned
// walking the dominator chain to reach them. An instruction already
// inside a loop, or one any of whose users are inside a loop or share
// its block, is left alone. Spec §4.9.13.
func GlobalReordering(fn *ir.Function) bool {
	changed := false
	dom := analysis.BuildDominatorTree(fn)
	lf := analysis.BuildLoopForest(fn)

	for _, b := range fn.Blocks() {
		if lf.LoopContaining(b) != nil {
			continue
		}
		for _, inst := range append([]ir.Instruction(nil), b.Instructions()...) {
			if !eligibleForReorder(inst) {
				continue
			}
			users := reorderUsers(inst)
			if len(users) == 0 || !usersQualifyForReorder(users, b, lf) {
				continue
			}
			best := bestReorderPosition(dom, users)
			if best == nil || best.Block() == nil || best.Block() == inst.Block() {
				continue
			}
			destBlock := best.Block()
			ir.DetachInstruction(inst)
			destBlock.InsertBefore(best, inst)
			dom = analysis.BuildDominatorTree(fn)
			lf = analysis.BuildLoopForest(fn)
			changed = true
		}
	}
	return changed
}

func eligibleForReorder(inst ir.Instruction) bool {
	if inst.IsVolatile() {
		return false
	}
	switch inst.(type) {
	case *ir.LoadInst, *ir.PhiInst:
		return false
	}
	return true
}

func reorderUsers(inst ir.Instruction) []ir.Instruction {
	v, ok := inst.(ir.Value)
	if !ok {
		return nil
	}
	var out []ir.Instruction
	v.Uses().ForEachSafe(func(u *ir.Use) {
		out = append(out, u.User())
	})
	return out
}

// usersQualifyForReorder requires every user to sit outside originBlock,
// never be a Phi, and never sit inside a loop.
func usersQualifyForReorder(users []ir.Instruction, originBlock *ir.Block, lf *analysis.LoopForest) bool {
	for _, u := range users {
		if u.Block() == originBlock {
			return false
		}
		if _, ok := u.(*ir.PhiInst); ok {
			return false
		}
		if lf.LoopContaining(u.Block()) != nil {
			return false
		}
	}
	return true
}

// bestReorderPosition picks, among users that dominate every other
// user (a prerequisite for being a legal single insertion point), the
// one that minimizes the total instructions scanned walking the
// dominator-tree chain down to each other user.
func bestReorderPosition(dom *analysis.DominatorTree, users []ir.Instruction) ir.Instruction {
	var best ir.Instruction
	bestCost := -1
	for _, candidate := range users {
		cb := candidate.Block()
		dominatesAll := true
		for _, other := range users {
			if other == candidate {
				continue
			}
			if !dom.Dominates(cb, other.Block()) {
				dominatesAll = false
				break
			}
		}
		if !dominatesAll {
			continue
		}
		cost := 0
		for _, other := range users {
			if other == candidate {
				continue
			}
			cost += instructionsAlongDominatorChain(dom, cb, other.Block())
		}
		if bestCost < 0 || cost < bestCost {
			bestCost = cost
			best = candidate
		}
	}
	return best
}

// instructionsAlongDominatorChain sums instruction counts walking from
// descendant up its immediate-dominator chain to ancestor (inclusive),
// which ancestor is assumed to dominate.
func instructionsAlongDominatorChain(dom *analysis.DominatorTree, ancestor, descendant *ir.Block) int {
	total := 0
	for b := descendant; b != nil && b != ancestor; b = dom.ImmediateDominator(b) {
		total += len(b.Instructions())
	}
	total += len(ancestor.Instructions())
	return total
}
