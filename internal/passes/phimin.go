// SPDX-License-Identifier: Apache-2.0
package passes

import "turbine/internal/ir"

// PhiMinimization computes strongly connected components of the graph
// where Phis point at the other Phis they reference, then collapses:
// a single-node SCC that references exactly one value outside itself
// becomes that value; a multi-node SCC that references exactly one
// outside value collapses every member to it; a multi-node SCC
// referencing several outside values is recursively minimized on the
// inner subset of Phis that reference only SCC members. Spec §4.9.10.
func PhiMinimization(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Blocks() {
		phis := blockPhis(b)
		if minimizePhiSet(phis) {
			changed = true
		}
	}
	// Phis reference Phis across block boundaries too (a Phi's incoming
	// value may be a Phi in another block); run over the whole function's
	// Phi set for that case.
	var all []*ir.PhiInst
	for _, b := range fn.Blocks() {
		all = append(all, blockPhis(b)...)
	}
	if minimizePhiSet(all) {
		changed = true
	}
	return changed
}

func blockPhis(b *ir.Block) []*ir.PhiInst {
	var out []*ir.PhiInst
	for _, inst := range b.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		out = append(out, phi)
	}
	return out
}

func minimizePhiSet(phis []*ir.PhiInst) bool {
	changed := false
	live := make(map[*ir.PhiInst]bool, len(phis))
	for _, p := range phis {
		if p.Block() != nil {
			live[p] = true
		}
	}
	for len(live) > 0 {
		set := make([]*ir.PhiInst, 0, len(live))
		for p := range live {
			set = append(set, p)
		}
		sccs := phiSCCs(set)
		progressed := false
		for _, scc := range sccs {
			if collapseSCC(scc, live) {
				changed = true
				progressed = true
			}
			for _, p := range scc {
				delete(live, p)
			}
		}
		if !progressed && len(sccs) > 0 {
			// Nothing left to collapse; stop to avoid looping forever on a
			// stable irreducible SCC.
			break
		}
	}
	return changed
}

// phiSCCs computes Tarjan SCCs over the directed graph where an edge
// p -> q exists when Phi p has Phi q (member of set) as an incoming
// value, restricted to set.
func phiSCCs(set []*ir.PhiInst) [][]*ir.PhiInst {
	index := make(map[*ir.PhiInst]int)
	lowlink := make(map[*ir.PhiInst]int)
	onStack := make(map[*ir.PhiInst]bool)
	visited := make(map[*ir.PhiInst]bool)
	inSet := make(map[*ir.PhiInst]bool, len(set))
	for _, p := range set {
		inSet[p] = true
	}

	var stack []*ir.PhiInst
	var sccs [][]*ir.PhiInst
	counter := 0

	var visit func(p *ir.PhiInst)
	visit = func(p *ir.PhiInst) {
		visited[p] = true
		index[p] = counter
		lowlink[p] = counter
		counter++
		onStack[p] = true
		stack = append(stack, p)

		for k := 0; k < p.IncomingCount(); k++ {
			succ, ok := p.IncomingValue(k).(*ir.PhiInst)
			if !ok || !inSet[succ] {
				continue
			}
			if !visited[succ] {
				visit(succ)
				lowlink[p] = min(lowlink[p], lowlink[succ])
			} else if onStack[succ] {
				lowlink[p] = min(lowlink[p], index[succ])
			}
		}

		if lowlink[p] == index[p] {
			var comp []*ir.PhiInst
			for {
				n := len(stack) - 1
				top := stack[n]
				stack = stack[:n]
				onStack[top] = false
				comp = append(comp, top)
				if top == p {
					break
				}
			}
			sccs = append(sccs, comp)
		}
	}
	for _, p := range set {
		if !visited[p] {
			visit(p)
		}
	}
	return sccs
}

// collapseSCC tries to reduce scc to a single outside value. It reports
// whether it made any change; the collapsed Phis are destroyed (removed
// from live by the caller regardless, since they are either gone or left
// as an irreducible SCC for now).
func collapseSCC(scc []*ir.PhiInst, live map[*ir.PhiInst]bool) bool {
	members := make(map[*ir.PhiInst]bool, len(scc))
	for _, p := range scc {
		members[p] = true
	}

	var outside ir.Value
	consistent := true
	for _, p := range scc {
		for k := 0; k < p.IncomingCount(); k++ {
			v := p.IncomingValue(k)
			if inner, ok := v.(*ir.PhiInst); ok && members[inner] {
				continue
			}
			if v == ir.Value(p) {
				continue
			}
			if outside == nil {
				outside = v
			} else if outside != v {
				consistent = false
			}
		}
	}

	if !consistent || outside == nil {
		if len(scc) > 1 {
			return minimizeInnerSubset(scc, members)
		}
		return false
	}

	for _, p := range scc {
		ir.ReplaceUses(p, outside)
	}
	for _, p := range scc {
		if p.Block() != nil {
			ir.DestroyInstruction(p)
		}
	}
	return true
}

// minimizeInnerSubset recurses on the subset of scc whose Phis reference
// only other SCC members (i.e. contribute no outside value on their
// own), per spec's "recursively minimized on its inner subset" rule.
func minimizeInnerSubset(scc []*ir.PhiInst, members map[*ir.PhiInst]bool) bool {
	var inner []*ir.PhiInst
	for _, p := range scc {
		onlyInner := true
		for k := 0; k < p.IncomingCount(); k++ {
			v := p.IncomingValue(k)
			if v == ir.Value(p) {
				continue
			}
			if inst, ok := v.(*ir.PhiInst); !ok || !members[inst] {
				onlyInner = false
				break
			}
		}
		if onlyInner {
			inner = append(inner, p)
		}
	}
	if len(inner) == 0 {
		return false
	}
	return minimizePhiSet(inner)
}
