// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"fmt"
	"turbine/internal/analysis"
	"turbine/internal/ir"
)

// maxUnrollIterations bounds how many iterations LoopUnrolling will
// interpret looking for a statically known trip count.
const maxUnrollIterations = 12

// LoopUnrolling fully unrolls a loop whose single exiting branch
// compares values traceable, through a chain of pure Unary/Binary/Cast
// instructions rooted in constant or undef first-iteration header Phi
// values, to a statically known outcome within maxUnrollIterations
// iterations. When the interpreted trip count N is found, the loop
// blocks are cloned N-1 times, back edges are threaded clone-to-clone,
// the final generation's exit is wired to the loop's exit block, and
// values that escape through the exit block's Phis are rerouted to the
// final generation's equivalents. Spec §4.9.16.
func LoopUnrolling(fn *ir.Function) bool {
	changed := false
	forest := analysis.BuildLoopForest(fn)
	for _, loop := range flattenLoopsInnermostFirst(forest) {
		if unrollLoop(fn, loop) {
			changed = true
		}
	}
	return changed
}

func unrollLoop(fn *ir.Function, loop *analysis.Loop) bool {
	if len(loop.BackEdgesFrom) != 1 || len(loop.ExitingEdges) != 1 {
		return false
	}
	var backEdge *ir.Block
	for b := range loop.BackEdgesFrom {
		backEdge = b
	}
	exitFrom := loop.ExitingEdges[0].From
	exitTo := loop.ExitingEdges[0].To

	cbr, ok := exitFrom.Terminator().(*ir.CondBranchInst)
	if !ok {
		return false
	}
	cmp, ok := cbr.Condition().(*ir.IntCompareInst)
	if !ok {
		return false
	}
	continueTarget := cbr.TrueTarget()
	continueIsTrue := true
	if continueTarget == exitTo {
		continueTarget = cbr.FalseTarget()
		continueIsTrue = false
	}
	if !loop.Blocks[continueTarget] {
		return false
	}

	n, ok := interpretTripCount(loop, cmp, continueIsTrue)
	if !ok || n < 2 || n > maxUnrollIterations {
		return false
	}

	cloneLoopNTimes(fn, loop, backEdge, exitFrom, exitTo, n)
	return true
}

// interpretTripCount evaluates cmp across successive iterations,
// starting from each header Phi's preheader-supplied value, re-deriving
// each Phi's next value from its back-edge incoming expression. It
// returns the first iteration index (1-based) at which the condition
// stops matching continueIsTrue, i.e. the loop's total trip count.
func interpretTripCount(loop *analysis.Loop, cmp *ir.IntCompareInst, continueIsTrue bool) (int, bool) {
	env := make(map[*ir.PhiInst]uint64)
	var phis []*ir.PhiInst
	for _, inst := range loop.Header.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		init, ok := initialPhiValue(loop, phi)
		if !ok {
			return 0, false
		}
		env[phi] = init
		phis = append(phis, phi)
	}
	if len(phis) == 0 {
		return 0, false
	}

	result, ok := evalCompareChain(cmp, env, loop)
	if !ok || result != continueIsTrue {
		return 0, false
	}

	for iter := 1; iter <= maxUnrollIterations; iter++ {
		next := make(map[*ir.PhiInst]uint64, len(phis))
		for _, phi := range phis {
			backVal, ok := phi.ValueForBlock(backEdgeBlockOf(loop))
			if !ok {
				return 0, false
			}
			v, _, ok := evalTraceValue(backVal, env, loop)
			if !ok {
				return 0, false
			}
			next[phi] = v
		}
		env = next

		result, ok := evalCompareChain(cmp, env, loop)
		if !ok {
			return 0, false
		}
		if result != continueIsTrue {
			return iter, true
		}
	}
	return 0, false
}

func backEdgeBlockOf(loop *analysis.Loop) *ir.Block {
	for b := range loop.BackEdgesFrom {
		return b
	}
	return nil
}

// initialPhiValue extracts the constant/undef value phi carries in from
// outside the loop.
func initialPhiValue(loop *analysis.Loop, phi *ir.PhiInst) (uint64, bool) {
	for k := 0; k < phi.IncomingCount(); k++ {
		pred := phi.IncomingBlock(k)
		if loop.Blocks[pred] {
			continue
		}
		switch v := phi.IncomingValue(k).(type) {
		case *ir.ConstantValue:
			return v.Uint64(), true
		case *ir.UndefValue:
			return 0, true
		default:
			return 0, false
		}
	}
	return 0, false
}

func evalCompareChain(cmp *ir.IntCompareInst, env map[*ir.PhiInst]uint64, loop *analysis.Loop) (bool, bool) {
	l, bits, ok := evalTraceValue(cmp.LHS(), env, loop)
	if !ok {
		return false, false
	}
	r, _, ok := evalTraceValue(cmp.RHS(), env, loop)
	if !ok {
		return false, false
	}
	return evalCompare(cmp.Predicate(), bits, l, r), true
}

// evalTraceValue recursively evaluates v, reading header Phi values
// from env and otherwise following Unary/Binary/Cast chains; anything
// else (Load, Call, a non-header Phi) makes the trace ineligible.
func evalTraceValue(v ir.Value, env map[*ir.PhiInst]uint64, loop *analysis.Loop) (uint64, int, bool) {
	switch t := v.(type) {
	case *ir.ConstantValue:
		return t.Uint64(), ir.BitSize(t.Type()), true
	case *ir.UndefValue:
		return 0, ir.BitSize(t.Type()), true
	case *ir.PhiInst:
		if val, ok := env[t]; ok {
			return val, ir.BitSize(t.Type()), true
		}
		return 0, 0, false
	case *ir.UnaryInst:
		x, bits, ok := evalTraceValue(t.X(), env, loop)
		if !ok {
			return 0, 0, false
		}
		return evalUnary(t.Opcode(), bits, x), bits, true
	case *ir.BinaryInst:
		l, bits, ok1 := evalTraceValue(t.LHS(), env, loop)
		r, _, ok2 := evalTraceValue(t.RHS(), env, loop)
		if !ok1 || !ok2 {
			return 0, 0, false
		}
		res, ok := evalBinary(t.Opcode(), bits, l, r)
		return res, bits, ok
	case *ir.CastInst:
		src, srcBits, ok := evalTraceValue(t.Src(), env, loop)
		if !ok {
			return 0, 0, false
		}
		dstBits := ir.BitSize(t.Type())
		return evalCast(t.Opcode(), srcBits, dstBits, src), dstBits, true
	default:
		return 0, 0, false
	}
}

// cloneLoopNTimes materializes n-1 clone generations of loop's blocks,
// threads each generation's back edge into the next, routes the last
// generation's exit into exitTo, and updates exitTo's Phis so escaping
// values flow from the last generation instead of the original blocks.
func cloneLoopNTimes(fn *ir.Function, loop *analysis.Loop, backEdge, exitFrom, exitTo *ir.Block, n int) {
	ctx := fn.Module().Context()
	header := loop.Header

	orderedOriginal := orderedLoopBlocksList(fn, loop)

	gens := make([]*unrollGen, n)
	gens[0] = &unrollGen{blocks: identityBlockMap(orderedOriginal), values: map[ir.Value]ir.Value{}}

	for g := 1; g < n; g++ {
		gen := &unrollGen{blocks: map[*ir.Block]*ir.Block{}, values: map[ir.Value]ir.Value{}}
		for _, b := range orderedOriginal {
			gen.blocks[b] = fn.InsertBlockAfter(fn.Blocks()[len(fn.Blocks())-1], fmt.Sprintf("%s.unroll%d", b.Label(), g))
		}
		prev := gens[g-1]
		for _, b := range orderedOriginal {
			cloneBlockInto(ctx, b, gen.blocks[b], gen, prev, header, backEdge, loop)
		}
		gens[g] = gen
	}

	// Thread back edges: generation g's back-edge block points at
	// generation g+1's header (or, for the last generation, at exitTo).
	for g := 0; g < n; g++ {
		be := gens[g].blocks[backEdge]
		if g < n-1 {
			retargetBackEdge(be, header, gens[g+1].blocks[header])
		}
	}
	// The original back edge no longer targets header; drop its now-stale
	// incoming pair from header's Phis (the clones were built with only
	// the correct single incoming pair to begin with).
	for _, inst := range header.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		if _, ok := phi.ValueForBlock(backEdge); ok {
			phi.RemoveIncoming(backEdge)
		}
	}

	// Route every generation's exiting branch straight ahead: we proved
	// by interpretation that the first n-1 iterations take the
	// loop-continuing edge and the nth takes the exit edge, so the
	// conditional becomes dead weight.
	for g := 0; g < n; g++ {
		ef := gens[g].blocks[exitFrom]
		cbr, ok := ef.Terminator().(*ir.CondBranchInst)
		if !ok {
			continue
		}
		continueTarget := cbr.TrueTarget()
		if continueTarget == gens[g].blocks[exitTo] {
			continueTarget = cbr.FalseTarget()
		}
		ir.DestroyInstruction(cbr)
		if g < n-1 {
			ir.AtBlockBack(ef).Branch(ctx, continueTarget)
		} else {
			ir.AtBlockBack(ef).Branch(ctx, exitTo)
		}
	}

	// exitTo's Phis previously kept an incoming pair for the original
	// exitFrom; rewire it to the final generation's clone, preserving
	// the originally exiting value by remapping it through that
	// generation's value map when it was computed inside the loop.
	last := gens[n-1]
	for _, inst := range exitTo.Instructions() {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			break
		}
		v, ok := phi.ValueForBlock(exitFrom)
		if !ok {
			continue
		}
		phi.RemoveIncoming(exitFrom)
		remapped := v
		if mv, ok := last.values[v]; ok {
			remapped = mv
		}
		phi.AddIncoming(last.blocks[exitFrom], remapped)
	}
	simplifyPhisInBlock(header)
}

func orderedLoopBlocksList(fn *ir.Function, loop *analysis.Loop) []*ir.Block {
	var out []*ir.Block
	for _, b := range fn.Blocks() {
		if loop.Blocks[b] {
			out = append(out, b)
		}
	}
	return out
}

func identityBlockMap(blocks []*ir.Block) map[*ir.Block]*ir.Block {
	m := make(map[*ir.Block]*ir.Block, len(blocks))
	for _, b := range blocks {
		m[b] = b
	}
	return m
}

// unrollGen records one generation's block and value clones: blocks maps
// an original loop block to its clone in this generation (the identity
// map for generation 0), and values maps an original instruction's
// result to its clone's result.
type unrollGen struct {
	blocks map[*ir.Block]*ir.Block
	values map[ir.Value]ir.Value
}

// cloneBlockInto fills dst with clones of src's instructions, remapping
// operands through gen's running value map and block map. A Phi's
// incoming pair whose predecessor lies outside the loop is dropped,
// since later generations are only ever entered through the back edge;
// the header's incoming pair from the back edge is instead sourced from
// prevGen, since that edge's real predecessor after threading is the
// previous generation's back-edge block, not this generation's own.
func cloneBlockInto(ctx *ir.Context, src, dst *ir.Block, gen, prevGen *unrollGen, header, backEdge *ir.Block, loop *analysis.Loop) {
	for _, inst := range src.Instructions() {
		if phi, ok := inst.(*ir.PhiInst); ok {
			clone := ir.AtBlockBack(dst).Phi(ctx, phi.Type())
			for k := 0; k < phi.IncomingCount(); k++ {
				pred := phi.IncomingBlock(k)
				if !loop.Blocks[pred] {
					continue
				}
				if src == header && pred == backEdge {
					val := remapTraced(phi.IncomingValue(k), prevGen)
					clone.AddIncoming(prevGen.blocks[backEdge], val)
					continue
				}
				val := remapTraced(phi.IncomingValue(k), gen)
				clone.AddIncoming(gen.blocks[pred], val)
			}
			gen.values[ir.Value(phi)] = ir.Value(clone)
			continue
		}

		clone := inst.Clone()
		for i := 0; i < clone.OperandCount(); i++ {
			clone.SetOperand(i, remapTraced(clone.Operand(i), gen))
		}
		switch t := clone.(type) {
		case *ir.BranchInst:
			if mapped, ok := gen.blocks[t.Target()]; ok {
				t.SetTarget(mapped)
			}
		case *ir.CondBranchInst:
			if mapped, ok := gen.blocks[t.TrueTarget()]; ok {
				t.SetTrueTarget(mapped)
			}
			if mapped, ok := gen.blocks[t.FalseTarget()]; ok {
				t.SetFalseTarget(mapped)
			}
		}
		dst.PushBack(clone)
		if ir.HasResult(inst) {
			gen.values[ir.Value(inst)] = ir.Value(clone)
		}
	}
}

func remapTraced(v ir.Value, gen *unrollGen) ir.Value {
	if mapped, ok := gen.values[v]; ok {
		return mapped
	}
	return v
}
