// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestCFGSimplificationThreadsAndMerges is spec §8 scenario 4: a
// three-block chain A -> B -> C where B is only `branch C` and no Phi in
// C distinguishes A from B. After CFGSimplification, A and C splice into
// one block.
func TestCFGSimplificationThreadsAndMerges(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, nil, nil)
	a := fn.AppendBlock()
	b := fn.AppendBlock()
	c := fn.AppendBlock()

	ir.AtBlockBack(a).Branch(ctx, b)
	ir.AtBlockBack(b).Branch(ctx, c)
	ir.AtBlockBack(c).Ret(ctx, ctx.GetConstant(i32, 0))

	// Thread a's jump through b directly to c, then drop the now-dead b
	// (a second CFGSimplification sweep then merges a and c, since c has
	// a single predecessor once b is gone) — this is the same sequence
	// the full pass pipeline runs these two passes in.
	require.True(t, CFGSimplification(fn))
	require.True(t, DeadBlockElimination(fn))
	CFGSimplification(fn)

	require.Len(t, fn.Blocks(), 1, "A, B, and C collapse into a single block")
	merged := fn.Blocks()[0]
	assert.Same(t, a, merged)
	_, ok := merged.Terminator().(*ir.RetInst)
	assert.True(t, ok)
}

// TestCFGSimplificationRejectsConflictingThread builds a predecessor
// that already has a direct edge to the thread target carrying a value
// that disagrees with the value flowing through the bypassed block, and
// asserts the edge is left unthreaded rather than silently dropping one
// side's Phi value (spec §4.2's block-collapse dedup-and-equality-check).
//
//	pred: bcond cond, bypass, target   ; two edges out of pred already
//	bypass: branch target
//	target: v = phi [pred: 1, bypass: 2]; ret v
//
// Threading pred->bypass->target directly would require the edge's
// value (2, bypass's contribution) to agree with the value already
// recorded for pred (1) — it does not, so the thread must not happen.
func TestCFGSimplificationRejectsConflictingThread(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, nil, nil)
	pred := fn.AppendBlock()
	bypass := fn.AppendBlock()
	target := fn.AppendBlock()

	cond := ctx.GetConstant(ctx.I1(), 1)
	ir.AtBlockBack(pred).CondBranch(ctx, cond, bypass, target)
	ir.AtBlockBack(bypass).Branch(ctx, target)

	phi := ir.AtBlockFront(target).Phi(ctx, i32)
	phi.AddIncoming(pred, ctx.GetConstant(i32, 1))
	phi.AddIncoming(bypass, ctx.GetConstant(i32, 2))
	ir.AtBlockBack(target).Ret(ctx, phi)

	require.NotPanics(t, func() { CFGSimplification(fn) })

	// The conflicting edge must not have been threaded: bypass is still
	// reachable from pred, and target's phi still lists both pred and
	// bypass with their original, distinct values.
	require.Equal(t, bypass, pred.Terminator().(*ir.CondBranchInst).TrueTarget())
	predValue, ok := phi.ValueForBlock(pred)
	require.True(t, ok)
	assert.Equal(t, uint64(1), predValue.(*ir.ConstantValue).Uint64())
	bypassValue, ok := phi.ValueForBlock(bypass)
	require.True(t, ok)
	assert.Equal(t, uint64(2), bypassValue.(*ir.ConstantValue).Uint64())
}

// TestCFGSimplificationAllowsAgreeingConflictThread is the same shape as
// above but with the edge values already in agreement: threading must
// proceed and collapse the two predecessor entries into one.
func TestCFGSimplificationAllowsAgreeingConflictThread(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, nil, nil)
	pred := fn.AppendBlock()
	bypass := fn.AppendBlock()
	target := fn.AppendBlock()

	cond := ctx.GetConstant(ctx.I1(), 1)
	ir.AtBlockBack(pred).CondBranch(ctx, cond, bypass, target)
	ir.AtBlockBack(bypass).Branch(ctx, target)

	shared := ctx.GetConstant(i32, 7)
	phi := ir.AtBlockFront(target).Phi(ctx, i32)
	phi.AddIncoming(pred, shared)
	phi.AddIncoming(bypass, shared)
	ir.AtBlockBack(target).Ret(ctx, phi)

	require.True(t, CFGSimplification(fn))
	require.Equal(t, target, pred.Terminator().(*ir.CondBranchInst).TrueTarget())
}
