// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestLoopRotationMovesConditionIntoBackEdge builds a textbook `while (c)
// { body }` loop — header tests the condition and branches to body or
// exit, body falls through to a latch that jumps back to header — and
// asserts rotation threads the latch into a freshly cloned block that
// re-checks the condition, rather than back into header.
func TestLoopRotationMovesConditionIntoBackEdge(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, nil, nil)
	ir.NewModule(ctx).AddFunction(fn)
	entry := fn.AppendBlock()
	header := fn.AppendBlock()
	body := fn.AppendBlock()
	latch := fn.AppendBlock()
	exit := fn.AppendBlock()

	ir.AtBlockBack(entry).Branch(ctx, header)

	phi := ir.AtBlockFront(header).Phi(ctx, i32)
	phi.AddIncoming(entry, ctx.GetConstant(i32, 0))
	cmp := ir.AtBlockBack(header).Cmp(ctx, ir.OpCmpUlt, phi, ctx.GetConstant(i32, 3))
	ir.AtBlockBack(header).CondBranch(ctx, cmp, body, exit)

	ir.AtBlockBack(body).Branch(ctx, latch)

	inext := ir.AtBlockBack(latch).Add(ctx, phi, ctx.GetConstant(i32, 1))
	phi.AddIncoming(latch, inext)
	ir.AtBlockBack(latch).Branch(ctx, header)

	ir.AtBlockBack(exit).Ret(ctx, phi)

	require.True(t, LoopRotation(fn))

	br, ok := latch.Terminator().(*ir.BranchInst)
	require.True(t, ok)
	rotated := br.Target()
	require.NotSame(t, header, rotated, "the back edge must no longer jump straight to header")

	cbr, ok := rotated.Terminator().(*ir.CondBranchInst)
	require.True(t, ok, "the rotated block re-checks the loop condition")
	require.Same(t, body, cbr.TrueTarget())
	require.Same(t, exit, cbr.FalseTarget())
}
