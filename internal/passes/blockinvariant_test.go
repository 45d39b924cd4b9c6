// SPDX-License-Identifier: Apache-2.0
package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"turbine/internal/ir"
)

// TestBlockInvariantPropagationSubstitutesOnEqualityBranch: on the
// true arm of `cbr (x == 5), t, f`, x is known equal to 5 and every
// later use of x in t is rewritten to the constant; the false arm is
// left alone.
func TestBlockInvariantPropagationSubstitutesOnEqualityBranch(t *testing.T) {
	ctx := ir.NewContext()
	i32 := ctx.I32()
	fn := ir.NewFunction(ctx, "f", i32, []string{"x"}, []ir.Type{i32})
	entry := fn.AppendBlock()
	tBlock := fn.AppendBlock()
	fBlock := fn.AppendBlock()
	x := fn.Params()[0]

	five := ctx.GetConstant(i32, 5)
	cmp := ir.AtBlockBack(entry).Cmp(ctx, ir.OpCmpEq, x, five)
	ir.AtBlockBack(entry).CondBranch(ctx, cmp, tBlock, fBlock)

	tUse := ir.AtBlockBack(tBlock).Add(ctx, x, ctx.GetConstant(i32, 1))
	ir.AtBlockBack(tBlock).Ret(ctx, tUse)

	fUse := ir.AtBlockBack(fBlock).Add(ctx, x, ctx.GetConstant(i32, 1))
	ir.AtBlockBack(fBlock).Ret(ctx, fUse)

	require.True(t, BlockInvariantPropagation(fn))

	require.Equal(t, ir.Value(five), tUse.LHS(), "x is known to be 5 on the true arm")
	require.Equal(t, ir.Value(x), fUse.LHS(), "the false arm carries no such guarantee")
}
